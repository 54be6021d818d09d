// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package ingest

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/chatpulse/chatpulse/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func TestParseIRCLinePrivmsg(t *testing.T) {
	line := `@badge-info=;badges=subscriber/12,vip/1;display-name=ChatFan;emotes=25:0-4;id=abc-123;tmi-sent-ts=1772366400000 :chatfan!chatfan@chatfan.tmi.twitch.tv PRIVMSG #TestChan :Kappa hello chat`

	msg := parseIRCLine(line)
	if msg.Command != "PRIVMSG" {
		t.Fatalf("Command = %q, want PRIVMSG", msg.Command)
	}
	if msg.Prefix != "chatfan!chatfan@chatfan.tmi.twitch.tv" {
		t.Errorf("Prefix = %q", msg.Prefix)
	}
	if len(msg.Params) != 1 || msg.Params[0] != "#TestChan" {
		t.Errorf("Params = %v, want [#TestChan]", msg.Params)
	}
	if msg.Trailing != "Kappa hello chat" {
		t.Errorf("Trailing = %q", msg.Trailing)
	}
	if msg.Tags["display-name"] != "ChatFan" {
		t.Errorf("display-name = %q", msg.Tags["display-name"])
	}
}

func TestParseIRCLinePing(t *testing.T) {
	msg := parseIRCLine("PING :tmi.twitch.tv")
	if msg.Command != "PING" {
		t.Fatalf("Command = %q, want PING", msg.Command)
	}
	if msg.Trailing != "tmi.twitch.tv" {
		t.Errorf("Trailing = %q, want tmi.twitch.tv", msg.Trailing)
	}
}

func TestUnescapeTag(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`hello\sworld`, "hello world"},
		{`a\:b`, "a;b"},
		{`back\\slash`, `back\slash`},
		{`line\r\nbreak`, "line\r\nbreak"},
		{"plain", "plain"},
		{`trailing\`, `trailing\`},
	}
	for _, tc := range cases {
		if got := unescapeTag(tc.in); got != tc.want {
			t.Errorf("unescapeTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestChatMessageFromPrivmsg(t *testing.T) {
	line := `@badges=moderator/1;display-name=ModUser;emotes=25:0-4,14-18/1902:6-12;id=msg-1;tmi-sent-ts=1772366400000 :moduser!moduser@moduser.tmi.twitch.tv PRIVMSG #BigChan :Kappa Keepo12 Kappa`

	chat := parseIRCLine(line).chatMessage()
	if chat.Channel != "bigchan" {
		t.Errorf("Channel = %q, want bigchan", chat.Channel)
	}
	if chat.Username != "ModUser" {
		t.Errorf("Username = %q, want ModUser", chat.Username)
	}
	if chat.ID != "msg-1" {
		t.Errorf("ID = %q, want msg-1", chat.ID)
	}
	if chat.Content != "Kappa Keepo12 Kappa" {
		t.Errorf("Content = %q", chat.Content)
	}
	want := time.UnixMilli(1772366400000).UTC()
	if !chat.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", chat.Timestamp, want)
	}
	// Distinct codes only, resolved from the first position of each.
	if !reflect.DeepEqual(chat.Emotes, []string{"Kappa", "Keepo12"}) {
		t.Errorf("Emotes = %v, want [Kappa Keepo12]", chat.Emotes)
	}
	if !reflect.DeepEqual(chat.Badges, []string{"moderator"}) {
		t.Errorf("Badges = %v, want [moderator]", chat.Badges)
	}
}

func TestChatMessageFallbacks(t *testing.T) {
	// No tags at all: username comes from the prefix, ID is generated,
	// timestamp is near now.
	line := `:plainuser!plainuser@plainuser.tmi.twitch.tv PRIVMSG #chan :no tags here`

	chat := parseIRCLine(line).chatMessage()
	if chat.Username != "plainuser" {
		t.Errorf("Username = %q, want plainuser", chat.Username)
	}
	if chat.ID == "" {
		t.Error("ID not generated")
	}
	if time.Since(chat.Timestamp) > time.Minute {
		t.Errorf("Timestamp = %v, want recent", chat.Timestamp)
	}
	if len(chat.Emotes) != 0 || len(chat.Badges) != 0 {
		t.Errorf("Emotes/Badges = %v/%v, want empty", chat.Emotes, chat.Badges)
	}
}

func TestEmoteParsingIgnoresMalformedRanges(t *testing.T) {
	cases := []string{
		`@emotes=25:bad-range :u!u@u.t PRIVMSG #c :hello`,
		`@emotes=25:0-99 :u!u@u.t PRIVMSG #c :short`,
		`@emotes=25 :u!u@u.t PRIVMSG #c :hello`,
		`@emotes=25:5-2 :u!u@u.t PRIVMSG #c :hello`,
	}
	for _, line := range cases {
		chat := parseIRCLine(line).chatMessage()
		if len(chat.Emotes) != 0 {
			t.Errorf("line %q produced emotes %v, want none", line, chat.Emotes)
		}
	}
}

func TestNormalizeChannel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"#MixedCase", "mixedcase"},
		{"  spaced  ", "spaced"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := normalizeChannel(tc.in); got != tc.want {
			t.Errorf("normalizeChannel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClientChannelSet(t *testing.T) {
	c := NewClient(Config{Channels: []string{"#Alpha", "beta"}})

	if !c.Monitors("alpha") || !c.Monitors("BETA") {
		t.Error("initial channels not monitored")
	}
	if c.Connected() {
		t.Error("Connected before Run")
	}

	// Not connected: Join and Part only mutate the desired set.
	if err := c.Join(context.Background(), "gamma"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !c.Monitors("gamma") {
		t.Error("gamma not monitored after Join")
	}
	if err := c.Part("alpha"); err != nil {
		t.Fatalf("Part: %v", err)
	}
	if c.Monitors("alpha") {
		t.Error("alpha still monitored after Part")
	}
	if len(c.Channels()) != 2 {
		t.Errorf("Channels = %v, want 2 entries", c.Channels())
	}
}
