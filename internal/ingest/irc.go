// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatpulse/chatpulse/internal/models"
)

// ircMessage is one parsed IRC line.
type ircMessage struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
	// Trailing is the text after the final " :", the chat content for
	// PRIVMSG lines.
	Trailing string
}

// parseIRCLine splits a raw IRC line into tags, prefix, command, and params.
// Twitch lines look like:
//
//	@badges=...;emotes=... :nick!nick@nick.tmi.twitch.tv PRIVMSG #chan :hello
func parseIRCLine(line string) ircMessage {
	msg := ircMessage{}
	line = strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(line, "@") {
		rest := line[1:]
		if idx := strings.Index(rest, " "); idx >= 0 {
			msg.Tags = parseTags(rest[:idx])
			line = rest[idx+1:]
		} else {
			msg.Tags = parseTags(rest)
			return msg
		}
	}

	if strings.HasPrefix(line, ":") {
		if idx := strings.Index(line, " "); idx >= 0 {
			msg.Prefix = line[1:idx]
			line = line[idx+1:]
		} else {
			msg.Prefix = line[1:]
			return msg
		}
	}

	if idx := strings.Index(line, " :"); idx >= 0 {
		msg.Trailing = line[idx+2:]
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) > 0 {
		msg.Command = fields[0]
		msg.Params = fields[1:]
	}
	return msg
}

// parseTags decodes the IRCv3 tag block, unescaping values per the spec.
func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		key, value, _ := strings.Cut(pair, "=")
		tags[key] = unescapeTag(value)
	}
	return tags
}

// unescapeTag reverses IRCv3 tag value escaping.
func unescapeTag(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var sb strings.Builder
	sb.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 == len(value) {
			sb.WriteByte(value[i])
			continue
		}
		i++
		switch value[i] {
		case ':':
			sb.WriteByte(';')
		case 's':
			sb.WriteByte(' ')
		case 'r':
			sb.WriteByte('\r')
		case 'n':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(value[i])
		}
	}
	return sb.String()
}

// nick extracts the login name from an IRC prefix like
// "nick!nick@nick.tmi.twitch.tv".
func (m ircMessage) nick() string {
	if idx := strings.Index(m.Prefix, "!"); idx >= 0 {
		return m.Prefix[:idx]
	}
	return m.Prefix
}

// chatMessage converts a PRIVMSG line into the pipeline's message model.
func (m ircMessage) chatMessage() models.ChatMessage {
	channel := ""
	if len(m.Params) > 0 {
		channel = strings.TrimPrefix(m.Params[0], "#")
	}

	// Display name when tagged, login name otherwise.
	username := m.Tags["display-name"]
	if username == "" {
		username = m.nick()
	}

	id := m.Tags["id"]
	if id == "" {
		id = uuid.NewString()
	}

	return models.ChatMessage{
		ID:        id,
		Channel:   strings.ToLower(channel),
		Username:  username,
		Content:   m.Trailing,
		Timestamp: m.timestamp(),
		Emotes:    m.emotes(),
		Badges:    m.badges(),
	}
}

// timestamp reads the server timestamp tag (tmi-sent-ts, milliseconds since
// epoch), falling back to local time.
func (m ircMessage) timestamp() time.Time {
	if raw, ok := m.Tags["tmi-sent-ts"]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Now().UTC()
}

// emotes resolves the emotes tag into distinct emote codes, in first
// appearance order. The tag carries IDs and code point ranges into the
// message text, e.g. "25:0-4,12-16/1902:6-10"; the code is cut from the
// content at the first range.
func (m ircMessage) emotes() []string {
	raw := m.Tags["emotes"]
	if raw == "" {
		return nil
	}
	content := []rune(m.Trailing)

	var codes []string
	seen := make(map[string]struct{})
	for _, entry := range strings.Split(raw, "/") {
		_, positions, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		first, _, _ := strings.Cut(positions, ",")
		startStr, endStr, ok := strings.Cut(first, "-")
		if !ok {
			continue
		}
		start, err1 := strconv.Atoi(startStr)
		end, err2 := strconv.Atoi(endStr)
		if err1 != nil || err2 != nil || start < 0 || end < start || end >= len(content) {
			continue
		}
		code := string(content[start : end+1])
		if _, dup := seen[code]; code != "" && !dup {
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	return codes
}

// badges lists the badge names from the badges tag, dropping versions:
// "subscriber/12,vip/1" yields ["subscriber", "vip"].
func (m ircMessage) badges() []string {
	raw := m.Tags["badges"]
	if raw == "" {
		return nil
	}
	var badges []string
	for _, entry := range strings.Split(raw, ",") {
		name, _, _ := strings.Cut(entry, "/")
		if name != "" {
			badges = append(badges, name)
		}
	}
	return badges
}
