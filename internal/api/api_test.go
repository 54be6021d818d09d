// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/chatpulse/chatpulse/internal/buffer"
	"github.com/chatpulse/chatpulse/internal/detection"
	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/models"
	"github.com/chatpulse/chatpulse/internal/store"
	"github.com/chatpulse/chatpulse/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeIngester stands in for the IRC client.
type fakeIngester struct {
	connected bool
	channels  map[string]bool
	joinErr   error
}

func newFakeIngester(channels ...string) *fakeIngester {
	set := make(map[string]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}
	return &fakeIngester{connected: true, channels: set}
}

func (f *fakeIngester) Connected() bool { return f.connected }

func (f *fakeIngester) Channels() []string {
	out := make([]string, 0, len(f.channels))
	for ch := range f.channels {
		out = append(out, ch)
	}
	return out
}

func (f *fakeIngester) Monitors(channel string) bool { return f.channels[channel] }

func (f *fakeIngester) Join(_ context.Context, channel string) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.channels[channel] = true
	return nil
}

func (f *fakeIngester) Part(channel string) error {
	delete(f.channels, channel)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedEvent(t *testing.T, s *store.Store, channel string, at time.Time, velocity float64) *models.HypeEvent {
	t.Helper()
	event := &models.HypeEvent{
		Channel:      channel,
		Timestamp:    at,
		Velocity:     velocity,
		BaselineMean: 10,
		BaselineStd:  2,
		Multiplier:   velocity / 10,
		TopEmotes:    []models.EmoteCount{{Code: "PogChamp", Count: 5}},
	}
	if err := s.Save(context.Background(), event); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return event
}

// newTestServer builds a full router over the given handler deps.
func newTestServer(t *testing.T, deps HandlerDeps) *httptest.Server {
	t.Helper()
	router := NewRouter(NewHandler(deps), RouterConfig{
		CORSOrigins: []string{"*"},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func decodeResponse(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var out models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	buf := buffer.New(100)
	buf.Append(models.ChatMessage{Channel: "sodapoppin", Content: "hi", Timestamp: time.Now()})

	server := newTestServer(t, HandlerDeps{
		Ingest: newFakeIngester("sodapoppin"),
		Buffer: buf,
		Store:  newTestStore(t),
	})

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeResponse(t, resp)
	if body.Status != "success" {
		t.Errorf("envelope status = %q, want success", body.Status)
	}
	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", body.Data)
	}
	if data["status"] != "healthy" {
		t.Errorf("health status = %v, want healthy", data["status"])
	}
	if data["ingest_connected"] != true {
		t.Error("ingest_connected should be true")
	}
	if data["database_connected"] != true {
		t.Error("database_connected should be true")
	}
	if data["channel_count"] != float64(1) {
		t.Errorf("channel_count = %v, want 1", data["channel_count"])
	}
}

func TestHealthDegradedWithoutIngest(t *testing.T) {
	server := newTestServer(t, HandlerDeps{
		Buffer: buffer.New(100),
		Store:  newTestStore(t),
	})

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	if data["status"] != "degraded" {
		t.Errorf("health status = %v, want degraded", data["status"])
	}
}

func TestHealthProbes(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Store: newTestStore(t)})

	resp, err := http.Get(server.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatalf("live probe: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("ready probe: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d, want 200 with live store", resp.StatusCode)
	}
}

func TestReadyProbeWithoutStore(t *testing.T) {
	server := newTestServer(t, HandlerDeps{})

	resp, err := http.Get(server.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("ready probe: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503 without store", resp.StatusCode)
	}
}

func TestJoinChannel(t *testing.T) {
	ing := newFakeIngester()
	server := newTestServer(t, HandlerDeps{Ingest: ing, Buffer: buffer.New(100)})

	resp, err := http.Post(server.URL+"/api/v1/channels", "application/json",
		strings.NewReader(`{"channel":"#XQC"}`))
	if err != nil {
		t.Fatalf("join request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	if data["channel"] != "xqc" {
		t.Errorf("channel = %v, want normalized xqc", data["channel"])
	}
	if !ing.Monitors("xqc") {
		t.Error("ingester should monitor xqc after join")
	}
}

func TestJoinChannelAlreadyMonitored(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Ingest: newFakeIngester("xqc")})

	resp, err := http.Post(server.URL+"/api/v1/channels", "application/json",
		strings.NewReader(`{"channel":"xqc"}`))
	if err != nil {
		t.Fatalf("join request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 for duplicate join", resp.StatusCode)
	}
}

func TestJoinChannelValidation(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Ingest: newFakeIngester()})

	for _, payload := range []string{
		`{"channel":""}`,
		`{"channel":"has spaces"}`,
		`{"channel":"way_too_long_to_be_a_real_twitch_login_name"}`,
		`not json`,
	} {
		resp, err := http.Post(server.URL+"/api/v1/channels", "application/json",
			strings.NewReader(payload))
		if err != nil {
			t.Fatalf("join request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, resp.StatusCode)
		}
	}
}

func TestJoinChannelWithoutIngest(t *testing.T) {
	server := newTestServer(t, HandlerDeps{})

	resp, err := http.Post(server.URL+"/api/v1/channels", "application/json",
		strings.NewReader(`{"channel":"xqc"}`))
	if err != nil {
		t.Fatalf("join request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without ingest", resp.StatusCode)
	}
}

func TestPartChannel(t *testing.T) {
	ing := newFakeIngester("xqc")
	buf := buffer.New(100)
	buf.Append(models.ChatMessage{Channel: "xqc", Content: "hi", Timestamp: time.Now()})
	detector, err := detection.New(detection.Config{})
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	detector.Observe("xqc", 3, nil, time.Now())

	server := newTestServer(t, HandlerDeps{Ingest: ing, Buffer: buf, Detector: detector})

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/channels/XQC", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("part request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ing.Monitors("xqc") {
		t.Error("ingester should no longer monitor xqc")
	}
	if buf.Len("xqc") != 0 {
		t.Error("buffer should be cleared after part")
	}
	if mean, _ := detector.Baseline("xqc"); mean != 0 {
		t.Error("detector baseline should be reset after part")
	}
}

func TestPartUnknownChannel(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Ingest: newFakeIngester()})

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/channels/ghost", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("part request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListChannels(t *testing.T) {
	buf := buffer.New(100)
	for i := 0; i < 3; i++ {
		buf.Append(models.ChatMessage{Channel: "xqc", Content: "hi", Timestamp: time.Now()})
	}

	server := newTestServer(t, HandlerDeps{Ingest: newFakeIngester("xqc"), Buffer: buf})

	resp, err := http.Get(server.URL + "/api/v1/channels")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	if data["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", data["count"])
	}
	channels := data["channels"].([]interface{})
	info := channels[0].(map[string]interface{})
	if info["name"] != "xqc" {
		t.Errorf("name = %v, want xqc", info["name"])
	}
	if info["buffered_messages"] != float64(3) {
		t.Errorf("buffered_messages = %v, want 3", info["buffered_messages"])
	}
}

func TestListHypeEvents(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedEvent(t, s, "xqc", base, 50)
	seedEvent(t, s, "xqc", base.Add(time.Minute), 75)
	seedEvent(t, s, "pokimane", base.Add(2*time.Minute), 60)

	server := newTestServer(t, HandlerDeps{Store: s})

	resp, err := http.Get(server.URL + "/api/v1/hype-events?channel=xqc")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	if data["count"] != float64(2) {
		t.Errorf("count = %v, want 2", data["count"])
	}
	if data["total"] != float64(2) {
		t.Errorf("total = %v, want 2", data["total"])
	}

	events := data["events"].([]interface{})
	first := events[0].(map[string]interface{})
	// Newest first.
	if first["velocity"] != float64(75) {
		t.Errorf("first velocity = %v, want 75", first["velocity"])
	}
}

func TestListHypeEventsBadSince(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Store: newTestStore(t)})

	resp, err := http.Get(server.URL + "/api/v1/hype-events?since=yesterday")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetHypeEvent(t *testing.T) {
	s := newTestStore(t)
	event := seedEvent(t, s, "xqc", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 42)

	server := newTestServer(t, HandlerDeps{Store: s})

	resp, err := http.Get(server.URL + "/api/v1/hype-events/" + itoa(event.ID))
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	if data["channel"] != "xqc" {
		t.Errorf("channel = %v, want xqc", data["channel"])
	}
	if data["velocity"] != float64(42) {
		t.Errorf("velocity = %v, want 42", data["velocity"])
	}
}

func TestGetHypeEventNotFound(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Store: newTestStore(t)})

	resp, err := http.Get(server.URL + "/api/v1/hype-events/99999")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetHypeEventBadID(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Store: newTestStore(t)})

	resp, err := http.Get(server.URL + "/api/v1/hype-events/abc")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecentHypeEvents(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	seedEvent(t, s, "xqc", now.Add(-30*time.Minute), 50)
	seedEvent(t, s, "xqc", now.Add(-3*time.Hour), 60)

	server := newTestServer(t, HandlerDeps{Store: s})

	resp, err := http.Get(server.URL + "/api/v1/hype-events/recent?hours=1")
	if err != nil {
		t.Fatalf("recent request: %v", err)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	if data["count"] != float64(1) {
		t.Errorf("count = %v, want 1 inside the window", data["count"])
	}
}

func TestRecentHypeEventsBadHours(t *testing.T) {
	server := newTestServer(t, HandlerDeps{Store: newTestStore(t)})

	resp, err := http.Get(server.URL + "/api/v1/hype-events/recent?hours=-2")
	if err != nil {
		t.Fatalf("recent request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExportHypeEventsCSV(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedEvent(t, s, "xqc", base.Add(time.Minute), 75)
	seedEvent(t, s, "xqc", base, 50)

	server := newTestServer(t, HandlerDeps{Store: s, MaxExportRows: 1000})

	resp, err := http.Get(server.URL + "/api/v1/hype-events/export?channel=xqc")
	if err != nil {
		t.Fatalf("export request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
	}
	if lines[0] != models.HypeEventCSVHeader {
		t.Errorf("header = %q, want %q", lines[0], models.HypeEventCSVHeader)
	}
	// Oldest first in exports.
	if !strings.Contains(lines[1], "50.0") {
		t.Errorf("first row = %q, want the older event", lines[1])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, HandlerDeps{})

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "websocket_clients") {
		t.Error("prometheus exposition should include pipeline metrics")
	}
}

func TestWebSocketStreaming(t *testing.T) {
	hub := websocket.NewHub(websocket.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	server := newTestServer(t, HandlerDeps{Hub: hub})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/metrics"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.TopicClientCount(websocket.TopicMetrics) == 1 })

	hub.BroadcastMetrics(&models.ChannelMetrics{
		Channel:           "xqc",
		MessagesPerSecond: 12,
		Timestamp:         time.Now().UTC(),
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame map[string]interface{}
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame["type"] != "metrics" {
		t.Errorf("frame type = %v, want metrics", frame["type"])
	}
	if frame["channel"] != "xqc" {
		t.Errorf("frame channel = %v, want xqc", frame["channel"])
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
