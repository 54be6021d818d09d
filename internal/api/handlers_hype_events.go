// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatpulse/chatpulse/internal/store"
)

// ListHypeEvents returns persisted hype events, newest first.
// Query parameters: channel, since (RFC3339), limit, offset.
func (h *Handler) ListHypeEvents(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR",
			"Event store is not configured", nil)
		return
	}

	filter := store.Filter{
		Channel: normalizeChannelName(r.URL.Query().Get("channel")),
		Limit:   getIntParam(r, "limit", 0),
		Offset:  getIntParam(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"since must be an RFC3339 timestamp", err)
			return
		}
		filter.Since = since
	}

	events, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"Failed to query hype events", err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"Failed to count hype events", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"total":  total,
		"offset": filter.Offset,
	})
}

// RecentHypeEvents returns events from the last N hours (default 24),
// optionally narrowed to one channel.
func (h *Handler) RecentHypeEvents(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR",
			"Event store is not configured", nil)
		return
	}

	hours := getFloatParam(r, "hours", 24)
	if hours <= 0 || hours > 24*365 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"hours must be in (0, 8760]", nil)
		return
	}

	filter := store.Filter{
		Channel: normalizeChannelName(r.URL.Query().Get("channel")),
		Since:   time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour))),
		Limit:   getIntParam(r, "limit", 0),
	}

	events, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"Failed to query recent hype events", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"hours":  hours,
	})
}

// GetHypeEvent returns a single event by ID.
func (h *Handler) GetHypeEvent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR",
			"Event store is not configured", nil)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Event ID must be an integer", err)
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND",
				"Hype event not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"Failed to load hype event", err)
		return
	}

	respondSuccess(w, http.StatusOK, event)
}

// ExportHypeEvents streams matching events as a CSV download, oldest
// first. Query parameters: channel, since (RFC3339).
func (h *Handler) ExportHypeEvents(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR",
			"Event store is not configured", nil)
		return
	}

	filter := store.Filter{
		Channel: normalizeChannelName(r.URL.Query().Get("channel")),
		Limit:   h.maxExportRows,
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"since must be an RFC3339 timestamp", err)
			return
		}
		filter.Since = since
	}

	filename := fmt.Sprintf("hype_events_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.store.ExportCSV(r.Context(), w, filter); err != nil {
		// Headers are gone by now; log and abort mid-stream.
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"CSV export failed", err)
	}
}
