package api

import (
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/agrismart/assistant/internal/tools"
)

func (s *Server) handleItems(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"items": tools.Summarize(s.catalog.Items()),
	})
}

func (s *Server) handleToolCalls(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "audit log not configured")
		return
	}

	limit := parseIntParam(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	calls, err := s.audit.ToolCalls(r.Context(), r.URL.Query().Get("conversation_id"), limit)
	if err != nil {
		s.logger.Error("tool call query failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tool_calls": calls,
		"count":      len(calls),
	})
}

// maxTierHours bounds the tier-count window to one year.
const maxTierHours = 24 * 365

func (s *Server) handleTierCounts(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "audit log not configured")
		return
	}

	hours := parseIntParam(r, "hours", 24)
	hours = min(max(hours, 1), maxTierHours)
	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	counts, err := s.audit.TierCounts(r.Context(), start, end)
	if err != nil {
		s.logger.Error("tier count query failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"start": start.UTC().Format(time.RFC3339),
		"end":   end.UTC().Format(time.RFC3339),
		"tiers": counts,
	})
}

var bookingIDPattern = regexp.MustCompile(`^RNT-\d{1,6}$`)

func (s *Server) handleBookingQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !bookingIDPattern.MatchString(id) {
		s.errorResponse(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	size := parseIntParam(r, "size", 256)
	size = min(max(size, 64), 1024)

	png, err := qrcode.Encode(id, qrcode.Medium, size)
	if err != nil {
		s.logger.Error("qr encode failed", "booking_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "qr encode failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write qr image", "error", err)
	}
}
