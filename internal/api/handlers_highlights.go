package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/repository"
)

// ──────────────────── Highlights ────────────────────

// handleListHighlights returns a video's highlights, filterable by status
// and minimum score, ordered by rank unless a sort is given.
func (s *Server) handleListHighlights(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	opts := repository.ListOptions{Sort: r.URL.Query().Get("sort")}
	if v := r.URL.Query().Get("status"); v != "" {
		st := models.HighlightStatus(v)
		if !models.ValidHighlightStatus(st) {
			s.respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		opts.Status = &st
	}
	if v := r.URL.Query().Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			s.respondError(w, http.StatusBadRequest, "min_score must be 0-100")
			return
		}
		opts.MinScore = &n
	}
	opts.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	opts.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	highlights, total, err := s.highlightRepo.ListByVideo(videoID, opts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list highlights")
		return
	}
	if highlights == nil {
		highlights = []*models.Highlight{}
	}

	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"highlights": highlights,
			"total":      total,
		},
	})
}

func (s *Server) handleGetHighlight(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid highlight ID")
		return
	}

	highlight, err := s.highlightRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "highlight not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to get highlight")
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: highlight})
}

// handleUpdateHighlight applies a partial update. Only rank, status, and the
// time range are editable; scores are detection output and stay fixed.
func (s *Server) handleUpdateHighlight(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid highlight ID")
		return
	}

	var req struct {
		Rank      *int     `json:"rank,omitempty"`
		Status    *string  `json:"status,omitempty"`
		StartTime *float64 `json:"start_time,omitempty"`
		EndTime   *float64 `json:"end_time,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := repository.HighlightUpdate{Rank: req.Rank, StartTime: req.StartTime, EndTime: req.EndTime}
	if req.Status != nil {
		st := models.HighlightStatus(*req.Status)
		if !models.ValidHighlightStatus(st) {
			s.respondError(w, http.StatusBadRequest, "invalid status (must be detected, reviewed, exported, or rejected)")
			return
		}
		upd.Status = &st
	}
	if req.Rank != nil && *req.Rank < 1 {
		s.respondError(w, http.StatusBadRequest, "rank must be positive")
		return
	}
	if req.StartTime != nil || req.EndTime != nil {
		existing, err := s.highlightRepo.GetByID(id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.respondError(w, http.StatusNotFound, "highlight not found")
				return
			}
			s.respondError(w, http.StatusInternalServerError, "failed to get highlight")
			return
		}
		start, end := existing.StartTime, existing.EndTime
		if req.StartTime != nil {
			start = *req.StartTime
		}
		if req.EndTime != nil {
			end = *req.EndTime
		}
		if start < 0 || end <= start {
			s.respondError(w, http.StatusBadRequest, "invalid time range")
			return
		}
	}

	highlight, err := s.highlightRepo.Update(id, upd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "highlight not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to update highlight")
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: highlight})
}

// handleDeleteHighlight rejects a highlight (soft delete). ?hard=true
// removes the row entirely.
func (s *Server) handleDeleteHighlight(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid highlight ID")
		return
	}

	if r.URL.Query().Get("hard") == "true" {
		err = s.highlightRepo.HardDelete(id)
	} else {
		err = s.highlightRepo.SoftDelete(id)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "highlight not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to delete highlight")
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true})
}
