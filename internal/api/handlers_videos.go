package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/models"
)

// ──────────────────── Videos ────────────────────

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	videos, total, err := s.videoRepo.List(limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}

	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"videos": videos,
			"total":  total,
		},
	})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	video, err := s.videoRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "video not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to get video")
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: video})
}

// handleCreateVideo registers a media file for detection. The path is
// relative to the configured media directory.
func (s *Server) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title          string  `json:"title"`
		FilePath       string  `json:"file_path"`
		TranscriptPath *string `json:"transcript_path,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.FilePath == "" {
		s.respondError(w, http.StatusBadRequest, "title and file_path are required")
		return
	}

	video := &models.Video{
		Title:          req.Title,
		FilePath:       req.FilePath,
		TranscriptPath: req.TranscriptPath,
	}
	if err := s.videoRepo.Create(video); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	s.respondJSON(w, http.StatusCreated, Response{Success: true, Data: video})
}
