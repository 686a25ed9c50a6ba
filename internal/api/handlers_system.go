package api

import (
	"encoding/json"
	"net/http"

	"github.com/clipsight/clipsight/internal/version"
)

// ──────────────────── System ────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"status": "ok"},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"version":    version.Load().Version,
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

// ──────────────────── Settings ────────────────────

// Tunable keys surfaced through the settings API. Anything else is
// rejected so typos don't silently persist.
var allowedSettingKeys = map[string]bool{
	"default_sensitivity":  true,
	"custom_keywords":      true,
	"job_timeout_minutes":  true,
	"worker_concurrency":   true,
	"trigger_rate_per_min": true,
	"weight_audio":         true,
	"weight_scene":         true,
	"weight_speech":        true,
	"weight_keyword":       true,
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsRepo.GetAll()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for key := range req {
		if !allowedSettingKeys[key] {
			s.respondError(w, http.StatusBadRequest, "unknown setting key: "+key)
			return
		}
	}
	for key, value := range req {
		if err := s.settingsRepo.Set(key, value); err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to save setting "+key)
			return
		}
	}

	// Settings take effect on next config merge; running jobs keep the
	// parameters they started with.
	s.respondJSON(w, http.StatusOK, Response{Success: true})
}
