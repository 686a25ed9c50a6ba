package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/jobs"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/progress"
)

// ──────────────────── Detection ────────────────────

type detectRequest struct {
	Sensitivity    string               `json:"sensitivity,omitempty"`
	CustomKeywords []string             `json:"custom_keywords,omitempty"`
	ScoreWeights   *models.ScoreWeights `json:"score_weights,omitempty"`
}

type detectResponse struct {
	JobID    string `json:"job_id"`
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	Existing bool   `json:"existing,omitempty"`
}

// handleTriggerDetect starts a detection run for a video. Triggering a video
// with a run already in flight returns the existing job instead of a new one.
func (s *Server) handleTriggerDetect(w http.ResponseWriter, r *http.Request) {
	if !s.triggerLimit.Allow() {
		w.Header().Set("Retry-After", "60")
		s.respondError(w, http.StatusTooManyRequests, "detection trigger rate exceeded, retry later")
		return
	}

	videoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sensitivity := s.config.DefaultSensitivity
	if req.Sensitivity != "" {
		sensitivity = models.Sensitivity(req.Sensitivity)
		if !models.ValidSensitivity(sensitivity) {
			s.respondError(w, http.StatusBadRequest, "invalid sensitivity (must be low, medium, high, or max)")
			return
		}
	}

	weights := s.config.DefaultWeights
	if req.ScoreWeights != nil {
		weights = *req.ScoreWeights
		if err := weights.Validate(); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if _, err := s.videoRepo.GetByID(videoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(w, http.StatusNotFound, "video not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	keywords := req.CustomKeywords
	if keywords == nil {
		keywords = s.config.CustomKeywords
	}

	job := &models.DetectionJob{
		JobID:          uuid.NewString(),
		VideoID:        videoID,
		Status:         models.JobPending,
		CurrentStage:   models.StagePending,
		Sensitivity:    sensitivity,
		CustomKeywords: keywords,
		ScoreWeights:   weights,
		StartedAt:      time.Now().UTC(),
	}

	stored, claimed, err := s.jobStore.Claim(r.Context(), job)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to register job")
		return
	}
	if !claimed {
		// Idempotent: the in-flight job answers for this trigger too.
		s.respondJSON(w, http.StatusOK, Response{Success: true, Data: detectResponse{
			JobID:    stored.JobID,
			VideoID:  videoID.String(),
			Status:   string(stored.Status),
			Existing: true,
		}})
		return
	}

	payload := jobs.DetectPayload{VideoID: videoID.String()}
	if _, err := s.jobQueue.EnqueueUnique(jobs.TaskDetectHighlights, payload, jobs.DetectTaskID(videoID)); err != nil {
		job.Status = models.JobFailed
		job.ErrorMessage = "enqueue failed"
		s.jobStore.Put(r.Context(), job)
		s.respondError(w, http.StatusInternalServerError, "failed to enqueue detection")
		return
	}

	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: detectResponse{
		JobID:   job.JobID,
		VideoID: videoID.String(),
		Status:  string(job.Status),
	}})
}

type progressResponse struct {
	JobID               string           `json:"job_id"`
	VideoID             string           `json:"video_id"`
	Status              models.JobStatus `json:"status"`
	Stage               models.JobStage  `json:"current_stage"`
	ProgressPercent     int              `json:"progress_percent"`
	EstimatedRemainingS *int             `json:"estimated_time_remaining_seconds,omitempty"`
	ErrorMessage        string           `json:"error_message,omitempty"`
}

// handleDetectProgress reports the current stage and percent of a run, with
// a remaining-time estimate extrapolated from elapsed wall time.
func (s *Server) handleDetectProgress(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	job, err := s.jobStore.Get(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "no detection job for video")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	resp := progressResponse{
		JobID:           job.JobID,
		VideoID:         videoID.String(),
		Status:          job.Status,
		Stage:           job.CurrentStage,
		ProgressPercent: job.ProgressPercent,
		ErrorMessage:    job.ErrorMessage,
	}
	if est := estimateRemaining(job); est != nil {
		resp.EstimatedRemainingS = est
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: resp})
}

// estimateRemaining extrapolates linearly from elapsed time and percent
// done. Early in a run the sample is too thin to be meaningful, so nothing
// is estimated below 10 percent.
func estimateRemaining(job *models.DetectionJob) *int {
	if job.Status.Terminal() || job.ProgressPercent < 10 {
		return nil
	}
	elapsed := time.Since(job.StartedAt).Seconds()
	if elapsed <= 0 {
		return nil
	}
	remaining := int(elapsed * float64(100-job.ProgressPercent) / float64(job.ProgressPercent))
	return &remaining
}

// handleCancelDetect marks a running job cancelled. The worker observes the
// flag at its next stage boundary; already-finished jobs are not reopened.
func (s *Server) handleCancelDetect(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid video ID")
		return
	}

	job, err := s.jobStore.Get(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "no detection job for video")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job.Status.Terminal() {
		s.respondError(w, http.StatusConflict, "job already "+string(job.Status))
		return
	}

	job.Status = models.JobCancelled
	if err := s.jobStore.Put(r.Context(), job); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}

	s.wsHub.Broadcast("detect:cancelled", map[string]interface{}{
		"video_id": videoID.String(),
		"status":   models.JobCancelled,
	})
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{
		"job_id": job.JobID,
		"status": string(models.JobCancelled),
	}})
}
