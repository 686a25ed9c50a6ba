package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/clipsight/clipsight/internal/detect"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/progress"
)

// VideoFinder resolves the video row a queued task refers to.
type VideoFinder interface {
	GetByID(id uuid.UUID) (*models.Video, error)
}

type DetectPayload struct {
	VideoID string `json:"video_id"`
}

// DetectTaskID is the deterministic task ID for a video's detection job,
// shared between enqueue and duplicate checks.
func DetectTaskID(videoID uuid.UUID) string {
	return "detect:" + videoID.String()
}

// NewDetectHandler runs a claimed detection job to a terminal state. The
// API layer claims the progress entry before enqueueing; if the claim is
// gone by the time the worker picks the task up, the task is dropped.
func NewDetectHandler(orch *detect.Orchestrator, videos VideoFinder, jobs *progress.Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DetectPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal detect payload: %w", err)
		}
		videoID, err := uuid.Parse(payload.VideoID)
		if err != nil {
			return fmt.Errorf("invalid video_id %q: %w", payload.VideoID, err)
		}

		job, err := jobs.Get(ctx, videoID)
		if err != nil {
			if errors.Is(err, progress.ErrNotFound) {
				log.Printf("Job: detect task for %s has no claim, dropping", videoID)
				return nil
			}
			return fmt.Errorf("load job state: %w", err)
		}
		if job.Status.Terminal() {
			log.Printf("Job: detect task for %s already %s, dropping", videoID, job.Status)
			return nil
		}

		video, err := videos.GetByID(videoID)
		if err != nil {
			markLookupFailure(ctx, jobs, job, fmt.Sprintf("video %s not found", videoID))
			return nil
		}

		log.Printf("Job: detect starting for video %s (job %s)", videoID, job.JobID)
		if err := orch.Run(ctx, video, job); err != nil {
			// Terminal state is already recorded by the run. Returning nil
			// keeps asynq from re-running a job that handled its own retries.
			log.Printf("Job: detect for video %s ended: %v", videoID, err)
		}
		return nil
	}
}

func markLookupFailure(ctx context.Context, jobs *progress.Store, job *models.DetectionJob, msg string) {
	job.Status = models.JobFailed
	job.ErrorMessage = msg
	if err := jobs.Put(ctx, job); err != nil {
		log.Printf("Job: failed to record lookup failure: %v", err)
	}
}
