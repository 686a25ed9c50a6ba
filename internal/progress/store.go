package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clipsight/clipsight/internal/models"
)

// ErrNotFound reports that no detection job exists for the video.
var ErrNotFound = errors.New("detection job not found")

const (
	keyPrefix = "detect:job:"

	// ActiveTTL bounds how long a non-terminal job entry may linger. It sits
	// above the job wall-clock budget so a running job never expires under
	// the orchestrator; orphans are reaped by the janitor.
	ActiveTTL = 30 * time.Minute

	// RetentionTTL keeps terminal jobs queryable for a while after
	// completion or failure, then lets them expire.
	RetentionTTL = time.Hour
)

// Store keeps DetectionJob state in Redis with TTL expiry. One entry per
// video ID; the entry doubles as the duplicate-prevention lock: while a
// non-terminal entry exists, no second job may start for that video.
type Store struct {
	rdb *redis.Client
}

func NewStore(redisAddr string) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: redisAddr})}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func jobKey(videoID uuid.UUID) string {
	return keyPrefix + videoID.String()
}

// Get returns the job entry for a video, or ErrNotFound.
func (s *Store) Get(ctx context.Context, videoID uuid.UUID) (*models.DetectionJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(videoID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("progress get: %w", err)
	}
	var job models.DetectionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("progress decode: %w", err)
	}
	return &job, nil
}

// Claim atomically installs a pending job entry for the video unless a
// non-terminal one already exists. It returns the job now stored and
// whether the caller won the claim. A lingering terminal entry is replaced.
func (s *Store) Claim(ctx context.Context, job *models.DetectionJob) (*models.DetectionJob, bool, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, false, fmt.Errorf("progress encode: %w", err)
	}
	key := jobKey(job.VideoID)

	// Losing SetNX and then finding the key gone means it expired in the
	// gap; loop so the next pass either wins the claim or reads whichever
	// concurrent claimer did.
	for attempt := 0; attempt < 3; attempt++ {
		set, err := s.rdb.SetNX(ctx, key, data, ActiveTTL).Result()
		if err != nil {
			return nil, false, fmt.Errorf("progress claim: %w", err)
		}
		if set {
			return job, true, nil
		}

		existing, err := s.Get(ctx, job.VideoID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if !existing.Status.Terminal() {
			return existing, false, nil
		}

		// Prior run finished; replace it.
		if err := s.rdb.Set(ctx, key, data, ActiveTTL).Err(); err != nil {
			return nil, false, fmt.Errorf("progress claim replace: %w", err)
		}
		return job, true, nil
	}
	return nil, false, fmt.Errorf("progress claim: entry for video %s kept expiring mid-claim", job.VideoID)
}

// Put stores the job entry unconditionally. Terminal statuses get the
// shorter retention TTL so finished jobs expire on their own.
func (s *Store) Put(ctx context.Context, job *models.DetectionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("progress encode: %w", err)
	}
	ttl := ActiveTTL
	if job.Status.Terminal() {
		ttl = RetentionTTL
	}
	if err := s.rdb.Set(ctx, jobKey(job.VideoID), data, ttl).Err(); err != nil {
		return fmt.Errorf("progress put: %w", err)
	}
	return nil
}

// Advance updates stage and percent for a running job. Progress for a job is
// strictly monotonically non-decreasing: a write that would move the
// percentage backwards is coalesced into the stored value instead.
func (s *Store) Advance(ctx context.Context, videoID uuid.UUID, stage models.JobStage, percent int) error {
	job, err := s.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	if percent < job.ProgressPercent {
		percent = job.ProgressPercent
	}
	job.Status = models.JobRunning
	job.CurrentStage = stage
	job.ProgressPercent = percent
	return s.Put(ctx, job)
}

// Delete removes the job entry for a video.
func (s *Store) Delete(ctx context.Context, videoID uuid.UUID) error {
	if err := s.rdb.Del(ctx, jobKey(videoID)).Err(); err != nil {
		return fmt.Errorf("progress delete: %w", err)
	}
	return nil
}

// SweepOrphans scans for jobs stuck in a non-terminal status past the given
// age and marks them failed. Covers workers that died mid-run without
// writing a terminal state.
func (s *Store) SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error) {
	var swept int
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var job models.DetectionJob
		if err := json.Unmarshal(data, &job); err != nil {
			continue
		}
		if job.Status.Terminal() || time.Since(job.StartedAt) < maxAge {
			continue
		}
		job.Status = models.JobFailed
		job.ErrorMessage = "job abandoned: worker stopped reporting progress"
		if err := s.Put(ctx, &job); err == nil {
			swept++
		}
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("progress sweep: %w", err)
	}
	return swept, nil
}
