package janitor

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clipsight/clipsight/internal/progress"
	"github.com/clipsight/clipsight/internal/repository"
)

// Janitor runs periodic cleanup: orphaned job entries whose worker died
// without reaching a terminal state, and stale detected highlights whose
// video has been removed.
type Janitor struct {
	cron       *cron.Cron
	jobs       *progress.Store
	highlights *repository.HighlightRepository

	// StaleAfter marks a non-terminal job entry failed when it has not
	// advanced for this long.
	StaleAfter time.Duration
	// RetainDays bounds how long detected-only highlights outlive their video.
	RetainDays int
}

func New(jobs *progress.Store, highlights *repository.HighlightRepository) *Janitor {
	return &Janitor{
		cron:       cron.New(),
		jobs:       jobs,
		highlights: highlights,
		StaleAfter: 20 * time.Minute,
		RetainDays: 30,
	}
}

// Start registers the sweep schedules and begins the cron loop.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("*/5 * * * *", j.sweepJobs); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("30 3 * * *", j.sweepHighlights); err != nil {
		return err
	}
	j.cron.Start()
	log.Println("[janitor] sweeps scheduled (jobs every 5m, highlights daily)")
	return nil
}

func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Println("[janitor] stopped")
}

func (j *Janitor) sweepJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.jobs.SweepOrphans(ctx, j.StaleAfter)
	if err != nil {
		log.Printf("[janitor] job sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[janitor] marked %d orphaned jobs failed", n)
	}
}

func (j *Janitor) sweepHighlights() {
	n, err := j.highlights.DeleteStaleDetected(j.RetainDays)
	if err != nil {
		log.Printf("[janitor] highlight sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[janitor] removed %d stale highlights", n)
	}
}
