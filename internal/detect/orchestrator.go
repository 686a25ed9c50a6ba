package detect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/analysis"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/scoring"
	"github.com/clipsight/clipsight/internal/transcript"
)

// ──────────────────── Collaborators ────────────────────

// JobStore is the cache-backed progress store for detection jobs.
type JobStore interface {
	Get(ctx context.Context, videoID uuid.UUID) (*models.DetectionJob, error)
	Put(ctx context.Context, job *models.DetectionJob) error
	Advance(ctx context.Context, videoID uuid.UUID, stage models.JobStage, percent int) error
}

// MediaSource resolves a video to a local file path for decoding.
type MediaSource interface {
	Fetch(ctx context.Context, video *models.Video) (string, error)
}

// TranscriptSource loads word-level timestamps for a video, or
// transcript.ErrNotFound when none exist.
type TranscriptSource interface {
	Get(path *string) ([]models.TranscriptWord, error)
}

// MediaExtractor decodes raw analyzer inputs from a media file.
type MediaExtractor interface {
	ExtractAudioSamples(ctx context.Context, filePath string) ([]float64, int, error)
	ExtractFrameDiffs(ctx context.Context, filePath string, fps float64) ([]analysis.FrameDiff, error)
	ProbeDuration(ctx context.Context, filePath string) (float64, error)
}

// HighlightWriter persists a finished run's highlights atomically.
type HighlightWriter interface {
	ReplaceForVideo(videoID uuid.UUID, highlights []models.Highlight) error
}

// EventNotifier broadcasts progress events to connected clients.
type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// ──────────────────── Configuration ────────────────────

// Config tunes a detection run.
type Config struct {
	Timeout        time.Duration // wall-clock budget per job
	MaxAttempts    int           // per-analyzer attempts before job failure
	RetryBaseDelay time.Duration // exponential backoff base
	FrameFPS       float64       // frame sampling rate for scene analysis

	Audio   analysis.AudioConfig
	Scene   analysis.SceneConfig
	Speech  analysis.SpeechConfig
	Keyword analysis.KeywordConfig
	Merge   scoring.MergeConfig
}

// DefaultConfig returns the stock orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		Timeout:        15 * time.Minute,
		MaxAttempts:    3,
		RetryBaseDelay: 2 * time.Second,
		FrameFPS:       2,
		Audio:          analysis.DefaultAudioConfig(),
		Scene:          analysis.DefaultSceneConfig(),
		Speech:         analysis.DefaultSpeechConfig(),
		Keyword:        analysis.DefaultKeywordConfig(),
		Merge:          scoring.DefaultMergeConfig(),
	}
}

// Progress band boundaries per stage. Analysis splits its band evenly
// across the analyzer groups still running.
const (
	pctDownloaded   = 10
	pctAnalyzed     = 80
	pctScored       = 90
	pctMerged       = 95
	pctDone         = 100
	analyzerGroups  = 3
	analysisPerStep = (pctAnalyzed - pctDownloaded) / analyzerGroups
)

// ──────────────────── Orchestrator ────────────────────

// Orchestrator sequences a detection run through its stages, reporting
// progress, retrying transient analyzer failures, and persisting ranked
// highlights on completion. One orchestrator instance owns a job's progress
// entry and highlight set exclusively while the job runs; the progress
// store's claim enforces that no second writer exists.
type Orchestrator struct {
	cfg         Config
	jobs        JobStore
	source      MediaSource
	transcripts TranscriptSource
	extractor   MediaExtractor
	writer      HighlightWriter
	notifier    EventNotifier
}

func NewOrchestrator(cfg Config, jobs JobStore, source MediaSource, transcripts TranscriptSource,
	extractor MediaExtractor, writer HighlightWriter, notifier EventNotifier) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	return &Orchestrator{
		cfg: cfg, jobs: jobs, source: source, transcripts: transcripts,
		extractor: extractor, writer: writer, notifier: notifier,
	}
}

// Run executes one detection job to a terminal state. The returned error is
// the job-level failure, already recorded in the progress store; callers
// decide whether to surface it to the task runner.
func (o *Orchestrator) Run(ctx context.Context, video *models.Video, job *models.DetectionJob) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	err := o.run(ctx, video, job)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrCancelled):
		o.finish(video.ID, job, models.JobCancelled, "")
	case errors.Is(err, context.DeadlineExceeded):
		o.finish(video.ID, job, models.JobFailed, fmt.Sprintf("%v after %s", ErrTimeout, o.cfg.Timeout))
	default:
		o.finish(video.ID, job, models.JobFailed, err.Error())
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context, video *models.Video, job *models.DetectionJob) error {
	videoID := video.ID
	log.Printf("Detect: starting run for video %s (sensitivity=%s)", videoID, job.Sensitivity)

	// ── downloading ──
	o.advance(ctx, videoID, models.StageDownloading, 0)
	filePath, err := o.source.Fetch(ctx, video)
	if err != nil {
		return fmt.Errorf("%w: fetch media: %v", ErrInputUnavailable, err)
	}
	duration := video.DurationSeconds
	if duration <= 0 {
		duration, err = o.extractor.ProbeDuration(ctx, filePath)
		if err != nil {
			return fmt.Errorf("%w: probe duration: %v", ErrInputUnavailable, err)
		}
	}

	words, err := o.transcripts.Get(video.TranscriptPath)
	if err != nil && !errors.Is(err, transcript.ErrNotFound) {
		return fmt.Errorf("%w: load transcript: %v", ErrInputUnavailable, err)
	}
	if errors.Is(err, transcript.ErrNotFound) {
		log.Printf("Detect: no transcript for video %s, speech scoring degrades to neutral", videoID)
		words = nil
	}
	o.advance(ctx, videoID, models.StageAnalyzingAudio, pctDownloaded)

	if err := o.checkCancelled(ctx, videoID); err != nil {
		return err
	}

	// ── analysis: the three groups are independent pure computations over
	// the same source and run concurrently. Scene windowing is deferred
	// until audio finishes because it records (not applies) alignment
	// against audio high-energy flags.
	var (
		audioWindows   []analysis.Window
		frameDiffs     []analysis.FrameDiff
		speechWindows  []analysis.Window
		keywordWindows []analysis.Window
	)
	keywordCfg := o.cfg.Keyword.WithCustomKeywords(job.CustomKeywords)

	groups := []struct {
		stage models.JobStage
		run   func(context.Context) error
	}{
		{models.StageAnalyzingAudio, func(ctx context.Context) error {
			samples, rate, err := o.extractor.ExtractAudioSamples(ctx, filePath)
			if err != nil {
				return err
			}
			audioWindows = analysis.AnalyzeAudioEnergy(samples, rate, duration, o.cfg.Audio)
			return nil
		}},
		{models.StageAnalyzingVideo, func(ctx context.Context) error {
			diffs, err := o.extractor.ExtractFrameDiffs(ctx, filePath, o.cfg.FrameFPS)
			if err != nil {
				return err
			}
			frameDiffs = diffs
			return nil
		}},
		{models.StageAnalyzingSpeech, func(ctx context.Context) error {
			speechWindows = analysis.AnalyzeSpeechPattern(words, duration, o.cfg.Speech)
			keywordWindows = analysis.AnalyzeKeywords(words, duration, keywordCfg)
			return nil
		}},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(groups))
	var doneMu sync.Mutex
	done := 0
	for i, g := range groups {
		wg.Add(1)
		go func(i int, stage models.JobStage, fn func(context.Context) error) {
			defer wg.Done()
			errs[i] = o.withRetries(ctx, string(stage), fn)
			// The store write stays inside the critical section: the
			// store's coalesce reads and writes in separate round trips,
			// so concurrent advances could land a lower percent after a
			// higher one. Serialized here, percents reach it in order.
			doneMu.Lock()
			done++
			pct := pctDownloaded + done*analysisPerStep
			o.advance(ctx, videoID, stage, pct)
			doneMu.Unlock()
		}(i, g.stage, g.run)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			// Any analyzer failure aborts the whole job; no partial results
			// are persisted.
			return err
		}
	}
	sceneWindows := analysis.AnalyzeSceneChanges(frameDiffs, duration, audioWindows, o.cfg.Scene)
	o.advance(ctx, videoID, models.StageScoring, pctAnalyzed)

	if err := o.checkCancelled(ctx, videoID); err != nil {
		return err
	}

	// ── scoring ──
	scorer := scoring.NewCompositeScorer(job.ScoreWeights)
	scored := scorer.Score(audioWindows, sceneWindows, speechWindows, keywordWindows)
	o.advance(ctx, videoID, models.StageMergingRanking, pctScored)

	// ── merging & ranking ──
	merger := scoring.NewSegmentMerger(o.cfg.Merge)
	segments := merger.Merge(scored, duration)
	highlights := scoring.Rank(segments, videoID, job.Sensitivity)
	o.advance(ctx, videoID, models.StagePersisting, pctMerged)

	if err := o.checkCancelled(ctx, videoID); err != nil {
		return err
	}

	// ── persisting ──
	if err := o.writer.ReplaceForVideo(videoID, highlights); err != nil {
		return fmt.Errorf("persist highlights: %w", err)
	}

	o.finish(videoID, job, models.JobCompleted, "")
	log.Printf("Detect: completed run for video %s (%d highlights from %d segments)", videoID, len(highlights), len(segments))
	return nil
}

// withRetries runs an analyzer group with exponential backoff. Context
// errors are never retried; they mean cancellation or budget exhaustion.
func (o *Orchestrator) withRetries(ctx context.Context, name string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < o.cfg.MaxAttempts {
			delay := o.cfg.RetryBaseDelay * (1 << (attempt - 1))
			log.Printf("Detect: %s attempt %d/%d failed: %v (retrying in %s)", name, attempt, o.cfg.MaxAttempts, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrAnalyzerFailure, name, lastErr)
}

// checkCancelled observes external cancellation between stage boundaries.
// Mid-analyzer cancellation is best-effort via the context; here the store
// is also consulted so an API-side cancel takes effect at the next boundary.
func (o *Orchestrator) checkCancelled(ctx context.Context, videoID uuid.UUID) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrCancelled
		}
		return ctx.Err()
	}
	job, err := o.jobs.Get(ctx, videoID)
	if err != nil {
		return nil // missing entry never aborts a run
	}
	if job.Status == models.JobCancelled {
		return ErrCancelled
	}
	return nil
}

// advance writes a stage/percent update and mirrors it to the notifier.
func (o *Orchestrator) advance(ctx context.Context, videoID uuid.UUID, stage models.JobStage, percent int) {
	if err := o.jobs.Advance(ctx, videoID, stage, percent); err != nil {
		log.Printf("Detect: progress update failed for %s: %v", videoID, err)
	}
	if o.notifier != nil {
		o.notifier.Broadcast("detect:progress", map[string]interface{}{
			"video_id": videoID.String(),
			"stage":    stage,
			"progress": percent,
		})
	}
}

// finish writes the terminal job state. A fresh context is used so terminal
// states land even when the run context is already dead.
func (o *Orchestrator) finish(videoID uuid.UUID, job *models.DetectionJob, status models.JobStatus, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job.Status = status
	job.ErrorMessage = errMsg
	switch status {
	case models.JobCompleted:
		job.ProgressPercent = pctDone
		job.CurrentStage = models.StageCompleted
	}
	if err := o.jobs.Put(ctx, job); err != nil {
		log.Printf("Detect: failed to store terminal state for %s: %v", videoID, err)
	}
	if o.notifier != nil {
		event := "detect:complete"
		if status != models.JobCompleted {
			event = "detect:" + string(status)
		}
		o.notifier.Broadcast(event, map[string]interface{}{
			"video_id": videoID.String(),
			"status":   status,
			"error":    errMsg,
		})
	}
}
