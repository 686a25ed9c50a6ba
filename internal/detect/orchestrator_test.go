package detect

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/analysis"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/transcript"
)

// ──────────────────── Fakes ────────────────────

type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.DetectionJob
	percents []int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*models.DetectionJob{}}
}

func (s *fakeJobStore) Get(ctx context.Context, videoID uuid.UUID) (*models.DetectionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[videoID]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) Put(ctx context.Context, job *models.DetectionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.VideoID] = &cp
	return nil
}

// Advance mirrors the real store: terminal entries are left alone and a
// lower percent coalesces into the stored value.
func (s *fakeJobStore) Advance(ctx context.Context, videoID uuid.UUID, stage models.JobStage, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[videoID]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.CurrentStage = stage
	if percent > job.ProgressPercent {
		job.ProgressPercent = percent
	}
	job.Status = models.JobRunning
	s.percents = append(s.percents, job.ProgressPercent)
	return nil
}

func (s *fakeJobStore) status(videoID uuid.UUID) models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[videoID]; ok {
		return job.Status
	}
	return ""
}

// gappedJobStore mirrors the real store's Advance shape, where the coalesce
// check reads in one round trip and writes in another. The sleep widens the
// gap so interleaved callers would coalesce against stale reads.
type gappedJobStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.DetectionJob
	percents []int
}

func newGappedJobStore() *gappedJobStore {
	return &gappedJobStore{jobs: map[uuid.UUID]*models.DetectionJob{}}
}

func (s *gappedJobStore) Get(ctx context.Context, videoID uuid.UUID) (*models.DetectionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[videoID]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *job
	return &cp, nil
}

func (s *gappedJobStore) Put(ctx context.Context, job *models.DetectionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.VideoID] = &cp
	return nil
}

func (s *gappedJobStore) Advance(ctx context.Context, videoID uuid.UUID, stage models.JobStage, percent int) error {
	read, err := s.Get(ctx, videoID)
	if err != nil || read.Status.Terminal() {
		return err
	}
	time.Sleep(2 * time.Millisecond) // read-to-write round-trip gap
	if percent < read.ProgressPercent {
		percent = read.ProgressPercent
	}
	read.Status = models.JobRunning
	read.CurrentStage = stage
	read.ProgressPercent = percent

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *read
	s.jobs[videoID] = &cp
	s.percents = append(s.percents, percent)
	return nil
}

type fakeSource struct {
	err error
}

func (f *fakeSource) Fetch(ctx context.Context, video *models.Video) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/" + video.ID.String() + ".mp4", nil
}

type fakeTranscripts struct {
	words []models.TranscriptWord
}

func (f *fakeTranscripts) Get(path *string) ([]models.TranscriptWord, error) {
	if f.words == nil {
		return nil, transcript.ErrNotFound
	}
	return f.words, nil
}

type fakeExtractor struct {
	mu         sync.Mutex
	samples    []float64
	rate       int
	diffs      []analysis.FrameDiff
	duration   float64
	audioFails int // fail this many audio extractions before succeeding
	attempts   int
}

func (f *fakeExtractor) ExtractAudioSamples(ctx context.Context, filePath string) ([]float64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.audioFails > 0 {
		f.audioFails--
		return nil, 0, errors.New("decoder hiccup")
	}
	return f.samples, f.rate, nil
}

func (f *fakeExtractor) ExtractFrameDiffs(ctx context.Context, filePath string, fps float64) ([]analysis.FrameDiff, error) {
	return f.diffs, nil
}

func (f *fakeExtractor) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	return f.duration, nil
}

type fakeWriter struct {
	mu         sync.Mutex
	called     bool
	highlights []models.Highlight
}

func (f *fakeWriter) ReplaceForVideo(videoID uuid.UUID, highlights []models.Highlight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.highlights = highlights
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Broadcast(event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) has(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

// ──────────────────── Fixtures ────────────────────

func loudSamples(seconds, rate int) []float64 {
	out := make([]float64, seconds*rate)
	for i := range out {
		out[i] = 1.0
	}
	return out
}

func hardCuts(duration, step float64) []analysis.FrameDiff {
	var diffs []analysis.FrameDiff
	for t := step; t < duration; t += step {
		diffs = append(diffs, analysis.FrameDiff{Timestamp: t, Diff: 0.9})
	}
	return diffs
}

func excitedTranscript(duration float64) []models.TranscriptWord {
	vocab := []string{"this", "is", "amazing", "and", "incredible", "stuff"}
	var words []models.TranscriptWord
	step := 1.0 / 3.0
	t := 0.0
	for i := 0; t+step <= duration; i++ {
		words = append(words, models.TranscriptWord{
			Word:  vocab[i%len(vocab)],
			Start: t,
			End:   t + step,
		})
		t += step
	}
	return words
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func newTestJob(videoID uuid.UUID) *models.DetectionJob {
	return &models.DetectionJob{
		JobID:        uuid.NewString(),
		VideoID:      videoID,
		Status:       models.JobPending,
		CurrentStage: models.StagePending,
		Sensitivity:  models.SensitivityMedium,
		ScoreWeights: models.DefaultScoreWeights(),
		StartedAt:    time.Now().UTC(),
	}
}

// ──────────────────── Tests ────────────────────

func TestOrchestratorCompletesAndPersists(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, Title: "clip", FilePath: "clip.mp4", DurationSeconds: 20}
	job := newTestJob(videoID)

	store := newFakeJobStore()
	store.Put(context.Background(), job)
	writer := &fakeWriter{}
	notifier := &fakeNotifier{}
	extractor := &fakeExtractor{
		samples:  loudSamples(20, 100),
		rate:     100,
		diffs:    hardCuts(20, 0.25),
		duration: 20,
	}

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{words: excitedTranscript(20)}, extractor, writer, notifier)
	if err := o.Run(context.Background(), video, job); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := store.status(videoID); got != models.JobCompleted {
		t.Errorf("terminal status %s, want completed", got)
	}
	if !writer.called {
		t.Fatal("highlights never persisted")
	}
	if len(writer.highlights) == 0 {
		t.Error("loud, cut-heavy, keyword-dense media produced no highlights")
	}
	for _, h := range writer.highlights {
		if h.OverallScore < 0 || h.OverallScore > 100 {
			t.Errorf("highlight score %d outside 0-100", h.OverallScore)
		}
	}
	if !notifier.has("detect:complete") {
		t.Errorf("completion never broadcast, events: %v", notifier.events)
	}

	// Stage progress never moves backwards.
	prev := -1
	for _, p := range store.percents {
		if p < prev {
			t.Fatalf("progress went backwards: %v", store.percents)
		}
		prev = p
	}
}

// Stored progress must never regress even when the store's coalesce check
// and write are separate round trips, which is how the Redis store behaves.
func TestOrchestratorProgressMonotonicWithSlowStore(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, Title: "clip", FilePath: "clip.mp4", DurationSeconds: 20}
	job := newTestJob(videoID)

	store := newGappedJobStore()
	store.Put(context.Background(), job)
	extractor := &fakeExtractor{
		samples:  loudSamples(20, 100),
		rate:     100,
		diffs:    hardCuts(20, 0.25),
		duration: 20,
	}

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{words: excitedTranscript(20)}, extractor, &fakeWriter{}, &fakeNotifier{})
	if err := o.Run(context.Background(), video, job); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	prev := -1
	for _, p := range store.percents {
		if p < prev {
			t.Fatalf("stored progress regressed: %v", store.percents)
		}
		prev = p
	}
	final, err := store.Get(context.Background(), videoID)
	if err != nil {
		t.Fatalf("job entry missing after run: %v", err)
	}
	if final.Status != models.JobCompleted || final.ProgressPercent != 100 {
		t.Errorf("final state %s at %d%%, want completed at 100%%", final.Status, final.ProgressPercent)
	}
}

func TestOrchestratorMissingTranscriptDegrades(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, FilePath: "clip.mp4", DurationSeconds: 20}
	job := newTestJob(videoID)

	store := newFakeJobStore()
	store.Put(context.Background(), job)
	writer := &fakeWriter{}
	extractor := &fakeExtractor{samples: loudSamples(20, 100), rate: 100, diffs: hardCuts(20, 0.25), duration: 20}

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{}, extractor, writer, &fakeNotifier{})
	if err := o.Run(context.Background(), video, job); err != nil {
		t.Fatalf("missing transcript must not fail the job: %v", err)
	}
	if got := store.status(videoID); got != models.JobCompleted {
		t.Errorf("terminal status %s, want completed", got)
	}
}

func TestOrchestratorUnavailableInput(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, FilePath: "gone.mp4"}
	job := newTestJob(videoID)

	store := newFakeJobStore()
	store.Put(context.Background(), job)
	notifier := &fakeNotifier{}

	o := NewOrchestrator(testConfig(), store, &fakeSource{err: errors.New("no such file")}, &fakeTranscripts{}, &fakeExtractor{}, &fakeWriter{}, notifier)
	err := o.Run(context.Background(), video, job)
	if !errors.Is(err, ErrInputUnavailable) {
		t.Fatalf("err %v, want ErrInputUnavailable", err)
	}
	if got := store.status(videoID); got != models.JobFailed {
		t.Errorf("terminal status %s, want failed", got)
	}
	if !notifier.has("detect:failed") {
		t.Errorf("failure never broadcast, events: %v", notifier.events)
	}
}

func TestOrchestratorRetriesTransientAnalyzerFailure(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, FilePath: "clip.mp4", DurationSeconds: 10}
	job := newTestJob(videoID)

	store := newFakeJobStore()
	store.Put(context.Background(), job)
	extractor := &fakeExtractor{
		samples:    loudSamples(10, 100),
		rate:       100,
		duration:   10,
		audioFails: 2, // two failures, third attempt succeeds
	}

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{}, extractor, &fakeWriter{}, &fakeNotifier{})
	if err := o.Run(context.Background(), video, job); err != nil {
		t.Fatalf("run should survive two transient failures: %v", err)
	}
	if extractor.attempts != 3 {
		t.Errorf("audio extraction attempts %d, want 3", extractor.attempts)
	}
}

func TestOrchestratorExhaustedRetriesFailJob(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, FilePath: "clip.mp4", DurationSeconds: 10}
	job := newTestJob(videoID)

	store := newFakeJobStore()
	store.Put(context.Background(), job)
	writer := &fakeWriter{}
	extractor := &fakeExtractor{duration: 10, audioFails: 99}

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{}, extractor, writer, &fakeNotifier{})
	err := o.Run(context.Background(), video, job)
	if !errors.Is(err, ErrAnalyzerFailure) {
		t.Fatalf("err %v, want ErrAnalyzerFailure", err)
	}
	if got := store.status(videoID); got != models.JobFailed {
		t.Errorf("terminal status %s, want failed", got)
	}
	if writer.called {
		t.Error("no partial results may be persisted on analyzer failure")
	}
	if !strings.Contains(err.Error(), "decoder hiccup") {
		t.Errorf("analyzer failure should carry the underlying error, got %v", err)
	}
}

func TestOrchestratorObservesStoredCancellation(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, FilePath: "clip.mp4", DurationSeconds: 10}
	job := newTestJob(videoID)
	job.Status = models.JobCancelled // cancelled before the first boundary check

	store := newFakeJobStore()
	store.Put(context.Background(), job)
	writer := &fakeWriter{}
	extractor := &fakeExtractor{samples: loudSamples(10, 100), rate: 100, duration: 10}

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{}, extractor, writer, &fakeNotifier{})
	err := o.Run(context.Background(), video, job)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err %v, want ErrCancelled", err)
	}
	if got := store.status(videoID); got != models.JobCancelled {
		t.Errorf("terminal status %s, want cancelled", got)
	}
	if writer.called {
		t.Error("cancelled run must not persist highlights")
	}
}

func TestOrchestratorContextCancellation(t *testing.T) {
	videoID := uuid.New()
	video := &models.Video{ID: videoID, FilePath: "clip.mp4", DurationSeconds: 10}
	job := newTestJob(videoID)

	store := newFakeJobStore()
	store.Put(context.Background(), job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(testConfig(), store, &fakeSource{}, &fakeTranscripts{}, &fakeExtractor{duration: 10}, &fakeWriter{}, &fakeNotifier{})
	err := o.Run(ctx, video, job)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err %v, want ErrCancelled", err)
	}
}
