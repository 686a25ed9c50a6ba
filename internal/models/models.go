package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ──────────────────── Enums ────────────────────

type HighlightType string

const (
	HighlightHighEnergy   HighlightType = "high_energy"
	HighlightKeyMoment    HighlightType = "key_moment"
	HighlightKeywordMatch HighlightType = "keyword_match"
	HighlightSceneChange  HighlightType = "scene_change"
)

type HighlightStatus string

const (
	StatusDetected HighlightStatus = "detected"
	StatusReviewed HighlightStatus = "reviewed"
	StatusExported HighlightStatus = "exported"
	StatusRejected HighlightStatus = "rejected"
)

// ValidHighlightStatus reports whether s is one of the known statuses.
func ValidHighlightStatus(s HighlightStatus) bool {
	switch s {
	case StatusDetected, StatusReviewed, StatusExported, StatusRejected:
		return true
	}
	return false
}

type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
	SensitivityMax    Sensitivity = "max"
)

// SensitivityPreset controls how many highlights are kept and how high
// their composite score must be. Both limits apply jointly.
type SensitivityPreset struct {
	MaxCount       int
	ScoreThreshold int
}

var sensitivityPresets = map[Sensitivity]SensitivityPreset{
	SensitivityLow:    {MaxCount: 5, ScoreThreshold: 80},
	SensitivityMedium: {MaxCount: 10, ScoreThreshold: 70},
	SensitivityHigh:   {MaxCount: 15, ScoreThreshold: 60},
	SensitivityMax:    {MaxCount: 20, ScoreThreshold: 50},
}

// PresetFor returns the selection preset for a sensitivity level.
// Unknown levels fall back to medium.
func PresetFor(s Sensitivity) SensitivityPreset {
	if p, ok := sensitivityPresets[s]; ok {
		return p
	}
	return sensitivityPresets[SensitivityMedium]
}

// ValidSensitivity reports whether s is a known sensitivity level.
func ValidSensitivity(s Sensitivity) bool {
	_, ok := sensitivityPresets[s]
	return ok
}

// ──────────────────── Score Weights ────────────────────

// ScoreWeights holds the relative weight of each component signal in the
// composite score. Weights must sum to 1.0.
type ScoreWeights struct {
	Audio   float64 `json:"audio"`
	Scene   float64 `json:"scene"`
	Speech  float64 `json:"speech"`
	Keyword float64 `json:"keyword"`
}

// DefaultScoreWeights returns the stock weighting: audio energy dominates,
// speech density second, scene changes and keywords share the rest.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Audio: 0.35, Scene: 0.20, Speech: 0.25, Keyword: 0.20}
}

const weightSumTolerance = 0.001

// Sum returns the total of all four weights.
func (w ScoreWeights) Sum() float64 {
	return w.Audio + w.Scene + w.Speech + w.Keyword
}

// Validate rejects weight sets that do not sum to 1.0 or contain
// negative components.
func (w ScoreWeights) Validate() error {
	if w.Audio < 0 || w.Scene < 0 || w.Speech < 0 || w.Keyword < 0 {
		return fmt.Errorf("score weights must be non-negative")
	}
	if math.Abs(w.Sum()-1.0) > weightSumTolerance {
		return fmt.Errorf("score weights must sum to 1.0 (got %.4f)", w.Sum())
	}
	return nil
}

// Normalized returns a copy of w scaled so the weights sum to 1.0.
// A zero-sum weight set normalizes to the defaults.
func (w ScoreWeights) Normalized() ScoreWeights {
	sum := w.Sum()
	if sum <= 0 {
		return DefaultScoreWeights()
	}
	return ScoreWeights{
		Audio:   w.Audio / sum,
		Scene:   w.Scene / sum,
		Speech:  w.Speech / sum,
		Keyword: w.Keyword / sum,
	}
}

// ──────────────────── Highlight ────────────────────

// Highlight is a persisted, ranked time window judged engaging enough to
// surface. The overall score is always the weighted, bonus-adjusted
// combination of the four component scores; it is never set independently.
type Highlight struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	VideoID              uuid.UUID       `json:"video_id" db:"video_id"`
	StartTime            float64         `json:"start_time" db:"start_time"`
	EndTime              float64         `json:"end_time" db:"end_time"`
	OverallScore         int             `json:"overall_score" db:"overall_score"`
	AudioEnergyScore     int             `json:"audio_energy_score" db:"audio_energy_score"`
	SceneChangeScore     int             `json:"scene_change_score" db:"scene_change_score"`
	SpeechDensityScore   int             `json:"speech_density_score" db:"speech_density_score"`
	KeywordScore         int             `json:"keyword_score" db:"keyword_score"`
	DetectedKeywords     pq.StringArray  `json:"detected_keywords" db:"detected_keywords"`
	ConfidenceLevel      float64         `json:"confidence_level" db:"confidence_level"`
	DurationSeconds      float64         `json:"duration_seconds" db:"duration_seconds"`
	Rank                 int             `json:"rank" db:"rank"`
	HighlightType        HighlightType   `json:"highlight_type" db:"highlight_type"`
	ContextBeforeSeconds float64         `json:"context_before_seconds" db:"context_before_seconds"`
	ContextAfterSeconds  float64         `json:"context_after_seconds" db:"context_after_seconds"`
	Status               HighlightStatus `json:"status" db:"status"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// ──────────────────── Video ────────────────────

// Video is the read model for an owning media reference. Upload and
// lifecycle are owned by the surrounding product; the engine only reads
// the file path, transcript path, and duration.
type Video struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	FilePath        string    `json:"file_path" db:"file_path"`
	TranscriptPath  *string   `json:"transcript_path,omitempty" db:"transcript_path"`
	DurationSeconds float64   `json:"duration_seconds" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ──────────────────── Detection Job ────────────────────

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

type JobStage string

const (
	StagePending         JobStage = "pending"
	StageDownloading     JobStage = "downloading"
	StageAnalyzingAudio  JobStage = "analyzing_audio"
	StageAnalyzingVideo  JobStage = "analyzing_video"
	StageAnalyzingSpeech JobStage = "analyzing_speech_keyword"
	StageScoring         JobStage = "scoring"
	StageMergingRanking  JobStage = "merging_ranking"
	StagePersisting      JobStage = "persisting"
	StageCompleted       JobStage = "completed"
)

// DetectionJob is the transient, cache-backed record of one detection run.
// It lives in the progress store under the video ID and expires a fixed
// time after reaching a terminal status.
type DetectionJob struct {
	JobID           string       `json:"job_id"`
	VideoID         uuid.UUID    `json:"video_id"`
	Status          JobStatus    `json:"status"`
	ProgressPercent int          `json:"progress_percent"`
	CurrentStage    JobStage     `json:"current_stage"`
	Sensitivity     Sensitivity  `json:"sensitivity"`
	CustomKeywords  []string     `json:"custom_keywords,omitempty"`
	ScoreWeights    ScoreWeights `json:"score_weights"`
	StartedAt       time.Time    `json:"started_at"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}

// ──────────────────── Transcript ────────────────────

// TranscriptWord is a single word with its aligned time span in seconds.
type TranscriptWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
