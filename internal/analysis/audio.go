package analysis

import "math"

// ──────────────────── Audio Energy ────────────────────

// AudioConfig tunes the audio energy analyzer.
type AudioConfig struct {
	WindowSeconds    float64 // analysis window length (default 0.5s)
	NoiseFloorRMS    float64 // absolute RMS floor treated as silence
	SustainedSeconds float64 // minimum run length for the sustained-high flag
	SuddenDelta      int     // score jump over a preceding quiet window
}

// DefaultAudioConfig returns the stock analyzer tuning.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		WindowSeconds:    0.5,
		NoiseFloorRMS:    0.005,
		SustainedSeconds: 3.0,
		SuddenDelta:      40,
	}
}

// Score bands shared by all analyzers: quiet/background 0-49, medium 50-79,
// high 80-100.
const (
	bandMedium = 50
	bandHigh   = 80
)

// AnalyzeAudioEnergy computes a windowed 0-100 energy score from mono PCM
// samples. Each window's RMS is normalized against the media's own peak
// window (or the configured floor when the whole track is quiet), then
// annotated with sustained-run and sudden-change flags for the composite
// bonuses. Missing or silent audio scores 0 everywhere; it is not an error.
func AnalyzeAudioEnergy(samples []float64, sampleRate int, duration float64, cfg AudioConfig) []Window {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 0.5
	}
	windows := NewGrid(duration, cfg.WindowSeconds)
	if len(windows) == 0 {
		return nil
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return windows // all zero scores
	}

	// Per-window RMS
	rms := make([]float64, len(windows))
	perWindow := int(float64(sampleRate) * cfg.WindowSeconds)
	if perWindow < 1 {
		perWindow = 1
	}
	var peak float64
	for i := range windows {
		lo := i * perWindow
		if lo >= len(samples) {
			break
		}
		hi := lo + perWindow
		if hi > len(samples) {
			hi = len(samples)
		}
		var sum float64
		for _, s := range samples[lo:hi] {
			sum += s * s
		}
		rms[i] = math.Sqrt(sum / float64(hi-lo))
		if rms[i] > peak {
			peak = rms[i]
		}
	}

	// Normalize against the track's own peak, with the noise floor as a
	// lower reference so near-silent tracks do not inflate to full scale.
	ref := peak
	if ref < cfg.NoiseFloorRMS {
		// Whole track is effectively silent.
		return windows
	}
	for i := range windows {
		if rms[i] <= cfg.NoiseFloorRMS {
			continue
		}
		windows[i].Score = clampScore(rms[i] / ref * 100)
	}

	flagSustainedRuns(windows, cfg)
	flagSuddenChanges(windows, cfg)
	return windows
}

// flagSustainedRuns marks contiguous high-band windows whose combined span
// exceeds the sustained-run minimum.
func flagSustainedRuns(windows []Window, cfg AudioConfig) {
	minLen := cfg.SustainedSeconds
	if minLen <= 0 {
		minLen = 3.0
	}
	runStart := -1
	for i := 0; i <= len(windows); i++ {
		high := i < len(windows) && windows[i].Score >= bandHigh
		if high && runStart < 0 {
			runStart = i
			continue
		}
		if !high && runStart >= 0 {
			span := windows[i-1].End - windows[runStart].Start
			if span > minLen {
				for j := runStart; j < i; j++ {
					windows[j].Flags.SustainedHighEnergy = true
				}
			}
			runStart = -1
		}
	}
}

// flagSuddenChanges marks windows whose score jumps past the configured
// delta over the immediately preceding quiet window.
func flagSuddenChanges(windows []Window, cfg AudioConfig) {
	delta := cfg.SuddenDelta
	if delta <= 0 {
		delta = 40
	}
	for i := 1; i < len(windows); i++ {
		prev := windows[i-1]
		if prev.Score < bandMedium && windows[i].Score-prev.Score >= delta {
			windows[i].Flags.SuddenEnergyChange = true
		}
	}
}
