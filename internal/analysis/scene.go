package analysis

// ──────────────────── Scene Change ────────────────────

// FrameDiff is the difference metric between two consecutive sampled frames,
// normalized to [0,1]. Produced by the media extraction layer (ffmpeg scene
// filter at 1-2 fps for cost control).
type FrameDiff struct {
	Timestamp float64 `json:"timestamp"`
	Diff      float64 `json:"diff"`
}

// SceneConfig tunes the scene change analyzer.
type SceneConfig struct {
	WindowSeconds       float64 // analysis window length (default 1.0s)
	TransitionThreshold float64 // frame diff counted as a cut (default 0.3)
	FullScaleCuts       int     // cuts per window that saturate the frequency term
}

// DefaultSceneConfig returns the stock analyzer tuning.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		WindowSeconds:       1.0,
		TransitionThreshold: 0.3,
		FullScaleCuts:       3,
	}
}

// AnalyzeSceneChanges scores each window from the frequency of frame diffs
// exceeding the transition threshold and the magnitude of the largest diff
// inside it. Frequency and magnitude contribute half the scale each, so a
// single hard cut scores medium and repeated hard cuts score high.
//
// audioHighs are the audio analyzer's windows; when a window's strongest
// transition lands inside an audio window carrying a high-energy flag, the
// alignment is recorded on the flags. The timing bonus itself is applied by
// the composite scorer, not here, so it cannot be double-counted.
func AnalyzeSceneChanges(diffs []FrameDiff, duration float64, audioHighs []Window, cfg SceneConfig) []Window {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 1.0
	}
	if cfg.TransitionThreshold <= 0 {
		cfg.TransitionThreshold = 0.3
	}
	if cfg.FullScaleCuts <= 0 {
		cfg.FullScaleCuts = 3
	}
	windows := NewGrid(duration, cfg.WindowSeconds)
	if len(windows) == 0 || len(diffs) == 0 {
		return windows
	}

	di := 0
	for i := range windows {
		cuts := 0
		var maxDiff, maxDiffAt float64
		for di < len(diffs) && diffs[di].Timestamp < windows[i].End {
			d := diffs[di]
			if d.Timestamp >= windows[i].Start {
				if d.Diff >= cfg.TransitionThreshold {
					cuts++
				}
				if d.Diff > maxDiff {
					maxDiff = d.Diff
					maxDiffAt = d.Timestamp
				}
			}
			di++
		}

		freq := float64(cuts) / float64(cfg.FullScaleCuts)
		if freq > 1 {
			freq = 1
		}
		windows[i].Score = clampScore(freq*50 + maxDiff*50)

		if cuts > 0 && insideHighEnergy(audioHighs, maxDiffAt) {
			windows[i].Flags.AudioAlignedTransition = true
		}
	}
	return windows
}

func insideHighEnergy(audio []Window, t float64) bool {
	for _, w := range audio {
		if w.Contains(t) {
			return w.Score >= bandHigh || w.Flags.SustainedHighEnergy
		}
		if w.Start > t {
			break
		}
	}
	return false
}
