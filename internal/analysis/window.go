package analysis

import "math"

// ──────────────────── Windowed Scores ────────────────────

// WindowFlags carries per-window signal annotations produced by an analyzer.
// They never alter the analyzer's own score, and the composite bonuses are
// decided from component scores alone.
type WindowFlags struct {
	// SustainedHighEnergy marks audio windows inside a contiguous run of
	// high-band scores lasting longer than the sustained-run minimum. The
	// scene analyzer treats flagged windows as high-energy when checking
	// transition alignment.
	SustainedHighEnergy bool `json:"sustained_high_energy,omitempty"`

	// SuddenEnergyChange marks an audio window whose score jumps past the
	// configured delta over the preceding quiet window. Recorded for
	// diagnostics.
	SuddenEnergyChange bool `json:"sudden_energy_change,omitempty"`

	// AudioAlignedTransition marks a scene window whose strongest transition
	// lands inside an audio high-energy window. Recorded for diagnostics;
	// it does not raise the scene score or enter the composite.
	AudioAlignedTransition bool `json:"audio_aligned_transition,omitempty"`
}

// Window is one fixed-duration scored slice of the media timeline.
type Window struct {
	Start    float64     `json:"start"`
	End      float64     `json:"end"`
	Score    int         `json:"score"` // 0-100
	Keywords []string    `json:"keywords,omitempty"`
	Flags    WindowFlags `json:"flags,omitempty"`
}

// Contains reports whether t falls inside the window's half-open span.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End
}

// Mid returns the window's center point.
func (w Window) Mid() float64 {
	return (w.Start + w.End) / 2
}

// NewGrid slices [0, duration) into fixed-size windows. The final window is
// shortened to end exactly at the media duration. A non-positive size or
// duration yields an empty grid.
func NewGrid(duration, size float64) []Window {
	if duration <= 0 || size <= 0 {
		return nil
	}
	n := int(math.Ceil(duration / size))
	windows := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * size
		end := start + size
		if end > duration {
			end = duration
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}

// ResampleToGrid maps a windowed score stream onto a target grid by
// nearest-window lookup: each target window takes the score of the source
// window containing its center point. Used when analyzers run on different
// window sizes and the composite needs a common (finest) grid.
func ResampleToGrid(source []Window, grid []Window) []Window {
	out := make([]Window, len(grid))
	copy(out, grid)
	if len(source) == 0 {
		return out
	}
	si := 0
	for i := range out {
		mid := out[i].Mid()
		for si < len(source)-1 && source[si].End <= mid {
			si++
		}
		out[i].Score = source[si].Score
		out[i].Keywords = source[si].Keywords
		out[i].Flags = source[si].Flags
	}
	return out
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
