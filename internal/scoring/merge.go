package scoring

import (
	"sort"

	"github.com/clipsight/clipsight/internal/models"
)

// ──────────────────── Segment Merging ────────────────────

// MergeConfig tunes candidate segment construction.
type MergeConfig struct {
	ScoreFloor           int     // windows below this never become candidates
	MergeGapSeconds      float64 // runs closer than this are bridged
	ContextBeforeSeconds float64 // lead-in padding
	ContextAfterSeconds  float64 // lead-out padding
}

// DefaultMergeConfig returns the stock merger tuning.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		ScoreFloor:           50,
		MergeGapSeconds:      3.0,
		ContextBeforeSeconds: 2.0,
		ContextAfterSeconds:  3.0,
	}
}

// Segment is a merged, padded highlight candidate. Component scores are the
// maximum of each component across constituent windows, so the segment
// reflects its peak moment rather than an average.
type Segment struct {
	Start         float64
	End           float64
	Overall       int
	Components    ComponentScores
	Keywords      []string
	Type          models.HighlightType
	AppliedBefore float64 // context padding actually applied at the start
	AppliedAfter  float64 // context padding actually applied at the end
}

// SegmentMerger converts a scored window stream into discrete,
// non-overlapping candidate segments with context padding.
type SegmentMerger struct {
	cfg MergeConfig
}

func NewSegmentMerger(cfg MergeConfig) *SegmentMerger {
	if cfg.ScoreFloor <= 0 {
		cfg.ScoreFloor = 50
	}
	if cfg.MergeGapSeconds < 0 {
		cfg.MergeGapSeconds = 3.0
	}
	return &SegmentMerger{cfg: cfg}
}

// Merge builds candidate segments from the overall-score stream:
// contiguous runs at or above the floor are collected, runs separated by a
// gap no larger than the merge gap are bridged, context padding is applied
// clamped to the media bounds, and one more merge pass runs afterwards in
// case padding closed a gap. Output segments never overlap.
func (m *SegmentMerger) Merge(windows []ScoredWindow, mediaDuration float64) []Segment {
	runs := m.collectRuns(windows)
	if len(runs) == 0 {
		return nil
	}
	segments := m.bridgeGaps(runs)
	m.pad(segments, mediaDuration)
	segments = m.bridgeGaps(segments)
	for i := range segments {
		segments[i].Type = labelType(segments[i].Components)
	}
	return segments
}

// collectRuns gathers contiguous window runs scoring at or above the floor.
func (m *SegmentMerger) collectRuns(windows []ScoredWindow) []Segment {
	var runs []Segment
	var cur *Segment
	for i := range windows {
		w := &windows[i]
		if w.Overall < m.cfg.ScoreFloor {
			cur = nil
			continue
		}
		if cur == nil {
			runs = append(runs, Segment{Start: w.Start, End: w.End})
			cur = &runs[len(runs)-1]
		} else {
			cur.End = w.End
		}
		absorbWindow(cur, w)
	}
	return runs
}

// bridgeGaps merges segments whose gap is within the merge threshold.
// Input segments are ordered by start time; padding can introduce overlap,
// which also merges.
func (m *SegmentMerger) bridgeGaps(segments []Segment) []Segment {
	if len(segments) <= 1 {
		return segments
	}
	out := segments[:1]
	for _, seg := range segments[1:] {
		last := &out[len(out)-1]
		if seg.Start-last.End <= m.cfg.MergeGapSeconds {
			absorbSegment(last, seg)
			continue
		}
		out = append(out, seg)
	}
	return out
}

// pad applies context padding after merging, clamped to the media bounds.
// The applied amounts are recorded per segment since boundary clamping can
// shrink them below the configured defaults.
func (m *SegmentMerger) pad(segments []Segment, mediaDuration float64) {
	for i := range segments {
		seg := &segments[i]
		before := m.cfg.ContextBeforeSeconds
		if seg.Start-before < 0 {
			before = seg.Start
		}
		after := m.cfg.ContextAfterSeconds
		if mediaDuration > 0 && seg.End+after > mediaDuration {
			after = mediaDuration - seg.End
		}
		seg.Start -= before
		seg.End += after
		seg.AppliedBefore = before
		seg.AppliedAfter = after
	}
}

// absorbWindow folds a window's scores and keywords into a segment,
// keeping per-component maxima.
func absorbWindow(seg *Segment, w *ScoredWindow) {
	if w.Overall > seg.Overall {
		seg.Overall = w.Overall
	}
	seg.Components.Audio = maxInt(seg.Components.Audio, w.Components.Audio)
	seg.Components.Scene = maxInt(seg.Components.Scene, w.Components.Scene)
	seg.Components.Speech = maxInt(seg.Components.Speech, w.Components.Speech)
	seg.Components.Keyword = maxInt(seg.Components.Keyword, w.Components.Keyword)
	seg.Keywords = mergeKeywords(seg.Keywords, w.Keywords)
}

// absorbSegment folds a later segment into an earlier one during a merge
// pass. The combined segment keeps the earlier lead-in padding and the
// later lead-out padding.
func absorbSegment(dst *Segment, src Segment) {
	if src.End > dst.End {
		dst.End = src.End
	}
	if src.Overall > dst.Overall {
		dst.Overall = src.Overall
	}
	dst.Components.Audio = maxInt(dst.Components.Audio, src.Components.Audio)
	dst.Components.Scene = maxInt(dst.Components.Scene, src.Components.Scene)
	dst.Components.Speech = maxInt(dst.Components.Speech, src.Components.Speech)
	dst.Components.Keyword = maxInt(dst.Components.Keyword, src.Components.Keyword)
	dst.Keywords = mergeKeywords(dst.Keywords, src.Keywords)
	dst.AppliedAfter = src.AppliedAfter
}

// labelType picks the highlight type from the dominant component score.
// Keyword evidence is the most explicit signal, so keyword_match wins ties;
// remaining ties resolve audio, then speech, then scene.
func labelType(cs ComponentScores) models.HighlightType {
	best := cs.Keyword
	label := models.HighlightKeywordMatch
	if cs.Audio > best {
		best = cs.Audio
		label = models.HighlightHighEnergy
	}
	if cs.Speech > best {
		best = cs.Speech
		label = models.HighlightKeyMoment
	}
	if cs.Scene > best {
		label = models.HighlightSceneChange
	}
	return label
}

func mergeKeywords(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	for _, k := range a {
		seen[k] = true
	}
	out := a
	for _, k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
