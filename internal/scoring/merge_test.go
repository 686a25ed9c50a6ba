package scoring

import (
	"testing"

	"github.com/clipsight/clipsight/internal/models"
)

// scoredStream builds 1s windows with the given overall scores.
func scoredStream(scores ...int) []ScoredWindow {
	out := make([]ScoredWindow, len(scores))
	for i, s := range scores {
		out[i] = ScoredWindow{Start: float64(i), End: float64(i + 1), Overall: s}
	}
	return out
}

func TestMergeBridgesGapAndPads(t *testing.T) {
	// High runs at [2,4) and [5,7) with a 1s gap: bridged into [2,7), then
	// padded 2s before and 3s after to exactly [0,10).
	windows := scoredStream(10, 10, 80, 80, 10, 75, 75, 10, 10, 10)

	segments := NewSegmentMerger(DefaultMergeConfig()).Merge(windows, 10.0)
	if len(segments) != 1 {
		t.Fatalf("expected 1 merged segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Start != 0 || seg.End != 10 {
		t.Errorf("segment [%v,%v], want [0,10]", seg.Start, seg.End)
	}
	if seg.Overall != 80 {
		t.Errorf("segment overall %d, want peak 80", seg.Overall)
	}
	if seg.AppliedBefore != 2 || seg.AppliedAfter != 3 {
		t.Errorf("applied padding %v/%v, want 2/3", seg.AppliedBefore, seg.AppliedAfter)
	}
}

func TestMergePaddingClampedAtBounds(t *testing.T) {
	// A run at [0,2) has no room for lead-in padding; a run ending at the
	// media end has no room for lead-out.
	windows := scoredStream(80, 80)
	segments := NewSegmentMerger(DefaultMergeConfig()).Merge(windows, 2.0)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Start != 0 || seg.End != 2 {
		t.Errorf("segment [%v,%v], want clamped [0,2]", seg.Start, seg.End)
	}
	if seg.AppliedBefore != 0 || seg.AppliedAfter != 0 {
		t.Errorf("applied padding %v/%v, want 0/0 at media bounds", seg.AppliedBefore, seg.AppliedAfter)
	}
}

func TestMergeKeepsDistantSegmentsApart(t *testing.T) {
	scores := make([]int, 20)
	scores[0], scores[1] = 80, 80
	scores[12], scores[13] = 70, 70
	windows := scoredStream(scores...)

	segments := NewSegmentMerger(DefaultMergeConfig()).Merge(windows, 20.0)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	// Padded results never overlap.
	if segments[0].End > segments[1].Start {
		t.Errorf("segments overlap: [%v,%v] and [%v,%v]",
			segments[0].Start, segments[0].End, segments[1].Start, segments[1].End)
	}
}

func TestMergeBelowFloorYieldsNothing(t *testing.T) {
	windows := scoredStream(49, 49, 49, 49)
	segments := NewSegmentMerger(DefaultMergeConfig()).Merge(windows, 4.0)
	if segments != nil {
		t.Errorf("expected no segments below the floor, got %d", len(segments))
	}
}

func TestMergeComponentMaximaAndType(t *testing.T) {
	windows := []ScoredWindow{
		{Start: 0, End: 1, Overall: 80, Components: ComponentScores{Audio: 90, Speech: 40}},
		{Start: 1, End: 2, Overall: 70, Components: ComponentScores{Audio: 50, Speech: 85}, Keywords: []string{"wow"}},
	}

	segments := NewSegmentMerger(DefaultMergeConfig()).Merge(windows, 2.0)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Components.Audio != 90 || seg.Components.Speech != 85 {
		t.Errorf("component maxima %+v, want audio 90 speech 85", seg.Components)
	}
	if seg.Type != models.HighlightHighEnergy {
		t.Errorf("segment type %s, want %s for dominant audio", seg.Type, models.HighlightHighEnergy)
	}
	if len(seg.Keywords) != 1 || seg.Keywords[0] != "wow" {
		t.Errorf("keywords %v, want [wow]", seg.Keywords)
	}
}
