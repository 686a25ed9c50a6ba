package scoring

import (
	"sort"
	"time"

	"github.com/clipsight/clipsight/internal/models"
	"github.com/google/uuid"
)

// ──────────────────── Ranking & Selection ────────────────────

// Rank orders candidate segments by descending overall score (earlier start
// wins ties), assigns contiguous ranks from 1, and applies the sensitivity
// preset: a candidate survives only if its rank is within the preset's count
// cap AND its score meets the threshold. Both conditions apply.
func Rank(segments []Segment, videoID uuid.UUID, sensitivity models.Sensitivity) []models.Highlight {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Overall != sorted[j].Overall {
			return sorted[i].Overall > sorted[j].Overall
		}
		return sorted[i].Start < sorted[j].Start
	})

	preset := models.PresetFor(sensitivity)
	now := time.Now().UTC()

	var out []models.Highlight
	for i, seg := range sorted {
		rank := i + 1
		if rank > preset.MaxCount {
			break
		}
		if seg.Overall < preset.ScoreThreshold {
			continue
		}
		keywords := seg.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		out = append(out, models.Highlight{
			ID:                   uuid.New(),
			VideoID:              videoID,
			StartTime:            seg.Start,
			EndTime:              seg.End,
			OverallScore:         seg.Overall,
			AudioEnergyScore:     seg.Components.Audio,
			SceneChangeScore:     seg.Components.Scene,
			SpeechDensityScore:   seg.Components.Speech,
			KeywordScore:         seg.Components.Keyword,
			DetectedKeywords:     keywords,
			ConfidenceLevel:      confidence(seg),
			DurationSeconds:      seg.End - seg.Start,
			Rank:                 rank,
			HighlightType:        seg.Type,
			ContextBeforeSeconds: seg.AppliedBefore,
			ContextAfterSeconds:  seg.AppliedAfter,
			Status:               models.StatusDetected,
			CreatedAt:            now,
			UpdatedAt:            now,
		})
	}
	return out
}

// confidence derives a 0-1 confidence from the overall score plus a small
// bump per independently strong component, the same shape the segment
// detectors use for multi-signal agreement.
func confidence(seg Segment) float64 {
	c := float64(seg.Overall) / 100
	strong := 0
	for _, v := range []int{seg.Components.Audio, seg.Components.Scene, seg.Components.Speech, seg.Components.Keyword} {
		if v >= alignedComponentFloor {
			strong++
		}
	}
	if strong >= 2 {
		c += 0.05 * float64(strong-1)
	}
	if c > 1 {
		c = 1
	}
	return c
}
