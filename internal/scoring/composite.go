package scoring

import (
	"math"

	"github.com/clipsight/clipsight/internal/analysis"
	"github.com/clipsight/clipsight/internal/models"
)

// ──────────────────── Composite Scoring ────────────────────

// ComponentScores holds the four time-aligned signal scores for one window.
type ComponentScores struct {
	Audio   int `json:"audio"`
	Scene   int `json:"scene"`
	Speech  int `json:"speech"`
	Keyword int `json:"keyword"`
}

// ScoredWindow is one window of the combined overall-score stream, carrying
// its component scores and matched keywords through to segment merging.
type ScoredWindow struct {
	Start      float64         `json:"start"`
	End        float64         `json:"end"`
	Overall    int             `json:"overall"`
	Components ComponentScores `json:"components"`
	Keywords   []string        `json:"keywords,omitempty"`
}

// Bonus multipliers, applied multiplicatively in this fixed order. They are
// cumulative multiplications, not additions, so stacked bonuses cannot
// trivially blow past the clamp.
const (
	alignedBonus      = 1.10 // at least two components independently >= 70
	sustainedBonus    = 1.15 // inside a composite >= 70 run longer than 5s
	keywordAudioBonus = 1.20 // keyword >= 50 and audio energy >= 70 together

	alignedComponentFloor = 70
	sustainedRunFloor     = 70
	sustainedRunSeconds   = 5.0
)

// ScoreWindow is the pure per-window composite mapping: identical inputs
// always produce identical output. sustainedRun marks whether the window is
// part of a sustained high-score run, which is a property of the surrounding
// stream and therefore passed in rather than derived here.
func ScoreWindow(cs ComponentScores, sustainedRun bool, weights models.ScoreWeights) int {
	weights = weights.Normalized()
	score := weights.Audio*float64(cs.Audio) +
		weights.Scene*float64(cs.Scene) +
		weights.Speech*float64(cs.Speech) +
		weights.Keyword*float64(cs.Keyword)

	if alignedComponents(cs) >= 2 {
		score *= alignedBonus
	}
	if sustainedRun {
		score *= sustainedBonus
	}
	if cs.Keyword >= 50 && cs.Audio >= alignedComponentFloor {
		score *= keywordAudioBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func alignedComponents(cs ComponentScores) int {
	n := 0
	for _, v := range []int{cs.Audio, cs.Scene, cs.Speech, cs.Keyword} {
		if v >= alignedComponentFloor {
			n++
		}
	}
	return n
}

// CompositeScorer combines the four windowed score streams into one
// overall-score stream on a common grid.
type CompositeScorer struct {
	weights models.ScoreWeights
}

// NewCompositeScorer builds a scorer. Weight sets that do not sum to 1.0
// are renormalized; the trigger path rejects bad weights before a job ever
// reaches this point, so renormalization here is a safety net for
// settings-sourced configurations.
func NewCompositeScorer(weights models.ScoreWeights) *CompositeScorer {
	return &CompositeScorer{weights: weights.Normalized()}
}

// Score resamples the four analyzer streams to the finest grid among them
// and produces the combined overall-score stream. The sustained-run bonus
// is decided on the pre-bonus weighted score so that the bonus itself
// cannot extend a run.
func (c *CompositeScorer) Score(audio, scene, speech, keyword []analysis.Window) []ScoredWindow {
	grid := finestGrid(audio, scene, speech, keyword)
	if len(grid) == 0 {
		return nil
	}

	audio = analysis.ResampleToGrid(audio, grid)
	scene = analysis.ResampleToGrid(scene, grid)
	speech = analysis.ResampleToGrid(speech, grid)
	keyword = analysis.ResampleToGrid(keyword, grid)

	out := make([]ScoredWindow, len(grid))
	weighted := make([]float64, len(grid))
	for i := range grid {
		cs := ComponentScores{
			Audio:   audio[i].Score,
			Scene:   scene[i].Score,
			Speech:  speech[i].Score,
			Keyword: keyword[i].Score,
		}
		out[i] = ScoredWindow{
			Start:      grid[i].Start,
			End:        grid[i].End,
			Components: cs,
			Keywords:   keyword[i].Keywords,
		}
		weighted[i] = c.weights.Audio*float64(cs.Audio) +
			c.weights.Scene*float64(cs.Scene) +
			c.weights.Speech*float64(cs.Speech) +
			c.weights.Keyword*float64(cs.Keyword)
	}

	sustained := sustainedRuns(out, weighted)
	for i := range out {
		out[i].Overall = ScoreWindow(out[i].Components, sustained[i], c.weights)
	}
	return out
}

// sustainedRuns marks windows inside a contiguous run of pre-bonus weighted
// scores >= 70 spanning more than the sustained-run minimum.
func sustainedRuns(windows []ScoredWindow, weighted []float64) []bool {
	marks := make([]bool, len(windows))
	runStart := -1
	for i := 0; i <= len(windows); i++ {
		high := i < len(windows) && weighted[i] >= sustainedRunFloor
		if high && runStart < 0 {
			runStart = i
			continue
		}
		if !high && runStart >= 0 {
			span := windows[i-1].End - windows[runStart].Start
			if span > sustainedRunSeconds {
				for j := runStart; j < i; j++ {
					marks[j] = true
				}
			}
			runStart = -1
		}
	}
	return marks
}

// finestGrid picks the stream with the smallest window size as the common
// grid for combining.
func finestGrid(streams ...[]analysis.Window) []analysis.Window {
	var finest []analysis.Window
	best := math.MaxFloat64
	for _, s := range streams {
		if len(s) == 0 {
			continue
		}
		size := s[0].End - s[0].Start
		if size > 0 && size < best {
			best = size
			finest = s
		}
	}
	if finest == nil {
		return nil
	}
	grid := make([]analysis.Window, len(finest))
	for i, w := range finest {
		grid[i] = analysis.Window{Start: w.Start, End: w.End}
	}
	return grid
}
