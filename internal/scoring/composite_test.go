package scoring

import (
	"testing"

	"github.com/clipsight/clipsight/internal/analysis"
	"github.com/clipsight/clipsight/internal/models"
)

func TestScoreWindow(t *testing.T) {
	weights := models.DefaultScoreWeights()

	tests := []struct {
		name      string
		cs        ComponentScores
		sustained bool
		want      int
	}{
		{
			// 0.35*90 + 0.20*20 + 0.25*50 + 0.20*0 = 48, no bonuses.
			name: "weighted sum only",
			cs:   ComponentScores{Audio: 90, Scene: 20, Speech: 50, Keyword: 0},
			want: 48,
		},
		{
			// Two components >= 70: 51.5 * 1.10 = 56.65.
			name: "aligned bonus",
			cs:   ComponentScores{Audio: 90, Scene: 0, Speech: 80, Keyword: 0},
			want: 57,
		},
		{
			// keyword >= 50 with audio >= 70: 34.5 * 1.20 = 41.4. Only one
			// component is >= 70, so no aligned bonus stacks on top.
			name: "keyword audio bonus",
			cs:   ComponentScores{Audio: 70, Scene: 0, Speech: 0, Keyword: 50},
			want: 41,
		},
		{
			// All three bonuses stack multiplicatively:
			// 59.5 * 1.10 * 1.15 * 1.20 = 90.3.
			name:      "all bonuses",
			cs:        ComponentScores{Audio: 90, Scene: 80, Speech: 0, Keyword: 60},
			sustained: true,
			want:      90,
		},
		{
			name:      "clamped at 100",
			cs:        ComponentScores{Audio: 100, Scene: 100, Speech: 100, Keyword: 100},
			sustained: true,
			want:      100,
		},
		{
			name: "all zero",
			cs:   ComponentScores{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreWindow(tt.cs, tt.sustained, weights)
			if got != tt.want {
				t.Errorf("ScoreWindow(%+v) = %d, want %d", tt.cs, got, tt.want)
			}
			// Identical inputs always produce identical output.
			if again := ScoreWindow(tt.cs, tt.sustained, weights); again != got {
				t.Errorf("ScoreWindow not deterministic: %d then %d", got, again)
			}
		})
	}
}

// uniformStream builds n windows of 1s with a constant score.
func uniformStream(n, score int) []analysis.Window {
	out := make([]analysis.Window, n)
	for i := range out {
		out[i] = analysis.Window{Start: float64(i), End: float64(i + 1), Score: score}
	}
	return out
}

func TestCompositeScorerSustainedRun(t *testing.T) {
	// audio 100, speech 100, scene 60 gives a pre-bonus weighted score of 72.
	// A 6-window run exceeds the 5s sustained minimum; a 4-window run does not.
	scorer := NewCompositeScorer(models.DefaultScoreWeights())

	long := scorer.Score(uniformStream(6, 100), uniformStream(6, 60), uniformStream(6, 100), uniformStream(6, 0))
	if len(long) != 6 {
		t.Fatalf("expected 6 windows, got %d", len(long))
	}
	// 72 * 1.10 (audio+speech aligned) * 1.15 (sustained) = 91.08.
	if long[0].Overall != 91 {
		t.Errorf("sustained run window scored %d, want 91", long[0].Overall)
	}

	short := scorer.Score(uniformStream(4, 100), uniformStream(4, 60), uniformStream(4, 100), uniformStream(4, 0))
	// Same components without the sustained bonus: 72 * 1.10 = 79.2.
	if short[0].Overall != 79 {
		t.Errorf("short run window scored %d, want 79", short[0].Overall)
	}
}

func TestCompositeScorerResamplesToFinestGrid(t *testing.T) {
	// Audio at 0.5s windows is the finest stream; the 5s speech stream must
	// be resampled onto it.
	audio := make([]analysis.Window, 10)
	for i := range audio {
		audio[i] = analysis.Window{Start: float64(i) * 0.5, End: float64(i+1) * 0.5, Score: 80}
	}
	speech := []analysis.Window{{Start: 0, End: 5, Score: 40}}

	scorer := NewCompositeScorer(models.DefaultScoreWeights())
	out := scorer.Score(audio, nil, speech, nil)
	if len(out) != 10 {
		t.Fatalf("expected 10 windows on the audio grid, got %d", len(out))
	}
	for i, w := range out {
		if w.Components.Speech != 40 {
			t.Errorf("window %d: speech component %d, want resampled 40", i, w.Components.Speech)
		}
	}
}
