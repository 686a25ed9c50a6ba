package analysis

import (
	"testing"

	"github.com/clipsight/clipsight/internal/models"
)

func TestAnalyzeSpeechPatternNoTranscript(t *testing.T) {
	windows := AnalyzeSpeechPattern(nil, 15.0, DefaultSpeechConfig())
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	for i, w := range windows {
		if w.Score != NeutralSpeechScore {
			t.Errorf("window %d: missing transcript scored %d, want neutral %d", i, w.Score, NeutralSpeechScore)
		}
	}
}

// evenWords produces n contiguous words filling [0, span) seconds.
func evenWords(n int, span float64) []models.TranscriptWord {
	words := make([]models.TranscriptWord, n)
	step := span / float64(n)
	for i := range words {
		words[i] = models.TranscriptWord{
			Word:  "word",
			Start: float64(i) * step,
			End:   float64(i+1) * step,
		}
	}
	return words
}

func TestAnalyzeSpeechPatternFastContinuous(t *testing.T) {
	// 15 contiguous words in 5 seconds is 180 WPM with no pauses: both the
	// density and continuity terms saturate.
	words := evenWords(15, 5.0)
	windows := AnalyzeSpeechPattern(words, 5.0, DefaultSpeechConfig())
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Score != 100 {
		t.Errorf("fast continuous speech scored %d, want 100", windows[0].Score)
	}
}

func TestAnalyzeSpeechPatternSlowWithPauses(t *testing.T) {
	// 3 short words in 5 seconds: 36 WPM, 0.6s voiced.
	words := []models.TranscriptWord{
		{Word: "a", Start: 0.0, End: 0.2},
		{Word: "b", Start: 2.0, End: 2.2},
		{Word: "c", Start: 4.0, End: 4.2},
	}
	windows := AnalyzeSpeechPattern(words, 5.0, DefaultSpeechConfig())
	// density 0.2, continuity 0.12: (0.2*0.7 + 0.12*0.3) * 100 = 17.6
	if windows[0].Score != 18 {
		t.Errorf("slow speech scored %d, want 18", windows[0].Score)
	}
}

func TestAnalyzeSpeechPatternSilentWindowScoresZero(t *testing.T) {
	// Words only in the first window; the second stays silent.
	words := evenWords(15, 5.0)
	windows := AnalyzeSpeechPattern(words, 10.0, DefaultSpeechConfig())
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[1].Score != 0 {
		t.Errorf("window with no words scored %d, want 0", windows[1].Score)
	}
}
