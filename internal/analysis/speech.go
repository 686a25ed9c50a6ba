package analysis

import "github.com/clipsight/clipsight/internal/models"

// ──────────────────── Speech Pattern ────────────────────

// SpeechConfig tunes the speech density analyzer.
type SpeechConfig struct {
	WindowSeconds float64 // analysis window length (default 5s)
	HighWPM       float64 // words-per-minute that saturates the density term
}

// DefaultSpeechConfig returns the stock analyzer tuning.
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		WindowSeconds: 5.0,
		HighWPM:       180,
	}
}

// NeutralSpeechScore is assigned to every window when no transcript is
// available. Transcript availability is owned by an external collaborator,
// so a missing transcript degrades the signal instead of failing the job.
const NeutralSpeechScore = 50

// AnalyzeSpeechPattern scores each window from words-per-minute and the
// ratio of voiced time to window time (word time minus inter-word pauses).
// Fast, continuous speech lands in the high band; slow speech with long
// pauses lands low. A nil or empty word list yields the neutral score for
// every window.
func AnalyzeSpeechPattern(words []models.TranscriptWord, duration float64, cfg SpeechConfig) []Window {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 5.0
	}
	if cfg.HighWPM <= 0 {
		cfg.HighWPM = 180
	}
	windows := NewGrid(duration, cfg.WindowSeconds)
	if len(windows) == 0 {
		return nil
	}
	if len(words) == 0 {
		for i := range windows {
			windows[i].Score = NeutralSpeechScore
		}
		return windows
	}

	wi := 0
	for i := range windows {
		win := &windows[i]
		span := win.End - win.Start
		if span <= 0 {
			continue
		}

		// Skip words that ended before this window.
		for wi < len(words) && words[wi].End <= win.Start {
			wi++
		}

		count := 0
		var voiced float64
		for j := wi; j < len(words) && words[j].Start < win.End; j++ {
			w := words[j]
			count++
			lo := w.Start
			if lo < win.Start {
				lo = win.Start
			}
			hi := w.End
			if hi > win.End {
				hi = win.End
			}
			if hi > lo {
				voiced += hi - lo
			}
		}

		wpm := float64(count) / span * 60
		density := wpm / cfg.HighWPM
		if density > 1 {
			density = 1
		}
		continuity := voiced / span
		if continuity > 1 {
			continuity = 1
		}

		// Density carries most of the signal; continuity separates fast
		// uninterrupted speech from fast speech broken by pauses.
		win.Score = clampScore((density*0.7 + continuity*0.3) * 100)
	}
	return windows
}
