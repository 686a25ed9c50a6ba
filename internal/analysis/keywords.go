package analysis

import (
	"sort"
	"strings"

	"github.com/clipsight/clipsight/internal/models"
)

// ──────────────────── Keyword Relevance ────────────────────

// KeywordConfig tunes the keyword analyzer.
type KeywordConfig struct {
	WindowSeconds float64            // analysis window length (default 5s)
	Keywords      map[string]float64 // keyword → importance weight (0-1]
	ClusterBonus  int                // score bump for clustered distinct keywords
}

// ImportantWeight is the importance threshold separating important keywords
// from minor/related ones for score banding.
const ImportantWeight = 0.7

// DefaultKeywords is the stock keyword set. User-supplied additions are
// merged on top at full importance unless they carry an explicit weight.
func DefaultKeywords() map[string]float64 {
	return map[string]float64{
		"amazing":      1.0,
		"incredible":   1.0,
		"unbelievable": 1.0,
		"important":    0.9,
		"key":          0.8,
		"secret":       0.8,
		"mistake":      0.8,
		"never":        0.7,
		"always":       0.7,
		"remember":     0.7,
		"wow":          0.6,
		"finally":      0.5,
		"actually":     0.4,
		"interesting":  0.4,
	}
}

// DefaultKeywordConfig returns the stock analyzer tuning.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		WindowSeconds: 5.0,
		Keywords:      DefaultKeywords(),
		ClusterBonus:  10,
	}
}

// WithCustomKeywords returns a copy of cfg with extra keywords merged in at
// full importance. Existing entries keep their configured weight.
func (cfg KeywordConfig) WithCustomKeywords(custom []string) KeywordConfig {
	if len(custom) == 0 {
		return cfg
	}
	merged := make(map[string]float64, len(cfg.Keywords)+len(custom))
	for k, w := range cfg.Keywords {
		merged[normalizeToken(k)] = w
	}
	for _, k := range custom {
		k = normalizeToken(k)
		if k == "" {
			continue
		}
		if _, ok := merged[k]; !ok {
			merged[k] = 1.0
		}
	}
	out := cfg
	out.Keywords = merged
	return out
}

// AnalyzeKeywords scores each window from importance-weighted keyword
// occurrences in the transcript, carrying the matched keywords alongside the
// score. Banding: multiple important keywords 80-100, one important keyword
// 50-79, only minor/related keywords 30-49, no match 0. A cluster bonus
// applies when distinct keywords land in the same or adjacent windows.
func AnalyzeKeywords(words []models.TranscriptWord, duration float64, cfg KeywordConfig) []Window {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 5.0
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultKeywords()
	}
	windows := NewGrid(duration, cfg.WindowSeconds)
	if len(windows) == 0 || len(words) == 0 {
		return windows
	}

	normalized := make(map[string]float64, len(cfg.Keywords))
	for k, w := range cfg.Keywords {
		normalized[normalizeToken(k)] = w
	}

	wi := 0
	for i := range windows {
		win := &windows[i]
		for wi < len(words) && words[wi].End <= win.Start {
			wi++
		}

		// Distinct matched keywords with their weight and occurrence count.
		matched := map[string]float64{}
		occurrences := map[string]int{}
		for j := wi; j < len(words) && words[j].Start < win.End; j++ {
			tok := normalizeToken(words[j].Word)
			if weight, ok := normalized[tok]; ok {
				matched[tok] = weight
				occurrences[tok]++
			}
		}
		if len(matched) == 0 {
			continue
		}

		important := 0
		var weightSum float64
		var repeats int
		for kw, weight := range matched {
			if weight >= ImportantWeight {
				important++
			}
			weightSum += weight
			repeats += occurrences[kw] - 1
		}

		var score float64
		switch {
		case important >= 2:
			score = 80 + float64(important-2)*10 + float64(repeats)*5
			if score > 100 {
				score = 100
			}
		case important == 1:
			score = 50 + (weightSum-ImportantWeight)*30 + float64(repeats)*5
			if score > 79 {
				score = 79
			}
		default:
			score = 30 + weightSum*15
			if score > 49 {
				score = 49
			}
		}

		win.Score = clampScore(score)
		win.Keywords = sortedKeys(matched)
	}

	applyClusterBonus(windows, cfg.ClusterBonus)
	return windows
}

// applyClusterBonus bumps a window's score when the distinct keywords in it
// and its immediate neighbors number at least two.
func applyClusterBonus(windows []Window, bonus int) {
	if bonus <= 0 {
		return
	}
	bumped := make([]bool, len(windows))
	for i := range windows {
		if len(windows[i].Keywords) == 0 {
			continue
		}
		distinct := map[string]bool{}
		for j := i - 1; j <= i+1; j++ {
			if j < 0 || j >= len(windows) {
				continue
			}
			for _, kw := range windows[j].Keywords {
				distinct[kw] = true
			}
		}
		if len(distinct) >= 2 {
			bumped[i] = true
		}
	}
	for i := range windows {
		if bumped[i] {
			windows[i].Score = clampScore(float64(windows[i].Score + bonus))
		}
	}
}

func normalizeToken(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".,!?;:\"'()[]")
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
