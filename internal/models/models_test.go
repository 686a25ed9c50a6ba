package models

import (
	"math"
	"testing"
)

func TestScoreWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights ScoreWeights
		wantErr bool
	}{
		{"defaults", DefaultScoreWeights(), false},
		{"even split", ScoreWeights{Audio: 0.25, Scene: 0.25, Speech: 0.25, Keyword: 0.25}, false},
		{"within tolerance", ScoreWeights{Audio: 0.2501, Scene: 0.25, Speech: 0.25, Keyword: 0.2499}, false},
		{"sum too low", ScoreWeights{Audio: 0.5, Scene: 0.2}, true},
		{"sum too high", ScoreWeights{Audio: 0.5, Scene: 0.5, Speech: 0.5}, true},
		{"negative weight", ScoreWeights{Audio: 1.2, Scene: -0.2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScoreWeightsNormalized(t *testing.T) {
	w := ScoreWeights{Audio: 2, Scene: 1, Speech: 1, Keyword: 0}.Normalized()
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		t.Errorf("normalized sum %v, want 1.0", w.Sum())
	}
	if math.Abs(w.Audio-0.5) > 1e-9 {
		t.Errorf("normalized audio %v, want 0.5", w.Audio)
	}
}

func TestPresetFor(t *testing.T) {
	tests := []struct {
		s             Sensitivity
		count, thresh int
	}{
		{SensitivityLow, 5, 80},
		{SensitivityMedium, 10, 70},
		{SensitivityHigh, 15, 60},
		{SensitivityMax, 20, 50},
		{"bogus", 10, 70}, // unknown falls back to medium
	}
	for _, tt := range tests {
		p := PresetFor(tt.s)
		if p.MaxCount != tt.count || p.ScoreThreshold != tt.thresh {
			t.Errorf("PresetFor(%s) = %+v, want {%d %d}", tt.s, p, tt.count, tt.thresh)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobCompleted, JobFailed, JobCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if JobPending.Terminal() || JobRunning.Terminal() {
		t.Error("pending/running must not be terminal")
	}
}
