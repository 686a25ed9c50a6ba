package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetMissingTranscript(t *testing.T) {
	s := NewStore()

	if _, err := s.Get(nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("nil path: err %v, want ErrNotFound", err)
	}

	empty := ""
	if _, err := s.Get(&empty); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty path: err %v, want ErrNotFound", err)
	}

	gone := filepath.Join(t.TempDir(), "nope.json")
	if _, err := s.Get(&gone); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: err %v, want ErrNotFound", err)
	}
}

func TestGetTranscriptFormats(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     int
	}{
		{"document form", `{"words":[{"word":"hello","start":0.1,"end":0.4},{"word":"world","start":0.5,"end":0.9}]}`, 2},
		{"bare array", `[{"word":"hi","start":0,"end":0.2}]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.contents)
			words, err := NewStore().Get(&path)
			if err != nil {
				t.Fatal(err)
			}
			if len(words) != tt.want {
				t.Errorf("got %d words, want %d", len(words), tt.want)
			}
		})
	}
}

func TestGetTranscriptMalformed(t *testing.T) {
	path := writeTemp(t, "not json at all")
	if _, err := NewStore().Get(&path); err == nil {
		t.Error("malformed transcript should error")
	}
}
