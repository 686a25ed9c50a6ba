package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/clipsight/clipsight/internal/models"
)

// ErrNotFound reports that no transcript exists for the requested video.
// Callers degrade to neutral speech scoring instead of failing the job;
// transcript availability is owned by an external collaborator.
var ErrNotFound = errors.New("transcript not found")

// Store reads word-level transcripts produced by the transcription service.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// transcriptFile matches the aligner output: either a bare word array or a
// document with a "words" field.
type transcriptFile struct {
	Words []models.TranscriptWord `json:"words"`
}

// Get loads the word-timestamp list for a video. A nil or missing path, or a
// missing file, returns ErrNotFound. Words are returned in transcript order.
func (s *Store) Get(path *string) ([]models.TranscriptWord, error) {
	if path == nil || *path == "" {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var doc transcriptFile
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Words) > 0 {
		return doc.Words, nil
	}

	var words []models.TranscriptWord
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return words, nil
}
