package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipsight/clipsight/internal/models"
)

// Local resolves video records against a media directory. The surrounding
// product owns uploads and placement; the engine only needs a readable path.
// Paths stored absolute are used as-is, relative ones resolve under root.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Fetch returns the local file path for a video's media, verifying the file
// exists before the pipeline starts decoding it.
func (l *Local) Fetch(ctx context.Context, video *models.Video) (string, error) {
	path := video.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("media file %s: %w", video.FilePath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("media path %s is a directory", video.FilePath)
	}
	return path, nil
}
