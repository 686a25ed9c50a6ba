package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/clipsight/clipsight/internal/models"
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, title, file_path, transcript_path, duration_seconds, created_at`

func scanVideo(row interface{ Scan(...interface{}) error }) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(&v.ID, &v.Title, &v.FilePath, &v.TranscriptPath, &v.DurationSeconds, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *VideoRepository) GetByID(id uuid.UUID) (*models.Video, error) {
	query := fmt.Sprintf("SELECT %s FROM videos WHERE id = $1", videoColumns)
	return scanVideo(r.db.QueryRow(query, id))
}

func (r *VideoRepository) List(limit, offset int) ([]*models.Video, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM videos").Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM videos ORDER BY created_at DESC LIMIT $1 OFFSET $2", videoColumns)
	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		videos = append(videos, v)
	}
	return videos, total, rows.Err()
}

func (r *VideoRepository) Create(v *models.Video) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return r.db.QueryRow(`
		INSERT INTO videos (id, title, file_path, transcript_path, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		v.ID, v.Title, v.FilePath, v.TranscriptPath, v.DurationSeconds).Scan(&v.CreatedAt)
}

// UpdateDuration records the probed duration after the first successful
// detection run so later runs can skip the probe.
func (r *VideoRepository) UpdateDuration(id uuid.UUID, seconds float64) error {
	_, err := r.db.Exec(`UPDATE videos SET duration_seconds = $2 WHERE id = $1`, id, seconds)
	return err
}
