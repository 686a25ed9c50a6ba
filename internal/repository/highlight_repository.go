package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clipsight/clipsight/internal/models"
)

type HighlightRepository struct {
	db *sql.DB
}

func NewHighlightRepository(db *sql.DB) *HighlightRepository {
	return &HighlightRepository{db: db}
}

const highlightColumns = `id, video_id, start_time, end_time, overall_score,
	audio_energy_score, scene_change_score, speech_density_score, keyword_score,
	detected_keywords, confidence_level, duration_seconds, rank, highlight_type,
	context_before_seconds, context_after_seconds, status, created_at, updated_at`

func scanHighlight(row interface{ Scan(...interface{}) error }) (*models.Highlight, error) {
	h := &models.Highlight{}
	err := row.Scan(&h.ID, &h.VideoID, &h.StartTime, &h.EndTime, &h.OverallScore,
		&h.AudioEnergyScore, &h.SceneChangeScore, &h.SpeechDensityScore, &h.KeywordScore,
		&h.DetectedKeywords, &h.ConfidenceLevel, &h.DurationSeconds, &h.Rank, &h.HighlightType,
		&h.ContextBeforeSeconds, &h.ContextAfterSeconds, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ──────────────────── Replace (detection output) ────────────────────

// ReplaceForVideo atomically replaces a video's detected highlights with a
// new run's output. Rows already marked exported or reviewed are preserved;
// a new highlight overlapping a preserved row is dropped so the set of
// non-rejected highlights stays non-overlapping.
func (r *HighlightRepository) ReplaceForVideo(videoID uuid.UUID, highlights []models.Highlight) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT start_time, end_time FROM highlights
		WHERE video_id = $1 AND status IN ('exported', 'reviewed')`, videoID)
	if err != nil {
		return fmt.Errorf("load preserved highlights: %w", err)
	}
	var preserved []span
	for rows.Next() {
		var s span
		if err := rows.Scan(&s.start, &s.end); err != nil {
			rows.Close()
			return err
		}
		preserved = append(preserved, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		DELETE FROM highlights
		WHERE video_id = $1 AND status NOT IN ('exported', 'reviewed')`, videoID); err != nil {
		return fmt.Errorf("clear superseded highlights: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO highlights (id, video_id, start_time, end_time, overall_score,
		                        audio_energy_score, scene_change_score, speech_density_score, keyword_score,
		                        detected_keywords, confidence_level, duration_seconds, rank, highlight_type,
		                        context_before_seconds, context_after_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	rank := 1
	for _, h := range highlights {
		if overlapsAny(h.StartTime, h.EndTime, preserved) {
			continue
		}
		if h.ID == uuid.Nil {
			h.ID = uuid.New()
		}
		// Ranks stay contiguous even when overlap filtering drops rows.
		h.Rank = rank
		rank++
		if _, err := stmt.Exec(h.ID, h.VideoID, h.StartTime, h.EndTime, h.OverallScore,
			h.AudioEnergyScore, h.SceneChangeScore, h.SpeechDensityScore, h.KeywordScore,
			pq.StringArray(h.DetectedKeywords), h.ConfidenceLevel, h.DurationSeconds, h.Rank, h.HighlightType,
			h.ContextBeforeSeconds, h.ContextAfterSeconds, h.Status); err != nil {
			return fmt.Errorf("insert highlight rank %d: %w", h.Rank, err)
		}
	}

	return tx.Commit()
}

type span struct{ start, end float64 }

func overlapsAny(start, end float64, spans []span) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

// ──────────────────── Queries ────────────────────

// ListOptions filters and paginates highlight listings.
type ListOptions struct {
	Status   *models.HighlightStatus
	MinScore *int
	Limit    int
	Offset   int
	Sort     string // "rank" (default), "score", "start_time"
}

// ListByVideo returns a page of highlights for a video plus the unpaged
// total. Default order is rank ascending.
func (r *HighlightRepository) ListByVideo(videoID uuid.UUID, opts ListOptions) ([]*models.Highlight, int, error) {
	where := []string{"video_id = $1"}
	args := []interface{}{videoID}
	if opts.Status != nil {
		args = append(args, *opts.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.MinScore != nil {
		args = append(args, *opts.MinScore)
		where = append(where, fmt.Sprintf("overall_score >= $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM highlights WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "rank ASC"
	switch opts.Sort {
	case "score":
		order = "overall_score DESC, start_time ASC"
	case "start_time":
		order = "start_time ASC"
	}
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	query := fmt.Sprintf("SELECT %s FROM highlights WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		highlightColumns, whereClause, order, len(args)-1, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var highlights []*models.Highlight
	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, 0, err
		}
		highlights = append(highlights, h)
	}
	return highlights, total, rows.Err()
}

// GetByID returns one highlight, or sql.ErrNoRows.
func (r *HighlightRepository) GetByID(id uuid.UUID) (*models.Highlight, error) {
	query := fmt.Sprintf("SELECT %s FROM highlights WHERE id = $1", highlightColumns)
	return scanHighlight(r.db.QueryRow(query, id))
}

// HighlightUpdate is the partial update surface: only rank, status, and the
// time range may change after detection; scores never do.
type HighlightUpdate struct {
	Rank      *int
	Status    *models.HighlightStatus
	StartTime *float64
	EndTime   *float64
}

// Update applies a partial update and returns the updated row. The derived
// duration is recomputed when either boundary moves.
func (r *HighlightRepository) Update(id uuid.UUID, upd HighlightUpdate) (*models.Highlight, error) {
	set := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{id}
	add := func(col string, v interface{}) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Rank != nil {
		add("rank", *upd.Rank)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.StartTime != nil {
		add("start_time", *upd.StartTime)
	}
	if upd.EndTime != nil {
		add("end_time", *upd.EndTime)
	}
	if upd.StartTime != nil || upd.EndTime != nil {
		set = append(set, "duration_seconds = end_time - start_time")
	}

	query := fmt.Sprintf("UPDATE highlights SET %s WHERE id = $1 RETURNING %s",
		strings.Join(set, ", "), highlightColumns)
	return scanHighlight(r.db.QueryRow(query, args...))
}

// SoftDelete marks a highlight rejected, keeping the row.
func (r *HighlightRepository) SoftDelete(id uuid.UUID) error {
	res, err := r.db.Exec(`
		UPDATE highlights SET status = 'rejected', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HardDelete removes the row entirely.
func (r *HighlightRepository) HardDelete(id uuid.UUID) error {
	res, err := r.db.Exec(`DELETE FROM highlights WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteStaleDetected removes detected-status rows older than the given
// interval whose video no longer exists. Called by the janitor.
func (r *HighlightRepository) DeleteStaleDetected(olderThanDays int) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM highlights h
		WHERE h.status = 'detected'
		  AND h.created_at < NOW() - ($1 || ' days')::interval
		  AND NOT EXISTS (SELECT 1 FROM videos v WHERE v.id = h.video_id)`, olderThanDays)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
