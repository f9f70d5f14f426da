package accesslog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/locklog/internal/database"
)

var ErrNotFound = errors.New("access log entry not found")

// Repository handles access log persistence. Rows are never deleted.
type Repository struct {
	db      *bun.DB
	timeout time.Duration
}

func NewRepository(db *bun.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) Insert(ctx context.Context, in RecordInput) (*Log, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := &database.AccessLog{
		ProjectID: in.ProjectID,
		CardID:    in.CardID,
		Score:     in.Score,
		ScoreType: in.ScoreType,
		Note:      in.Note,
		Success:   in.Success,
		NewCard:   in.NewCard,
		Source:    in.Key,
	}

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		return nil, database.Wrap(ctx, err, "failed to insert access log")
	}

	return mapDBLogToModel(row), nil
}

// UpdateScore sets score, score_type and note only; updated_at keeps the
// time the event was last written by a device. It reports whether a row
// matched.
func (r *Repository) UpdateScore(ctx context.Context, id uuid.UUID, score float64, scoreType, note string) (bool, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.NewUpdate().
		Model((*database.AccessLog)(nil)).
		Set("score = ?", score).
		Set("score_type = ?", scoreType).
		Set("note = ?", note).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, database.Wrap(ctx, err, "failed to update score")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Log, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.AccessLog)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap(ctx, err, "failed to get access log")
	}

	return mapDBLogToModel(row), nil
}

// List returns every log, newest first.
func (r *Repository) List(ctx context.Context) ([]Log, error) {
	return r.list(ctx, "failed to list access logs", func(q *bun.SelectQuery) *bun.SelectQuery { return q })
}

// ListScored returns successful logs with a positive score, newest first.
func (r *Repository) ListScored(ctx context.Context) ([]Log, error) {
	return r.list(ctx, "failed to list scored access logs", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("success = TRUE").Where("score > 0")
	})
}

func (r *Repository) list(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) ([]Log, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []database.AccessLog
	err := where(r.db.NewSelect().Model(&rows)).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(ctx, err, op)
	}

	logs := make([]Log, 0, len(rows))
	for i := range rows {
		logs = append(logs, *mapDBLogToModel(&rows[i]))
	}
	return logs, nil
}

func mapDBLogToModel(l *database.AccessLog) *Log {
	return &Log{
		ID:        l.ID,
		ProjectID: l.ProjectID,
		CardID:    l.CardID,
		Score:     l.Score,
		ScoreType: l.ScoreType,
		Note:      l.Note,
		Success:   l.Success,
		NewCard:   l.NewCard,
		Source:    l.Source,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}
