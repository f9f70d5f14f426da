package lock

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

var (
	ErrNotFound     = errors.New("lock not found")
	ErrDuplicateUID = errors.New("lock uid already exists")
)

// Repository handles lock persistence
type Repository struct {
	db      *bun.DB
	timeout time.Duration
}

func NewRepository(db *bun.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) Create(ctx context.Context, in Input) (*Lock, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := &database.Lock{UID: in.UID, Name: in.Name, Description: in.Description}
	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateUID
		}
		return nil, database.Wrap(ctx, err, "failed to create lock")
	}

	return mapDBLockToModel(row), nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Lock, error) {
	return r.getOne(ctx, "failed to get lock", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

// GetByUID looks a lock up by the uid it reports under.
func (r *Repository) GetByUID(ctx context.Context, uid string) (*Lock, error) {
	return r.getOne(ctx, "failed to get lock by uid", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("uid = ?", uid)
	})
}

func (r *Repository) getOne(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) (*Lock, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.Lock)
	if err := where(r.db.NewSelect().Model(row)).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap(ctx, err, op)
	}
	return mapDBLockToModel(row), nil
}

// List returns every lock, newest first.
func (r *Repository) List(ctx context.Context) ([]Lock, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []database.Lock
	if err := r.db.NewSelect().Model(&rows).OrderExpr("created_at DESC, id DESC").Scan(ctx); err != nil {
		return nil, database.Wrap(ctx, err, "failed to list locks")
	}

	locks := make([]Lock, 0, len(rows))
	for i := range rows {
		locks = append(locks, *mapDBLockToModel(&rows[i]))
	}
	return locks, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, in Input) (*Lock, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.Lock)
	result, err := r.db.NewUpdate().
		Model(row).
		Set("uid = ?", in.UID).
		Set("name = ?", in.Name).
		Set("description = ?", in.Description).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateUID
		}
		return nil, database.Wrap(ctx, err, "failed to update lock")
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	return mapDBLockToModel(row), nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.NewDelete().
		Model((*database.Lock)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return database.Wrap(ctx, err, "failed to delete lock")
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapDBLockToModel(l *database.Lock) *Lock {
	return &Lock{
		ID:          l.ID,
		UID:         l.UID,
		Name:        l.Name,
		Description: l.Description,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
