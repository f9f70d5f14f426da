package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/redmonkez12/locklog/internal/database"
)

var (
	ErrNotFound     = errors.New("card not found")
	ErrDuplicateUID = errors.New("card uid already exists")
)

// Repository handles card persistence
type Repository struct {
	db      *bun.DB
	timeout time.Duration
}

func NewRepository(db *bun.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) Create(ctx context.Context, in Input) (*Card, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := &database.Card{
		UID:         in.UID,
		Name:        in.Name,
		IDCard:      in.IDCard,
		Mobile:      in.Mobile,
		Messenger:   in.Messenger,
		MemberID:    in.MemberID,
		Description: in.Description,
		Profield:    in.Profield,
		LockIDs:     nonNil(in.LockIDs),
	}

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateUID
		}
		return nil, database.Wrap(ctx, err, "failed to create card")
	}

	return mapDBCardToModel(row), nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Card, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.Card)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap(ctx, err, "failed to get card")
	}

	return mapDBCardToModel(row), nil
}

// ExistsByUID reports whether a card with this external id is stored.
func (r *Repository) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.db.NewSelect().Model((*database.Card)(nil)).Where("uid = ?", uid).Exists(ctx)
	if err != nil {
		return false, database.Wrap(ctx, err, "failed to check card uid")
	}
	return exists, nil
}

// List returns every card, newest first.
func (r *Repository) List(ctx context.Context) ([]Card, error) {
	return r.list(ctx, "failed to list cards", func(q *bun.SelectQuery) *bun.SelectQuery { return q })
}

// ListByLock returns the cards granted access to lockID, newest first.
func (r *Repository) ListByLock(ctx context.Context, lockID uuid.UUID) ([]Card, error) {
	return r.list(ctx, "failed to list cards by lock", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ANY(lock_ids)", lockID)
	})
}

func (r *Repository) list(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) ([]Card, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []database.Card
	err := where(r.db.NewSelect().Model(&rows)).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, database.Wrap(ctx, err, op)
	}

	cards := make([]Card, 0, len(rows))
	for i := range rows {
		cards = append(cards, *mapDBCardToModel(&rows[i]))
	}
	return cards, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, in Input) (*Card, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.Card)
	result, err := r.db.NewUpdate().
		Model(row).
		Set("uid = ?", in.UID).
		Set("name = ?", in.Name).
		Set("idcard = ?", in.IDCard).
		Set("mobile = ?", in.Mobile).
		Set("messenger = ?", in.Messenger).
		Set("member_id = ?", in.MemberID).
		Set("description = ?", in.Description).
		Set("profield = ?", in.Profield).
		Set("lock_ids = ?", pgdialect.Array(nonNil(in.LockIDs))).
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
		return nil, database.Wrap(ctx, err, "failed to update card")
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	return mapDBCardToModel(row), nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.NewDelete().
		Model((*database.Card)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return database.Wrap(ctx, err, "failed to delete card")
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

// nonNil keeps the NOT NULL array column from receiving NULL.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func mapDBCardToModel(c *database.Card) *Card {
	return &Card{
		ID:          c.ID,
		UID:         c.UID,
		Name:        c.Name,
		IDCard:      c.IDCard,
		Mobile:      c.Mobile,
		Messenger:   c.Messenger,
		MemberID:    c.MemberID,
		Description: c.Description,
		Profield:    c.Profield,
		LockIDs:     c.LockIDs,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
