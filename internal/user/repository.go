package user

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
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db      *bun.DB
	timeout time.Duration
}

func NewRepository(db *bun.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// Create inserts a new user. The email must already be normalized.
func (r *Repository) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	dbUser := &database.User{
		Email:        email,
		PasswordHash: passwordHash,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, database.Wrap(ctx, err, "failed to create user")
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by normalized email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "failed to get user by email", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email = ?", email)
	})
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "failed to get user by id", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

// GetByResetToken returns the user holding an unexpired reset token digest.
func (r *Repository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	return r.getOne(ctx, "failed to get user by reset token", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("password_reset_token_hash = ?", tokenHash).
			Where("password_reset_expires > ?", now)
	})
}

func (r *Repository) getOne(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	dbUser := new(database.User)
	err := where(r.db.NewSelect().Model(dbUser)).Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap(ctx, err, op)
	}

	return mapDBUserToModel(dbUser), nil
}

// SetResetToken stores a reset token digest for the account with this email,
// replacing any earlier one, in a single statement. Returns ErrNotFound when
// no account matches.
func (r *Repository) SetResetToken(ctx context.Context, email, tokenHash string, expires time.Time) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	dbUser := new(database.User)
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("password_reset_token_hash = ?", tokenHash).
		Set("password_reset_expires = ?", expires).
		Set("updated_at = NOW()").
		Where("email = ?", email)

	if err := r.updateReturning(ctx, q, "failed to set reset token"); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// ConsumeResetToken swaps in a new password hash and clears the token only if
// the digest matches and has not expired. A wrong, replayed or expired token
// all return ErrNotFound.
func (r *Repository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	dbUser := new(database.User)
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("password_hash = ?", passwordHash).
		Set("password_reset_token_hash = NULL").
		Set("password_reset_expires = NULL").
		Set("updated_at = NOW()").
		Where("password_reset_token_hash = ?", tokenHash).
		Where("password_reset_expires > ?", now)

	if err := r.updateReturning(ctx, q, "failed to consume reset token"); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateProfile overwrites email and profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, email string, p Profile) (*User, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	dbUser := new(database.User)
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("email = ?", email).
		Set("profile_name = ?", p.Name).
		Set("profile_gender = ?", p.Gender).
		Set("profile_location = ?", p.Location).
		Set("profile_website = ?", p.Website).
		Set("updated_at = NOW()").
		Where("id = ?", userID)

	if err := r.updateReturning(ctx, q, "failed to update profile"); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// updateReturning runs q with RETURNING * into its model. Zero matched rows
// is ErrNotFound.
func (r *Repository) updateReturning(ctx context.Context, q *bun.UpdateQuery, op string) error {
	result, err := q.Returning("*").Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return database.Wrap(ctx, err, op)
	}
	return requireAffected(result)
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return database.Wrap(ctx, err, "failed to update password")
	}

	return requireAffected(result)
}

// Delete removes the user row.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return database.Wrap(ctx, err, "failed to delete user")
	}

	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Email:        dbu.Email,
		PasswordHash: dbu.PasswordHash,
		Profile: Profile{
			Name:     dbu.ProfileName,
			Gender:   dbu.ProfileGender,
			Location: dbu.ProfileLocation,
			Website:  dbu.ProfileWebsite,
		},
		ProviderTokens: dbu.ProviderTokens,
		CreatedAt:      dbu.CreatedAt,
		UpdatedAt:      dbu.UpdatedAt,
	}
}
