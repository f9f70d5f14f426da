package project

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
	ErrNotFound     = errors.New("project not found")
	ErrDuplicateUID = errors.New("project uid already exists")
)

// Repository handles project persistence
type Repository struct {
	db      *bun.DB
	timeout time.Duration
}

func NewRepository(db *bun.DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) Create(ctx context.Context, in Input, pics Pictures) (*Project, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := &database.Project{
		UID:          in.UID,
		Name:         in.Name,
		Description:  in.Description,
		Picture:      pics.Original,
		PictureThumb: pics.Thumb,
		Materials:    in.Materials,
		Tools:        in.Tools,
		Steps:        nonNil(in.Steps),
		Tips:         in.Tips,
	}

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateUID
		}
		return nil, database.Wrap(ctx, err, "failed to create project")
	}

	return mapDBProjectToModel(row), nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.Project)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap(ctx, err, "failed to get project")
	}

	return mapDBProjectToModel(row), nil
}

// ExistsByUID reports whether a project with this external id is stored.
func (r *Repository) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.db.NewSelect().Model((*database.Project)(nil)).Where("uid = ?", uid).Exists(ctx)
	if err != nil {
		return false, database.Wrap(ctx, err, "failed to check project uid")
	}
	return exists, nil
}

// List returns every project, newest first.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []database.Project
	if err := r.db.NewSelect().Model(&rows).OrderExpr("created_at DESC, id DESC").Scan(ctx); err != nil {
		return nil, database.Wrap(ctx, err, "failed to list projects")
	}

	projects := make([]Project, 0, len(rows))
	for i := range rows {
		projects = append(projects, *mapDBProjectToModel(&rows[i]))
	}
	return projects, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Project, error) {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := new(database.Project)
	result, err := r.db.NewUpdate().
		Model(row).
		Set("name = ?", in.Name).
		Set("description = ?", in.Description).
		Set("materials = ?", in.Materials).
		Set("tools = ?", in.Tools).
		Set("steps = ?", pgdialect.Array(nonNil(in.Steps))).
		Set("tips = ?", in.Tips).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap(ctx, err, "failed to update project")
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	return mapDBProjectToModel(row), nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := database.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.NewDelete().
		Model((*database.Project)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return database.Wrap(ctx, err, "failed to delete project")
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

// steps is NOT NULL; a nil slice would be written as NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapDBProjectToModel(p *database.Project) *Project {
	return &Project{
		ID:           p.ID,
		UID:          p.UID,
		Name:         p.Name,
		Description:  p.Description,
		Picture:      p.Picture,
		PictureThumb: p.PictureThumb,
		Materials:    p.Materials,
		Tools:        p.Tools,
		Steps:        p.Steps,
		Tips:         p.Tips,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
