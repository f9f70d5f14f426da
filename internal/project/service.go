package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/storage"
	"github.com/redmonkez12/locklog/internal/validation"
)

const maxPictureBytes = 10 << 20

var pictureExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// Store is the project persistence the service needs.
type Store interface {
	Create(ctx context.Context, in Input, pics Pictures) (*Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service keeps project rows and their stored pictures in step.
type Service struct {
	projects  Store
	files     storage.Store
	validator *validation.Validator
	logger    *logging.Logger
	newKey    func() string
}

func NewService(projects Store, files storage.Store, v *validation.Validator, logger *logging.Logger) *Service {
	return &Service{
		projects:  projects,
		files:     files,
		validator: v,
		logger:    logger,
		newKey:    uuid.NewString,
	}
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.projects.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.projects.GetByID(ctx, id)
}

// Create stores the picture and its 320x240 variant, then the row. A nil
// upload creates a project without a picture.
func (s *Service) Create(ctx context.Context, in Input, up *Upload) (*Project, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.projects.ExistsByUID(ctx, in.UID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateUID
	}

	var pics Pictures
	if up != nil {
		if pics, err = s.storePicture(ctx, up); err != nil {
			return nil, err
		}
	}

	p, err := s.projects.Create(ctx, in, pics)
	if err != nil {
		s.removePictures(pics)
		return nil, err
	}

	s.logger.Info("project created", "project_id", p.ID, "uid", p.UID, "picture", p.Picture)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Project, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	return s.projects.Update(ctx, id, in)
}

// Delete removes the row first; pictures left behind by a failed object
// delete are only logged.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}

	s.removePictures(Pictures{Original: p.Picture, Thumb: p.PictureThumb})
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

func (s *Service) storePicture(ctx context.Context, up *Upload) (Pictures, error) {
	if up.Size > maxPictureBytes {
		return Pictures{}, validation.NewError("picture", "Picture must be smaller than 10 MB")
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, maxPictureBytes+1))
	if err != nil {
		return Pictures{}, fmt.Errorf("failed to read picture: %w", err)
	}
	if len(data) > maxPictureBytes {
		return Pictures{}, validation.NewError("picture", "Picture must be smaller than 10 MB")
	}

	thumb, err := storage.Thumbnail(bytes.NewReader(data), storage.ThumbWidth, storage.ThumbHeight)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return Pictures{}, validation.NewError("picture", "Picture must be a JPEG, PNG, GIF or WebP image")
		}
		return Pictures{}, err
	}

	ext := strings.ToLower(path.Ext(up.Filename))
	if !pictureExts[ext] {
		ext = ""
	}
	base := "projects/" + s.newKey()
	pics := Pictures{
		Original: base + "/original" + ext,
		Thumb:    fmt.Sprintf("%s/%dx%d.jpg", base, storage.ThumbWidth, storage.ThumbHeight),
	}

	contentType := up.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	if err := s.files.Put(ctx, pics.Original, bytes.NewReader(data), contentType); err != nil {
		return Pictures{}, fmt.Errorf("failed to store picture: %w", err)
	}
	if err := s.files.Put(ctx, pics.Thumb, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		s.removePictures(Pictures{Original: pics.Original})
		return Pictures{}, fmt.Errorf("failed to store thumbnail: %w", err)
	}

	return pics, nil
}

// removePictures runs detached from the request so a cancelled request does
// not leave orphans behind.
func (s *Service) removePictures(pics Pictures) {
	for _, key := range []string{pics.Original, pics.Thumb} {
		if key == "" {
			continue
		}
		if err := s.files.Delete(context.Background(), key); err != nil {
			s.logger.Warn("failed to remove picture", "key", key, "error", err)
		}
	}
}
