package project

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	projects  []*Project
	createErr error
}

func (f *fakeStore) find(id uuid.UUID) *Project {
	for _, p := range f.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakeStore) Create(_ context.Context, in Input, pics Pictures) (*Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := &Project{
		ID: uuid.New(), UID: in.UID, Name: in.Name, Description: in.Description,
		Picture: pics.Original, PictureThumb: pics.Thumb, Steps: in.Steps, CreatedAt: time.Now(),
	}
	f.projects = append(f.projects, p)
	return p, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.find(id); p != nil {
		return p, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ExistsByUID(_ context.Context, uid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.UID == uid {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) List(context.Context) ([]Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, in UpdateInput) (*Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.find(id)
	if p == nil {
		return nil, ErrNotFound
	}
	p.Name, p.Description, p.Materials, p.Tools, p.Steps, p.Tips = in.Name, in.Description, in.Materials, in.Tools, in.Steps, in.Tips
	return p, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.projects {
		if p.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeFiles) Put(_ context.Context, key string, body io.Reader, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != "" && bytes.Contains([]byte(key), []byte(f.failPut)) {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
