package project

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/validation"
	"github.com/redmonkez12/locklog/internal/web/webtest"
)

func newTestClient(t *testing.T) (*webtest.Client, *fakeStore, *fakeFiles) {
	t.Helper()
	store, files := &fakeStore{}, newFakeFiles()
	h := NewHandler(NewService(store, files, validation.New("@"), logging.Discard()))
	c := webtest.New(t, func(r chi.Router) {
		r.Get("/projects", h.List)
		r.Post("/projects", h.Create)
		r.Get("/projects/create", h.CreatePage)
		r.Get("/projects/update/{id}", h.UpdatePage)
		r.Get("/projects/{id}", h.Show)
		r.Post("/projects/{id}", h.Update)
		r.Post("/projects/delete/{id}", h.Delete)
	})
	return c, store, files
}

func TestHandler_CreateWithPicture(t *testing.T) {
	c, store, files := newTestClient(t)

	rec := c.PostMultipart("/projects",
		url.Values{"uid": {"P-1"}, "name": {"Bridge"}, "steps": {"cut", " ", "glue"}},
		"picture", "bridge.png", encodePNG(t, 64, 48))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/projects", webtest.Location(rec))

	assert.Equal(t, []string{"Project created successfully."}, c.Flashes("/projects")[session.FlashSuccess])
	require.Len(t, store.projects, 1)
	assert.Equal(t, []string{"cut", "glue"}, store.projects[0].Steps)
	assert.Len(t, files.objects, 2)
}

func TestHandler_CreateWithoutPicture(t *testing.T) {
	c, store, files := newTestClient(t)

	c.PostMultipart("/projects", url.Values{"uid": {"P-1"}, "name": {"Bridge"}}, "", "", nil)
	c.Post("/projects", url.Values{"uid": {"P-2"}, "name": {"Tower"}})

	assert.Len(t, store.projects, 2)
	assert.Empty(t, files.objects)
}

func TestHandler_CreateErrors(t *testing.T) {
	c, _, _ := newTestClient(t)

	c.PostMultipart("/projects", url.Values{"uid": {"P-1"}, "name": {"Bridge"}}, "picture", "x.png", []byte("not an image"))
	assert.Equal(t, []string{"Picture must be a JPEG, PNG, GIF or WebP image"}, c.Flashes("/projects")[session.FlashErrors])

	c.Post("/projects", url.Values{"uid": {"P-1"}, "name": {"Bridge"}})
	c.Flashes("/projects")
	c.Post("/projects", url.Values{"uid": {"P-1"}, "name": {"Again"}})
	assert.Equal(t, []string{"This project already exists"}, c.Flashes("/projects")[session.FlashErrors])
}

func TestHandler_ShowUpdateDelete(t *testing.T) {
	c, store, _ := newTestClient(t)
	c.Post("/projects", url.Values{"uid": {"P-1"}, "name": {"Bridge"}})
	id := store.projects[0].ID.String()

	code, v := c.Get("/projects/" + id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Project: Bridge", v.Title)

	code, v = c.Get("/projects/update/" + id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Edit Project: Bridge", v.Title)

	rec := c.Post("/projects/"+id, url.Values{"name": {""}})
	assert.Equal(t, "/projects/update/"+id, webtest.Location(rec))
	assert.Equal(t, []string{"Name cannot be blank"}, c.Flashes("/projects")[session.FlashErrors])

	rec = c.Post("/projects/"+id, url.Values{"name": {"Tower"}})
	assert.Equal(t, "/projects", webtest.Location(rec))
	assert.Equal(t, "Tower", store.projects[0].Name)

	rec = c.Post("/projects/delete/"+id, nil)
	assert.Equal(t, "/projects", webtest.Location(rec))
	assert.Equal(t, []string{"Project deleted successfully."}, c.Flashes("/projects")[session.FlashSuccess])

	code, _ = c.Get("/projects/" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)
}
