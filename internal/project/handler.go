package project

import (
	"errors"
	"net/http"

	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/web"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /projects
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		web.Fail(w, r, err, "/projects")
		return
	}
	session.Render(w, r, "Projects", projects)
}

// CreatePage renders the create form alongside the existing projects.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		web.Fail(w, r, err, "/projects")
		return
	}
	session.Render(w, r, "Create Project", projects)
}

// Create handles the multipart create form. The picture field is optional.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var up *Upload
	f, hdr, err := r.FormFile("picture")
	switch {
	case err == nil:
		defer f.Close()
		up = &Upload{
			Filename:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Body:        f,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		web.Fail(w, r, err, "/projects")
		return
	}

	in := Input{
		UID:         web.FormValue(r, "uid"),
		Name:        web.FormValue(r, "name"),
		Description: web.FormValue(r, "description"),
		Materials:   web.FormValue(r, "materials"),
		Tools:       web.FormValue(r, "tools"),
		Steps:       web.FormValues(r, "steps"),
		Tips:        web.FormValue(r, "tips"),
	}

	if _, err := h.service.Create(r.Context(), in, up); err != nil {
		if errors.Is(err, ErrDuplicateUID) {
			session.RedirectWithFlash(w, r, "/projects", session.FlashErrors, "This project already exists")
			return
		}
		web.Fail(w, r, err, "/projects")
		return
	}

	session.RedirectWithFlash(w, r, "/projects", session.FlashSuccess, "Project created successfully.")
}

// Show renders a project read-only.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Project: ")
}

// UpdatePage renders the edit form for a project.
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Edit Project: ")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, titlePrefix string) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		web.Fail(w, r, err, "/projects", ErrNotFound)
		return
	}
	session.Render(w, r, titlePrefix+p.Name, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	in := UpdateInput{
		Name:        web.FormValue(r, "name"),
		Description: web.FormValue(r, "description"),
		Materials:   web.FormValue(r, "materials"),
		Tools:       web.FormValue(r, "tools"),
		Steps:       web.FormValues(r, "steps"),
		Tips:        web.FormValue(r, "tips"),
	}

	if _, err := h.service.Update(r.Context(), id, in); err != nil {
		web.Fail(w, r, err, "/projects/update/"+id.String(), ErrNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/projects", session.FlashSuccess, "Project updated successfully.")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		web.Fail(w, r, err, "/projects", ErrNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/projects", session.FlashSuccess, "Project deleted successfully.")
}
