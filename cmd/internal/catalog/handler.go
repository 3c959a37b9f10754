package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/internal/web"
)

const maxBodyBytes = 16 << 10

// Handler serves the catalog routes.
type Handler struct {
	store Store
	log   *slog.Logger
}

func NewHandler(store Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, log: log}
}

// Register mounts the catalog routes. Writes and per-user reads go through jwt.
func (h *Handler) Register(mux *http.ServeMux, jwt *jwtauth.Manager) {
	mux.HandleFunc("GET /api/ncaaa", h.ListCourses)
	mux.Handle("POST /api/ncaaa", jwt.Required(jwtauth.VerifyOptions{}, http.HandlerFunc(h.CreateCourse)))
	mux.Handle("GET /api/orcid/researches", jwt.Required(jwtauth.VerifyOptions{}, http.HandlerFunc(h.ListResearches)))
	mux.Handle("POST /api/orcid/researches", jwt.Required(jwtauth.VerifyOptions{}, http.HandlerFunc(h.CreateResearch)))
}

type courseRequest struct {
	Code       string `json:"code" validate:"required,max=20"`
	Title      string `json:"title" validate:"required,max=200"`
	Department string `json:"department" validate:"max=120"`
	Level      string `json:"level" validate:"max=40"`
}

type researchRequest struct {
	Title   string `json:"title" validate:"required,max=500"`
	DOI     string `json:"doi" validate:"omitempty,max=200"`
	Journal string `json:"journal" validate:"max=300"`
	Year    int    `json:"year" validate:"omitempty,min=1900,max=2100"`
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context())
	if err != nil {
		h.log.Error("catalog.courses.list.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal", "could not load courses")
		return
	}
	if courses == nil {
		courses = []Course{}
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "courses": courses})
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := h.store.CreateCourse(r.Context(), Course{
		Code:       req.Code,
		Title:      req.Title,
		Department: req.Department,
		Level:      req.Level,
	})
	switch {
	case errors.Is(err, ErrConflict):
		web.WriteError(w, http.StatusConflict, "conflict", "course code already exists")
		return
	case errors.Is(err, ErrInvalidInput):
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "code and title are required")
		return
	case err != nil:
		h.log.Error("catalog.courses.create.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal", "could not create course")
		return
	}

	claims, _ := jwtauth.ClaimsFromContext(r.Context())
	h.log.Info("catalog.courses.created", "course_id", c.ID, "code", c.Code, "by", identity(claims))
	web.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "course": c})
}

func (h *Handler) ListResearches(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtauth.ClaimsFromContext(r.Context())
	if !ok {
		jwtauth.WriteError(w, jwtauth.ErrNoToken)
		return
	}

	rs, err := h.store.ListResearches(r.Context(), claims.Identity())
	if err != nil {
		h.log.Error("catalog.researches.list.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal", "could not load researches")
		return
	}
	if rs == nil {
		rs = []Research{}
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "researches": rs})
}

func (h *Handler) CreateResearch(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtauth.ClaimsFromContext(r.Context())
	if !ok {
		jwtauth.WriteError(w, jwtauth.ErrNoToken)
		return
	}
	var req researchRequest
	if !decode(w, r, &req) {
		return
	}

	rs, err := h.store.CreateResearch(r.Context(), Research{
		OwnerID: claims.Identity(),
		Title:   req.Title,
		DOI:     req.DOI,
		Journal: req.Journal,
		Year:    req.Year,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		web.WriteError(w, http.StatusNotFound, "not_found", "owner not found")
		return
	case errors.Is(err, ErrInvalidInput):
		web.WriteError(w, http.StatusBadRequest, "invalid_request", "title is required")
		return
	case err != nil:
		h.log.Error("catalog.researches.create.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal", "could not create research")
		return
	}
	web.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "research": rs})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := web.DecodeJSON(w, r, maxBodyBytes, dst); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	if err := web.Validate(dst); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", web.ValidationMessage(err))
		return false
	}
	return true
}

func identity(c *jwtauth.Claims) string {
	if c == nil {
		return ""
	}
	return c.Identity()
}
