package admin

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/session"
)

type Handler struct {
	svc    *Service
	render httpx.Renderer
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, render httpx.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, render: render, logger: logger}
}

func accountID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("accountId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrAccountNotFound
	}
	return id, nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("currentPage"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	l, err := h.svc.List(r.Context(), c, Page{CurrentPage: page, PageSize: size, Search: q.Get("searchTerm")})
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"totalNumberUsers": l.Total, "users": l.Users})
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	d, err := h.svc.Detail(r.Context(), id)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"userDetailed": d})
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	var in struct {
		Block bool `json:"block"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	d, err := h.svc.Block(r.Context(), id, in.Block)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"userDetailed": d})
}

func (h *Handler) ForcePasswordChange(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	var in struct {
		Change bool `json:"change"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	d, err := h.svc.ForcePasswordChange(r.Context(), id, in.Change)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"userDetailed": d})
}

func (h *Handler) ForceRelogin(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	if err := h.svc.ForceRelogin(r.Context(), id); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}

func (h *Handler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	id, err := accountID(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	var in struct {
		RolesID []int64 `json:"rolesId"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	d, err := h.svc.AssignRoles(r.Context(), c, id, in.RolesID)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"userDetailed": d})
}
