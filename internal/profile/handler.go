package profile

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/profile/entity"
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

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	p, err := h.svc.Get(r.Context(), c)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Basic(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	b, err := h.svc.Basic(r.Context(), c)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	fields := map[string]any{"userInfo": b.UserInfo, "impersonationMode": b.ImpersonationMode}
	if b.OAuthProfile != nil {
		fields["oauthProfile"] = b.OAuthProfile
	}
	httpx.Success(w, fields)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	var u entity.Update
	if err := httpx.Decode(r, &u); err != nil {
		h.render.Error(w, r, err)
		return
	}
	p, err := h.svc.Update(r.Context(), c, u)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
