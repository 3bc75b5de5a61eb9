package twofa

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/session"
	"github.com/slava-lu/auth-app-backend/internal/user"
)

type Handler struct {
	svc     *Service
	cookies *session.Cookies
	render  httpx.Renderer
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, cookies *session.Cookies, render httpx.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, cookies: cookies, render: render, logger: logger}
}

// CheckCode answers the login challenge: {twoFaCode, token, isRemember}.
func (h *Handler) CheckCode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token      string `json:"token"`
		TwoFaCode  string `json:"twoFaCode"`
		IsRemember bool   `json:"isRemember"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	s, err := h.svc.CheckCode(r.Context(), in.TwoFaCode, in.Token, in.IsRemember)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	user.RespondSession(w, h.cookies, s)
}

func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	e, err := h.svc.Init(r.Context(), c)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) ConfirmInit(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	var in struct {
		Token string `json:"token"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	info, err := h.svc.ConfirmInit(r.Context(), c, in.Token)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"userInfo": info})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.render.Error(w, r, apperr.ErrTokenNotFound)
		return
	}
	info, err := h.svc.Remove(r.Context(), c)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"userInfo": info})
}
