package oauth

import (
	"net/http"

	"go.uber.org/zap"

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

// Login handles POST ?code=&provider=&isRemember=.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Login(r.Context(), q.Get("code"), q.Get("provider"), q.Get("isRemember") == "true")
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	user.RespondLogin(w, h.cookies, res)
}

// Logout handles GET ?userId=&provider=. The session cookie is cleared
// even when the provider refuses the revocation.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.cookies.Clear(w)
	if err := h.svc.Logout(r.Context(), q.Get("userId"), q.Get("provider")); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}
