package setting

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/role"
)

// RoleLister provides the role catalog.
type RoleLister interface {
	ListRoles(ctx context.Context) ([]role.Role, error)
}

// Handler serves the system endpoints.
type Handler struct {
	runtime *Runtime
	roles   RoleLister
	render  httpx.Renderer
	logger  *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(rt *Runtime, roles RoleLister, render httpx.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{runtime: rt, roles: roles, render: render, logger: logger}
}

// ConfigOption returns the assignable roles and the runtime options.
func (h *Handler) ConfigOption(w http.ResponseWriter, r *http.Request) {
	all, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{
		"roles":  role.Visible(all),
		"config": h.runtime,
	})
}
