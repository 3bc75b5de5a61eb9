package user

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/httpx"
	"github.com/slava-lu/auth-app-backend/internal/mail"
	"github.com/slava-lu/auth-app-backend/internal/session"
)

// Handler exposes the login, account and password endpoints.
type Handler struct {
	svc     *Service
	cookies *session.Cookies
	render  httpx.Renderer
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, cookies *session.Cookies, render httpx.Renderer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, cookies: cookies, render: render, logger: logger}
}

// RespondLogin writes a login outcome: the session cookie and user info,
// or the second factor challenge.
func RespondLogin(w http.ResponseWriter, cookies *session.Cookies, res *LoginResult) {
	if res.OTPRequired {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"resultCode": httpx.ResultOTPRequired,
			"twoFaCode":  res.TwoFaCode,
		})
		return
	}
	RespondSession(w, cookies, res.Session)
}

// RespondSession sets the session cookie and writes the user info.
func RespondSession(w http.ResponseWriter, cookies *session.Cookies, s *Session) {
	cookies.Set(w, s.Token, s.Remember)
	fields := map[string]any{}
	if s.UserInfo != nil {
		fields["userInfo"] = s.UserInfo
	}
	httpx.Success(w, fields)
}

func claims(r *http.Request) (*session.Claims, error) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		return nil, apperr.ErrTokenNotFound
	}
	return c, nil
}

func lang(r *http.Request) string { return mail.Lang(r.Header.Get("Accept-Language")) }

func queryID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id
}

func (h *Handler) LoginLocal(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	res, err := h.svc.LoginLocal(r.Context(), in)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	RespondLogin(w, h.cookies, res)
}

func (h *Handler) RenewToken(w http.ResponseWriter, r *http.Request) {
	c, err := claims(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	s, err := h.svc.RenewToken(r.Context(), c)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	if s != nil {
		h.cookies.Set(w, s.Token, true)
	}
	httpx.Success(w, nil)
}

func (h *Handler) LoginAs(w http.ResponseWriter, r *http.Request) {
	c, err := claims(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	var in struct {
		Email string `json:"email"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	s, err := h.svc.LoginAs(r.Context(), c, in.Email)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	RespondSession(w, h.cookies, s)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	httpx.Success(w, nil)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LogoutAll(r.Context(), h.cookies.Read(r)); err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.cookies.Clear(w)
	httpx.Success(w, nil)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	in.Lang = lang(r)
	s, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	RespondSession(w, h.cookies, s)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	c, err := claims(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), c, lang(r)); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Restore(r.Context(), queryID(r, "accountId"), r.URL.Query().Get("accountRestoreCode"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	email, err := h.svc.VerifyEmail(r.Context(), queryID(r, "accountId"), r.URL.Query().Get("emailVerificationCode"))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, map[string]any{"email": email})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	c, err := claims(r)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	var in struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), c, in.OldPassword, in.NewPassword); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}

func (h *Handler) CheckResetCode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.svc.CheckResetCode(r.Context(), q.Get("email"), q.Get("passwordResetCode")); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}

func (h *Handler) ResetByCode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email             string `json:"email"`
		PasswordResetCode string `json:"passwordResetCode"`
		Password          string `json:"password"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		h.render.Error(w, r, err)
		return
	}
	if err := h.svc.ResetByCode(r.Context(), in.Email, in.PasswordResetCode, in.Password); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}

func (h *Handler) RequestResetCode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestResetCode(r.Context(), r.URL.Query().Get("email"), lang(r)); err != nil {
		h.render.Error(w, r, err)
		return
	}
	httpx.Success(w, nil)
}
