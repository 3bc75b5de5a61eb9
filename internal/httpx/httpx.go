// Package httpx holds the JSON response helpers shared by the handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

// Result codes carried in every response body.
const (
	ResultSuccess                    = "success"
	ResultError                      = "error"
	ResultOTPRequired                = "otpRequired"
	ResultPasswordValidationRequired = "PASSWORD_VALIDATION_REQUIRED"
)

const maxBody = 1 << 20

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success writes {"resultCode":"success"} merged with fields.
func Success(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"resultCode": ResultSuccess}
	for k, v := range fields {
		body[k] = v
	}
	WriteJSON(w, http.StatusOK, body)
}

// Decode reads a JSON body into v. An empty body leaves v untouched.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.ErrInvalidRequest
	}
	return nil
}

// Renderer turns service errors into responses.
type Renderer struct {
	Logger *zap.SugaredLogger
	// ClearSession drops the session cookie; called for errors that ask for it.
	ClearSession func(http.ResponseWriter)
}

// Error renders err. Coded errors keep their status and code; anything
// else is logged and reported as a bare 500.
func (rd Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if rd.Logger != nil {
			rd.Logger.Errorw("request failed", "path", r.URL.Path, "err", err)
		}
		ae = apperr.Internal
	} else if rd.Logger != nil {
		rd.Logger.Debugw("request rejected", "path", r.URL.Path, "code", ae.Code, "kind", ae.Kind.String())
	}
	if ae.ClearSession && rd.ClearSession != nil {
		rd.ClearSession(w)
	}
	WriteJSON(w, ae.Status, Body(ae))
}

// Body is the wire shape of a coded error.
func Body(ae *apperr.Error) map[string]any {
	body := map[string]any{
		"resultCode": ResultError,
		"errorCode":  ae.Code,
		"message":    ae.MessageKey,
	}
	for k, v := range ae.Details {
		body[k] = v
	}
	return body
}
