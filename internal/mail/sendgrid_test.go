package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTemplates = map[string]string{
	"en.EMAIL_VERIFICATION": "d-en-verify",
	"de.EMAIL_VERIFICATION": "d-de-verify",
	"en.PASSWORD_RESET":     "d-en-reset",
}

func TestSendGridTemplateID(t *testing.T) {
	s := NewSendGridSender("key", "", testTemplates)

	id, err := s.TemplateID(EmailVerification, "de")
	require.NoError(t, err)
	assert.Equal(t, "d-de-verify", id)

	id, err = s.TemplateID(PasswordReset, "de")
	require.NoError(t, err)
	assert.Equal(t, "d-en-reset", id)

	_, err = s.TemplateID(AccountRestore, "en")
	assert.True(t, errors.Is(err, ErrNoTemplate))
}

func TestSendGridSend(t *testing.T) {
	var got struct {
		From       struct{ Email string } `json:"from"`
		TemplateID string                 `json:"template_id"`
		Personal   []struct {
			To   []struct{ Email string } `json:"to"`
			Data map[string]any           `json:"dynamic_template_data"`
		} `json:"personalizations"`
	}
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.test", srv.URL+"/", testTemplates)
	err := s.Send(context.Background(), Message{
		To:       "a@x.com",
		From:     "no-reply@example.com",
		Template: EmailVerification,
		Lang:     "de",
		Data:     map[string]any{"link": "https://app.example.com/verify?code=c"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v3/mail/send", path)
	assert.Equal(t, "Bearer SG.test", auth)
	assert.Equal(t, "no-reply@example.com", got.From.Email)
	assert.Equal(t, "d-de-verify", got.TemplateID)
	require.Len(t, got.Personal, 1)
	assert.Equal(t, "a@x.com", got.Personal[0].To[0].Email)
	assert.Equal(t, "https://app.example.com/verify?code=c", got.Personal[0].Data["link"])
}

func TestSendGridSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.bad", srv.URL, testTemplates)
	err := s.Send(context.Background(), Message{To: "a@x.com", From: "f@x.com", Template: PasswordReset, Lang: "en"})
	assert.ErrorContains(t, err, "status 401")
}
