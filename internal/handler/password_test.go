package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskflo/taskflo/internal/model"
	"github.com/taskflo/taskflo/internal/queue"
	"github.com/taskflo/taskflo/internal/service"
)

// In-memory account store backing the recovery service in handler tests.
type memAccounts struct {
	mu     sync.Mutex
	user   model.User
	digest string
	exp    time.Time
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user.Email != email {
		return model.User{}, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *memAccounts) SetResetCredential(_ context.Context, _ uint64, digest string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digest = digest
	m.exp = exp
	return nil
}

func (m *memAccounts) ResetPasswordByDigest(_ context.Context, digest, newHash string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.digest == "" || m.digest != digest || !time.Now().UTC().Before(m.exp) {
		return 0, false, nil
	}
	m.user.PasswordHash = newHash
	m.digest = ""
	return m.user.ID, true, nil
}

type memSessions struct{}

func (memSessions) RevokeAllForUser(context.Context, uint64) error { return nil }

type memDispatcher struct {
	events chan queue.PasswordResetRequestedEvent
}

func (m *memDispatcher) PasswordResetRequested(_ context.Context, ev queue.PasswordResetRequestedEvent) error {
	m.events <- ev
	return nil
}

func newPasswordHandler() (*PasswordHandler, *memAccounts, *memDispatcher) {
	accounts := &memAccounts{user: model.User{ID: 7, Email: "a@x.com", PasswordHash: "$2a$12$old"}}
	dispatch := &memDispatcher{events: make(chan queue.PasswordResetRequestedEvent, 4)}
	rec := service.NewRecovery(accounts, memSessions{}, dispatch, zap.NewNop(), 15, 12)
	return NewPasswordHandler(rec), accounts, dispatch
}

func postJSON(t *testing.T, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec
}

func awaitEvent(t *testing.T, d *memDispatcher) queue.PasswordResetRequestedEvent {
	t.Helper()
	select {
	case ev := <-d.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dispatched reset event")
		return queue.PasswordResetRequestedEvent{}
	}
}

func TestForgotPassword_ResponseIdenticalForAnyEmail(t *testing.T) {
	h, _, dispatch := newPasswordHandler()

	known := postJSON(t, h.ForgotPassword, `{"email":"a@x.com"}`)
	unknown := postJSON(t, h.ForgotPassword, `{"email":"nobody@x.com"}`)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String(),
		"registered and unregistered addresses must be indistinguishable")

	// Only the registered address actually produced a mail event.
	awaitEvent(t, dispatch)
	select {
	case <-dispatch.events:
		t.Fatal("unknown address must not dispatch mail")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	h, _, _ := newPasswordHandler()

	rec := postJSON(t, h.ForgotPassword, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email is required")
}

func TestForgotPassword_ResponseNeverContainsSecret(t *testing.T) {
	h, _, dispatch := newPasswordHandler()

	rec := postJSON(t, h.ForgotPassword, `{"email":"a@x.com"}`)
	ev := awaitEvent(t, dispatch)

	assert.NotContains(t, rec.Body.String(), ev.Token,
		"the raw secret must only travel out of band")
}

func TestResetPassword_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing both", `{}`, "Token and password are required"},
		{"missing password", `{"token":"abc"}`, "Token and password are required"},
		{"missing token", `{"password":"longenough1"}`, "Token and password are required"},
		{"short password", `{"token":"abc","password":"short"}`, "Password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newPasswordHandler()
			rec := postJSON(t, h.ResetPassword, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
		})
	}
}

func TestResetPassword_FullFlow(t *testing.T) {
	h, accounts, dispatch := newPasswordHandler()

	// Request a reset and capture the secret from the mail event.
	postJSON(t, h.ForgotPassword, `{"email":"a@x.com"}`)
	ev := awaitEvent(t, dispatch)

	// Redeem it.
	rec := postJSON(t, h.ResetPassword, `{"token":"`+ev.Token+`","password":"longenough1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password reset successful")

	accounts.mu.Lock()
	assert.Empty(t, accounts.digest)
	accounts.mu.Unlock()

	// Same secret a second time: single generic rejection.
	again := postJSON(t, h.ResetPassword, `{"token":"`+ev.Token+`","password":"longenough1"}`)
	assert.Equal(t, http.StatusBadRequest, again.Code)
	assert.Contains(t, again.Body.String(), "Invalid or expired token")
}

func TestResetPassword_BogusToken(t *testing.T) {
	h, _, _ := newPasswordHandler()

	rec := postJSON(t, h.ResetPassword, `{"token":"not-a-real-token","password":"longenough1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}
