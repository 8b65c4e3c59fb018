package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/formwork/platform/internal/guard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobWithConfig(actionType domain.ActionType, config any, properties map[string]any) domain.ActionJob {
	raw, _ := json.Marshal(config)
	event := domain.NewLifecycleEvent(uuid.New(), uuid.New(), domain.TriggerCreate, domain.OutcomeSuccess, false, properties)
	return domain.ActionJob{
		CorrelationID:      event.CorrelationID,
		ActionDefinitionID: uuid.New(),
		ActionType:         actionType,
		Config:             raw,
		Event:              event,
	}
}

func TestRedirectKind_ProducesEffect(t *testing.T) {
	kind := NewRedirectKind()
	job := jobWithConfig(domain.ActionRedirect, domain.RedirectConfig{RedirectURL: "/thanks"}, nil)

	effect, err := kind.Run(context.Background(), job)
	require.NoError(t, err)

	var parsed domain.RedirectEffect
	require.NoError(t, json.Unmarshal(effect, &parsed))
	assert.Equal(t, "/thanks", parsed.RedirectURL)
}

func TestRedirectKind_RejectsNetworkPathReference(t *testing.T) {
	kind := NewRedirectKind()
	job := jobWithConfig(domain.ActionRedirect, domain.RedirectConfig{RedirectURL: "//evil.example.com/phish"}, nil)

	_, err := kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidTarget, domain.ErrorCode(err))
}

func TestServeFileKind_RejectsTraversal(t *testing.T) {
	kind := NewServeFileKind()
	job := jobWithConfig(domain.ActionServeFile, domain.ServeFileConfig{FilePath: "/files/../../etc/passwd"}, nil)

	_, err := kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidTarget, domain.ErrorCode(err))
}

type captureMailer struct {
	to, subject, body string
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func TestEmailKind_InterpolatesProperties(t *testing.T) {
	mailer := &captureMailer{}
	kind := NewEmailKind(mailer)
	job := jobWithConfig(domain.ActionSendEmail, domain.EmailConfig{
		To:      "ops@example.com",
		Subject: "New order from {{name}}",
		Body:    "Quantity: {{quantity}}, missing: {{nope}}",
	}, map[string]any{"name": "Ada", "quantity": 3})

	_, err := kind.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", mailer.to)
	assert.Equal(t, "New order from Ada", mailer.subject)
	// Unknown placeholders stay intact so operators can spot them.
	assert.Equal(t, "Quantity: 3, missing: {{nope}}", mailer.body)
}

func TestEmailKind_RejectsBadAddress(t *testing.T) {
	kind := NewEmailKind(&captureMailer{})
	job := jobWithConfig(domain.ActionSendEmail, domain.EmailConfig{To: "not-an-address", Subject: "x"}, nil)

	_, err := kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConfigError, domain.ErrorCode(err))
}

func TestWebRequestKind_DeliversSnapshot(t *testing.T) {
	var gotCorrelation string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = r.Header.Get("X-Correlation-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	kind := NewWebRequestKind(srv.Client(), nil, nil)
	job := jobWithConfig(domain.ActionSendWebRequest, domain.WebRequestConfig{URL: srv.URL}, map[string]any{"name": "Ada"})

	effect, err := kind.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.CorrelationID.String(), gotCorrelation)
	assert.Equal(t, "Ada", gotBody["name"])

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(effect, &parsed))
	assert.Equal(t, float64(http.StatusOK), parsed["status_code"])
}

func TestWebRequestKind_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	kind := NewWebRequestKind(srv.Client(), nil, nil)
	job := jobWithConfig(domain.ActionSendWebRequest, domain.WebRequestConfig{URL: srv.URL}, nil)

	_, err := kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestWebRequestKind_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	kind := NewWebRequestKind(srv.Client(), nil, nil)
	job := jobWithConfig(domain.ActionSendWebRequest, domain.WebRequestConfig{URL: srv.URL}, nil)

	_, err := kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, domain.CodePermanent, domain.ErrorCode(err))
}

func TestWebRequestKind_RateLimitBlocksAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rl := guard.NewRateLimiter(1, time.Minute)
	kind := NewWebRequestKind(srv.Client(), rl, nil)
	job := jobWithConfig(domain.ActionSendWebRequest, domain.WebRequestConfig{URL: srv.URL}, nil)

	_, err := kind.Run(context.Background(), job)
	require.NoError(t, err)

	_, err = kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestWebRequestKind_OpenCircuitBlocksAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := guard.NewCircuitBreaker(2, time.Minute)
	kind := NewWebRequestKind(srv.Client(), nil, cb)
	job := jobWithConfig(domain.ActionSendWebRequest, domain.WebRequestConfig{URL: srv.URL}, nil)

	// Two 5xx responses trip the breaker for this host.
	for i := 0; i < 2; i++ {
		_, err := kind.Run(context.Background(), job)
		require.Error(t, err)
	}

	_, err := kind.Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}
