package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTManager() *JWTManager {
	return NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
}

func bearerToken(t *testing.T, mgr *JWTManager, role string) string {
	t.Helper()
	token, err := mgr.GenerateToken(uuid.New(), "op@example.com", role)
	require.NoError(t, err)
	return "Bearer " + token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthenticateOperator_MissingTokenUsesErrorEnvelope(t *testing.T) {
	h := AuthenticateOperator(testJWTManager())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/admin/namespaces", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.NotEmpty(t, body["message"])
}

func TestAuthenticateOperator_ValidTokenMarksAdminCaller(t *testing.T) {
	mgr := testJWTManager()
	var adminCaller bool
	h := AuthenticateOperator(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminCaller = IsAdminCaller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/namespaces", nil)
	req.Header.Set("Authorization", bearerToken(t, mgr, RoleAdmin))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, adminCaller)
}

func TestRequireRole_ForbiddenUsesErrorEnvelope(t *testing.T) {
	mgr := testJWTManager()
	h := AuthenticateOperator(mgr)(RequireRole(WriteRoles()...)(okHandler()))

	req := httptest.NewRequest(http.MethodPost, "/admin/namespaces", nil)
	req.Header.Set("Authorization", bearerToken(t, mgr, RoleViewer))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestRequireRole_WithoutAuthContext(t *testing.T) {
	h := RequireRole(WriteRoles()...)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/namespaces", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}
