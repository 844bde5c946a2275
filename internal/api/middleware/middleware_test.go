package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/api/response"
	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/principal"
	"github.com/orbitcrm/orbit/internal/ratelimit"
	"github.com/orbitcrm/orbit/internal/scope"
)

// fakeAuthenticator resolves a fixed set of credentials.
type fakeAuthenticator struct {
	identities map[string]*auth.Identity
	err        error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, raw string) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if id, ok := f.identities[raw]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidCredential
}

func orgIdentity(orgID int64) *auth.Identity {
	return &auth.Identity{
		Family:         auth.FamilyOrganization,
		KeyDigest:      "digest-org",
		OrganizationID: &orgID,
		Scopes:         []string{auth.ScopeRead, auth.ScopeWrite},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.Error {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return *env.Error
}

func TestAuth_MissingHeader(t *testing.T) {
	handler := middleware.Auth(&fakeAuthenticator{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a credential")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/data", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestAuth_InvalidCredential(t *testing.T) {
	handler := middleware.Auth(&fakeAuthenticator{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with a bad credential")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/data", nil)
	req.Header.Set("Authorization", "Bearer orb_o_nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestAuth_StoreFailure(t *testing.T) {
	authn := &fakeAuthenticator{err: errors.New("connection refused")}
	handler := middleware.Auth(authn)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run when authentication errors")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/data", nil)
	req.Header.Set("Authorization", "Bearer orb_o_whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuth_InjectsIdentityAndScope(t *testing.T) {
	identity := orgIdentity(42)
	authn := &fakeAuthenticator{identities: map[string]*auth.Identity{"Bearer good": identity}}

	var gotIdentity *auth.Identity
	var gotScope scope.Scope
	var scopeOK bool
	handler := middleware.Auth(authn)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotIdentity = middleware.GetIdentity(r.Context())
		gotScope, scopeOK = scope.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/data", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Same(t, identity, gotIdentity)
	require.True(t, scopeOK)
	assert.False(t, gotScope.IsMaster)
	require.NotNil(t, gotScope.OrganizationID)
	assert.Equal(t, int64(42), *gotScope.OrganizationID)
}

func withIdentity(t *testing.T, mw func(http.Handler) http.Handler, identity *auth.Identity, method string) *httptest.ResponseRecorder {
	t.Helper()
	authn := &fakeAuthenticator{identities: map[string]*auth.Identity{"Bearer cred": identity}}
	var called bool
	handler := middleware.Auth(authn)(mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(method, "/v1/test", nil)
	req.Header.Set("Authorization", "Bearer cred")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		require.True(t, called)
	}
	return rec
}

func TestRequireAdmin(t *testing.T) {
	orgID := int64(1)
	tests := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{
			name: "admin session passes",
			identity: &auth.Identity{
				Family: auth.FamilySession, KeyDigest: "d", OrganizationID: &orgID,
				Scopes:    []string{auth.ScopeRead, auth.ScopeWrite},
				Principal: &principal.Principal{ID: 1, OrganizationID: orgID, Administrator: true},
			},
			want: http.StatusOK,
		},
		{
			name: "non-admin session rejected",
			identity: &auth.Identity{
				Family: auth.FamilySession, KeyDigest: "d", OrganizationID: &orgID,
				Scopes:    []string{auth.ScopeRead, auth.ScopeWrite},
				Principal: &principal.Principal{ID: 2, OrganizationID: orgID},
			},
			want: http.StatusForbidden,
		},
		{
			name:     "api key rejected even with write scope",
			identity: orgIdentity(orgID),
			want:     http.StatusForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := withIdentity(t, middleware.RequireAdmin(), tc.identity, http.MethodGet)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireMaster(t *testing.T) {
	master := &auth.Identity{Family: auth.FamilyMaster, KeyDigest: "d", Scopes: []string{auth.ScopeRead, auth.ScopeWrite}}

	rec := withIdentity(t, middleware.RequireMaster(), master, http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = withIdentity(t, middleware.RequireMaster(), orgIdentity(1), http.MethodGet)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
}

func TestRequireVerbScope(t *testing.T) {
	orgID := int64(1)
	readOnly := &auth.Identity{
		Family: auth.FamilyOrganization, KeyDigest: "d",
		OrganizationID: &orgID, Scopes: []string{auth.ScopeRead},
	}

	rec := withIdentity(t, middleware.RequireVerbScope(), readOnly, http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code, "read scope covers GET")

	rec = withIdentity(t, middleware.RequireVerbScope(), readOnly, http.MethodPost)
	assert.Equal(t, http.StatusForbidden, rec.Code, "read-only credential cannot mutate")

	rec = withIdentity(t, middleware.RequireVerbScope(), orgIdentity(orgID), http.MethodDelete)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// failingStore simulates an unavailable shared counter backend.
type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("redis: connection refused")
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 2, time.Minute)
	rec := withIdentity(t, middleware.RateLimit(limiter), orgIdentity(1), http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = withIdentity(t, middleware.RateLimit(limiter), orgIdentity(1), http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = withIdentity(t, middleware.RateLimit(limiter), orgIdentity(1), http.MethodGet)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := ratelimit.NewLimiter(failingStore{}, 2, time.Minute)

	rec := withIdentity(t, middleware.RateLimit(limiter), orgIdentity(1), http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code, "a broken counter store must not reject traffic")
}
