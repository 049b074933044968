package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenthub/internal/auth"
	apperrors "agenthub/internal/errors"
	"agenthub/internal/model"
	"agenthub/internal/ratelimit"
)

// stubAuthService knows a fixed set of users and revoked token ids.
type stubAuthService struct {
	users   map[uuid.UUID]*model.User
	revoked map[string]bool
}

func (s *stubAuthService) Register(ctx context.Context, email, password, name string) (string, *model.User, error) {
	return "", nil, nil
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	return "", nil, nil
}

func (s *stubAuthService) Logout(ctx context.Context, claims *auth.Claims) error { return nil }

func (s *stubAuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUnknownSubject
}

func (s *stubAuthService) IsRevoked(ctx context.Context, tokenID string) bool {
	return s.revoked[tokenID]
}

func newGate(t *testing.T, jwtService *auth.JWTService, svc *stubAuthService, extra ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler
	chain := append([]echo.MiddlewareFunc{JWT(jwtService), LoadUser(svc)}, extra...)
	e.GET("/me", func(c echo.Context) error {
		user, ok := UserFromContext(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, user)
	}, chain...)
	return e
}

func TestAccessGate(t *testing.T) {
	jwtService := auth.NewJWTService("gate-secret", time.Hour)
	known := &model.User{ID: uuid.New(), Email: "known@example.com", Name: "Known", PasswordHash: "hash"}
	svc := &stubAuthService{
		users:   map[uuid.UUID]*model.User{known.ID: known},
		revoked: map[string]bool{},
	}

	valid, err := jwtService.GenerateToken(known.ID, known.Email)
	require.NoError(t, err)
	expired, err := auth.NewJWTService("gate-secret", -time.Minute).GenerateToken(known.ID, known.Email)
	require.NoError(t, err)
	forged, err := auth.NewJWTService("other-secret", time.Hour).GenerateToken(known.ID, known.Email)
	require.NoError(t, err)
	ghost, err := jwtService.GenerateToken(uuid.New(), "ghost@example.com")
	require.NoError(t, err)
	revoked, err := jwtService.GenerateToken(known.ID, known.Email)
	require.NoError(t, err)
	revokedClaims, err := jwtService.ValidateToken(revoked)
	require.NoError(t, err)
	svc.revoked[revokedClaims.ID] = true

	tests := []struct {
		name         string
		header       string
		expectedCode int
		errorCode    string
	}{
		{name: "valid token", header: "Bearer " + valid, expectedCode: http.StatusOK},
		{name: "no header", header: "", expectedCode: http.StatusUnauthorized, errorCode: "UNAUTHENTICATED"},
		{name: "wrong scheme", header: "Basic abc", expectedCode: http.StatusUnauthorized, errorCode: "UNAUTHENTICATED"},
		{name: "not a jwt", header: "Bearer not-a-token", expectedCode: http.StatusUnauthorized, errorCode: "UNAUTHENTICATED"},
		{name: "expired", header: "Bearer " + expired, expectedCode: http.StatusUnauthorized, errorCode: "EXPIRED_CREDENTIAL"},
		{name: "bad signature", header: "Bearer " + forged, expectedCode: http.StatusUnauthorized, errorCode: "INVALID_CREDENTIAL"},
		{name: "revoked", header: "Bearer " + revoked, expectedCode: http.StatusUnauthorized, errorCode: "INVALID_CREDENTIAL"},
		{name: "unknown subject", header: "Bearer " + ghost, expectedCode: http.StatusUnauthorized, errorCode: "UNKNOWN_SUBJECT"},
	}

	e := newGate(t, jwtService, svc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.errorCode != "" {
				assert.Equal(t, tt.errorCode, body["code"])
				return
			}
			assert.Equal(t, known.Email, body["email"])
			assert.NotContains(t, body, "passwordHash")
			assert.NotContains(t, rec.Body.String(), "hash")
		})
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	cacheClient := newRedis(t, mr)
	limiter, err := ratelimit.NewFixedWindowLimiter(cacheClient, "test", 2, time.Minute)
	require.NoError(t, err)

	jwtService := auth.NewJWTService("gate-secret", time.Hour)
	alice := &model.User{ID: uuid.New(), Email: "alice@example.com"}
	bob := &model.User{ID: uuid.New(), Email: "bob@example.com"}
	svc := &stubAuthService{users: map[uuid.UUID]*model.User{alice.ID: alice, bob.ID: bob}}
	e := newGate(t, jwtService, svc, RateLimit(limiter))

	call := func(u *model.User) int {
		token, err := jwtService.GenerateToken(u.ID, u.Email)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call(alice))
	assert.Equal(t, http.StatusOK, call(alice))
	assert.Equal(t, http.StatusTooManyRequests, call(alice))
	assert.Equal(t, http.StatusOK, call(bob))
}

func TestRateLimit_NilLimiter(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RateLimit(nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
