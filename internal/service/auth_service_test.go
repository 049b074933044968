package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"agenthub/internal/auth"
	"agenthub/internal/cache"
	apperrors "agenthub/internal/errors"
	"agenthub/internal/model"
)

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService("test-secret", time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		userName      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "successful registration",
			email:    "  New@Example.com ",
			password: "password123",
			userName: "New User",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
		},
		{
			name:     "email already registered",
			email:    "existing@example.com",
			password: "password123",
			userName: "Existing",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{ID: uuid.New()}, nil)
			},
			expectedError: apperrors.ErrConflict,
		},
		{
			name:     "concurrent registration hits unique index",
			email:    "race@example.com",
			password: "password123",
			userName: "Race",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(gorm.ErrDuplicatedKey)
			},
			expectedError: apperrors.ErrConflict,
		},
		{
			name:          "missing name",
			email:         "a@example.com",
			password:      "password123",
			userName:      "  ",
			setupMock:     func(m *MockUserRepository) {},
			expectedError: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setupMock(repo)
			jwtSvc := newTestJWT()
			svc := NewAuthService(repo, jwtSvc, new(MockTokenStore), nil)

			token, user, err := svc.Register(context.Background(), tt.email, tt.password, tt.userName)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Empty(t, token)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "new@example.com", user.Email)
				assert.NotEqual(t, tt.password, user.PasswordHash)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(tt.password)))

				claims, err := jwtSvc.ValidateToken(token)
				require.NoError(t, err)
				assert.Equal(t, user.ID.String(), claims.Subject)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: string(hash), Name: "A"}

	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "valid credentials",
			email:    "A@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "a@example.com").Return(user, nil)
			},
		},
		{
			name:     "wrong password",
			email:    "a@example.com",
			password: "nope",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "a@example.com").Return(user, nil)
			},
			expectedError: apperrors.ErrInvalidLogin,
		},
		{
			name:     "unknown email",
			email:    "ghost@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: apperrors.ErrInvalidLogin,
		},
		{
			name:     "database failure is not a login failure",
			email:    "a@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "a@example.com").Return(nil, errors.New("connection refused"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setupMock(repo)
			svc := NewAuthService(repo, newTestJWT(), new(MockTokenStore), nil)

			token, got, err := svc.Login(context.Background(), tt.email, tt.password)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, token)
			case tt.name == "database failure is not a login failure":
				require.Error(t, err)
				assert.NotErrorIs(t, err, apperrors.ErrInvalidLogin)
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, token)
				assert.Equal(t, user.ID, got.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Logout(t *testing.T) {
	store := new(MockTokenStore)
	svc := NewAuthService(new(MockUserRepository), newTestJWT(), store, nil)

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
	}}
	store.On("Revoke", mock.Anything, "jti-1", mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 29*time.Minute && ttl <= 30*time.Minute
	})).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), claims))
	store.AssertExpectations(t)

	assert.ErrorIs(t, svc.Logout(context.Background(), nil), apperrors.ErrUnauthenticated)
}

func TestAuthService_CurrentUser(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := new(MockUserRepository)
	svc := NewAuthService(repo, newTestJWT(), new(MockTokenStore), cache.New(mr.Addr(), "", 0))

	user := &model.User{ID: uuid.New(), Email: "a@example.com", Name: "A", PasswordHash: "secret-hash"}
	repo.On("FindByID", mock.Anything, user.ID).Return(user, nil).Once()

	got, err := svc.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	// second lookup is served from redis; the hash never reaches the cache
	got, err = svc.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.PasswordHash)
	repo.AssertExpectations(t)

	missing := uuid.New()
	repo.On("FindByID", mock.Anything, missing).Return(nil, gorm.ErrRecordNotFound)
	_, err = svc.CurrentUser(context.Background(), missing)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSubject)
}

func TestAuthService_IsRevoked(t *testing.T) {
	store := new(MockTokenStore)
	svc := NewAuthService(new(MockUserRepository), newTestJWT(), store, nil)

	store.On("IsRevoked", mock.Anything, "gone").Return(true, nil)
	store.On("IsRevoked", mock.Anything, "live").Return(false, nil)

	assert.True(t, svc.IsRevoked(context.Background(), "gone"))
	assert.False(t, svc.IsRevoked(context.Background(), "live"))
}
