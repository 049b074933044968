package middleware

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"agenthub/internal/auth"
	apperrors "agenthub/internal/errors"
	"agenthub/internal/model"
	"agenthub/internal/service"
)

const (
	claimsContextKey = "claims"
	userContextKey   = "user"
)

// JWT extracts the bearer token and validates it. Failures are reported as
// Unauthenticated, InvalidCredential or ExpiredCredential.
func JWT(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return jwtService.ValidateToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			switch {
			case errors.Is(err, apperrors.ErrExpiredCredential):
				return apperrors.ToEcho(apperrors.ErrExpiredCredential)
			case errors.Is(err, apperrors.ErrInvalidCredential):
				return apperrors.ToEcho(apperrors.ErrInvalidCredential)
			default:
				return apperrors.ToEcho(apperrors.ErrUnauthenticated)
			}
		},
	})
}

// LoadUser resolves the token subject to a user. It must run after JWT.
func LoadUser(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFromContext(c)
			if !ok {
				return apperrors.ToEcho(apperrors.ErrUnauthenticated)
			}
			ctx := c.Request().Context()
			if authService.IsRevoked(ctx, claims.ID) {
				return apperrors.ToEcho(apperrors.ErrInvalidCredential)
			}
			userID, err := claims.UserID()
			if err != nil {
				return apperrors.ToEcho(apperrors.ErrInvalidCredential)
			}

			user, err := authService.CurrentUser(ctx, userID)
			if err != nil {
				return apperrors.ToEcho(err)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// ClaimsFromContext returns the validated token claims.
func ClaimsFromContext(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// UserFromContext returns the authenticated user.
func UserFromContext(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(userContextKey).(*model.User)
	return user, ok && user != nil
}
