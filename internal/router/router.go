package router

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"agenthub/internal/auth"
	"agenthub/internal/config"
	"agenthub/internal/errors"
	"agenthub/internal/handler"
	"agenthub/internal/middleware"
	"agenthub/internal/ratelimit"
	"agenthub/internal/service"
)

// jsonBodyLimit caps every request body except uploads.
const jsonBodyLimit = "1M"

const uploadPath = "/api/files/:projectId"

// Deps bundles what the routes need.
type Deps struct {
	JWTService     *auth.JWTService
	AuthService    service.AuthService
	ChatLimiter    *ratelimit.FixedWindowLimiter
	AuthHandler    *handler.AuthHandler
	ProjectHandler *handler.ProjectHandler
	ChatHandler    *handler.ChatHandler
	FileHandler    *handler.FileHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Deps) {
	e.HTTPErrorHandler = errors.HTTPErrorHandler
	e.Validator = NewValidator()

	e.Use(echomw.RequestID())
	e.Use(requestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
		Skipper: isUpload,
		Limit:   jsonBodyLimit,
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", deps.AuthHandler.Register)
	api.POST("/auth/login", deps.AuthHandler.Login)

	// Secured routes (require a valid token naming an existing user)
	secured := api.Group("", middleware.JWT(deps.JWTService), middleware.LoadUser(deps.AuthService))

	secured.GET("/auth/me", deps.AuthHandler.Me)
	secured.POST("/auth/logout", deps.AuthHandler.Logout)

	// Project routes
	secured.GET("/projects", deps.ProjectHandler.List)
	secured.POST("/projects", deps.ProjectHandler.Create)
	secured.GET("/projects/:id", deps.ProjectHandler.Get)
	secured.PUT("/projects/:id", deps.ProjectHandler.Update)
	secured.DELETE("/projects/:id", deps.ProjectHandler.Delete)
	secured.GET("/projects/:id/messages", deps.ProjectHandler.ListMessages)
	secured.DELETE("/projects/:id/messages", deps.ProjectHandler.ClearMessages)

	// Chat routes
	limited := middleware.RateLimit(deps.ChatLimiter)
	secured.POST("/chat/:projectId", deps.ChatHandler.Send, limited)
	secured.POST("/chat/:projectId/stream", deps.ChatHandler.Stream, limited)

	// File routes
	secured.GET("/files/:projectId", deps.FileHandler.List)
	secured.POST("/files/:projectId", deps.FileHandler.Upload, uploadBodyLimit(cfg.MaxUploadBytes))
	secured.GET("/files/:projectId/:fileId", deps.FileHandler.Get)
	secured.GET("/files/:projectId/:fileId/content", deps.FileHandler.Download)
	secured.DELETE("/files/:projectId/:fileId", deps.FileHandler.Delete)
}

func isUpload(c echo.Context) bool {
	return c.Request().Method == http.MethodPost && c.Path() == uploadPath
}

// uploadBodyLimit bounds upload bodies and reports an oversized one as a
// file that is too large rather than a bare 413.
func uploadBodyLimit(maxBytes int64) echo.MiddlewareFunc {
	// leave room for multipart framing on top of the largest allowed file
	limit := echomw.BodyLimit(fmt.Sprintf("%dK", (maxBytes>>10)+1024))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		limited := limit(next)
		return func(c echo.Context) error {
			err := limited(c)
			if stderrors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
				return errors.ToEcho(errors.ErrFileTooLarge)
			}
			return err
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if v.Status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil && v.Status < http.StatusInternalServerError {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator builds the request validator.
func NewValidator() *CustomValidator {
	v := validator.New()
	// report json field names rather than Go ones
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface. Failures are validation errors
// naming the first offending field.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Validation(err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return errors.Validation(fe.Field() + " is required")
	case "email":
		return errors.Validation(fe.Field() + " must be a valid email")
	case "min":
		return errors.Validation(fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
	case "max":
		return errors.Validation(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	default:
		return errors.Validation(fe.Field() + " is invalid")
	}
}
