package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agenthub/internal/errors"
	"agenthub/internal/middleware"
	"agenthub/internal/model"
)

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.ToEcho(errors.Validation("invalid request body"))
	}
	if err := c.Validate(req); err != nil {
		return errors.ToEcho(err)
	}
	return nil
}

// currentUser returns the user bound by the access gate.
func currentUser(c echo.Context) (*model.User, error) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return nil, errors.ToEcho(errors.ErrUnauthenticated)
	}
	return user, nil
}

// pathID parses a path parameter as a UUID. An unparseable id cannot name an
// owned resource, so it is reported as not found.
func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.ToEcho(errors.ErrNotFound)
	}
	return id, nil
}
