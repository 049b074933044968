package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agenthub/internal/errors"
	"agenthub/internal/repository"
	"agenthub/internal/service"
)

// ProjectHandler handles project and transcript endpoints.
type ProjectHandler struct {
	projectService service.ProjectService
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// CreateProjectRequest represents a project creation request.
type CreateProjectRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Description  string `json:"description" validate:"max=2000"`
	SystemPrompt string `json:"systemPrompt" validate:"max=20000"`
}

// UpdateProjectRequest represents a partial project update. Omitted fields
// are left as they are.
type UpdateProjectRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=255"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	SystemPrompt *string `json:"systemPrompt" validate:"omitempty,max=20000"`
}

// ClearMessagesResponse reports how many turns were removed.
type ClearMessagesResponse struct {
	Deleted int64 `json:"deleted"`
}

// List godoc
// @Summary List projects
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Project
// @Failure 401 {object} errors.ErrorResponse
// @Router /projects [get]
func (h *ProjectHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projects, err := h.projectService.List(c.Request().Context(), user.ID)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, projects)
}

// Create godoc
// @Summary Create project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProjectRequest true "Project"
// @Success 201 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /projects [post]
func (h *ProjectHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projectService.Create(c.Request().Context(), user.ID, service.ProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusCreated, project)
}

// Get godoc
// @Summary Get project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} model.Project
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	project, err := h.projectService.Get(c.Request().Context(), user.ID, id)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, project)
}

// Update godoc
// @Summary Update project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param request body UpdateProjectRequest true "Fields to change"
// @Success 200 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projectService.Update(c.Request().Context(), user.ID, id, repository.ProjectUpdate{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, project)
}

// Delete godoc
// @Summary Delete project
// @Description Removes the project with all of its messages and files.
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.projectService.Delete(c.Request().Context(), user.ID, id); err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "project deleted"})
}

// ListMessages godoc
// @Summary List chat history
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {array} model.Message
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id}/messages [get]
func (h *ProjectHandler) ListMessages(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	messages, err := h.projectService.ListMessages(c.Request().Context(), user.ID, id)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, messages)
}

// ClearMessages godoc
// @Summary Clear chat history
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} ClearMessagesResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id}/messages [delete]
func (h *ProjectHandler) ClearMessages(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	deleted, err := h.projectService.ClearMessages(c.Request().Context(), user.ID, id)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, ClearMessagesResponse{Deleted: deleted})
}
