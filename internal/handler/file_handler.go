package handler

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"agenthub/internal/errors"
	"agenthub/internal/service"
)

// FileHandler handles project attachment endpoints.
type FileHandler struct {
	fileService service.FileService
}

// NewFileHandler creates a new file handler.
func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// List godoc
// @Summary List files
// @Tags files
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {array} model.File
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /files/{projectId} [get]
func (h *FileHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}
	files, err := h.fileService.List(c.Request().Context(), user.ID, projectID)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, files)
}

// Upload godoc
// @Summary Upload a file
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param file formData file true "File to attach"
// @Success 201 {object} model.File
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /files/{projectId} [post]
func (h *FileHandler) Upload(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if stderrors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		// body overran the limit while the form was being parsed
		return errors.ToEcho(errors.ErrFileTooLarge)
	}
	if err != nil {
		return errors.ToEcho(errors.Validation("file is required"))
	}
	src, err := header.Open()
	if err != nil {
		return errors.ToEcho(errors.Validation("unreadable file"))
	}
	defer src.Close()

	file, err := h.fileService.Upload(c.Request().Context(), user.ID, projectID, service.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get(echo.HeaderContentType),
		Size:     header.Size,
		Content:  src,
	})
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusCreated, file)
}

// Get godoc
// @Summary Get file metadata
// @Tags files
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param fileId path string true "File ID"
// @Success 200 {object} model.File
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /files/{projectId}/{fileId} [get]
func (h *FileHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}
	fileID, err := pathID(c, "fileId")
	if err != nil {
		return err
	}
	file, err := h.fileService.Get(c.Request().Context(), user.ID, projectID, fileID)
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, file)
}

// Download godoc
// @Summary Download file content
// @Tags files
// @Produce octet-stream
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param fileId path string true "File ID"
// @Success 200 {file} binary
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /files/{projectId}/{fileId}/content [get]
func (h *FileHandler) Download(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}
	fileID, err := pathID(c, "fileId")
	if err != nil {
		return err
	}

	file, rc, err := h.fileService.Open(c.Request().Context(), user.ID, projectID, fileID)
	if err != nil {
		return errors.ToEcho(err)
	}
	defer rc.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(file.OriginalName))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(file.Size, 10))
	header.Set(echo.HeaderContentType, file.MimeType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := io.Copy(c.Response(), rc); err != nil {
		slog.WarnContext(c.Request().Context(), "download interrupted", "file_id", file.ID, "error", err)
	}
	return nil
}

// Delete godoc
// @Summary Delete a file
// @Tags files
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param fileId path string true "File ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /files/{projectId}/{fileId} [delete]
func (h *FileHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}
	fileID, err := pathID(c, "fileId")
	if err != nil {
		return err
	}
	if err := h.fileService.Delete(c.Request().Context(), user.ID, projectID, fileID); err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "file deleted"})
}
