package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"agenthub/internal/errors"
	"agenthub/internal/model"
	"agenthub/internal/service"
)

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest represents one user turn.
type ChatRequest struct {
	Content string `json:"content" validate:"required,max=32000"`
}

// ChatFailureResponse is returned with 503 when the model failed. The
// apology turn is already stored; Detail is not.
type ChatFailureResponse struct {
	Error            string         `json:"error"`
	Code             string         `json:"code"`
	Detail           string         `json:"detail"`
	UserMessage      *model.Message `json:"userMessage"`
	AssistantMessage *model.Message `json:"assistantMessage"`
}

// Send godoc
// @Summary Send a chat message
// @Description Runs one buffered turn against the project's agent.
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body ChatRequest true "Message"
// @Success 200 {object} service.ChatResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 503 {object} ChatFailureResponse
// @Router /chat/{projectId} [post]
func (h *ChatHandler) Send(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}
	var req ChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.chatService.Send(c.Request().Context(), user.ID, projectID, req.Content)
	var upstream *errors.UpstreamError
	if stderrors.As(err, &upstream) && result != nil {
		httpErr := errors.MapErrorToHTTP(upstream)
		return c.JSON(httpErr.StatusCode, ChatFailureResponse{
			Error:            httpErr.Message,
			Code:             httpErr.Code,
			Detail:           upstream.Detail,
			UserMessage:      result.UserMessage,
			AssistantMessage: result.AssistantMessage,
		})
	}
	if err != nil {
		return errors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Stream godoc
// @Summary Stream a chat reply
// @Description Server-sent events, each `data: {"type": ..., "data": ...}`.
// @Description Order: user_message, chunk*, then done or error.
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body ChatRequest true "Message"
// @Success 200 {object} service.StreamEvent
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /chat/{projectId}/stream [post]
func (h *ChatHandler) Stream(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId")
	if err != nil {
		return err
	}
	var req ChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	w := c.Response()
	sink := func(ev service.StreamEvent) error {
		if !w.Committed {
			hdr := w.Header()
			hdr.Set(echo.HeaderContentType, "text/event-stream")
			hdr.Set("Cache-Control", "no-cache")
			hdr.Set("Connection", "keep-alive")
			hdr.Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	err = h.chatService.Stream(c.Request().Context(), user.ID, projectID, req.Content, sink)
	if err == nil {
		return nil
	}
	if !w.Committed {
		return errors.ToEcho(err)
	}
	// the stream is open; the client only sees it end
	slog.WarnContext(c.Request().Context(), "chat stream ended early",
		"project_id", projectID,
		"error", err,
		"request_id", w.Header().Get(echo.HeaderXRequestID),
	)
	return nil
}
