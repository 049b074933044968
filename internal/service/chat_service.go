package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "agenthub/internal/errors"
	"agenthub/internal/llm"
	"agenthub/internal/model"
	"agenthub/internal/repository"
)

const (
	// ContextWindow is how many prior turns are sent upstream.
	ContextWindow = 50
	// ApologyText is persisted in place of a reply the model failed to give.
	ApologyText = "Sorry, I couldn't reach the language model just now. Please try again in a moment."
)

// Stream event types, in emission order.
const (
	EventUserMessage = "user_message"
	EventChunk       = "chunk"
	EventDone        = "done"
	EventError       = "error"
)

// ChatResult holds both turns of a completed exchange.
type ChatResult struct {
	UserMessage      *model.Message `json:"userMessage"`
	AssistantMessage *model.Message `json:"assistantMessage"`
}

// StreamEvent is one frame pushed to a streaming caller.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StreamError is the payload of an error event.
type StreamError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ChatService runs chat turns against a project.
type ChatService interface {
	// Send runs one buffered turn. When the model fails, both turns are
	// still returned, the assistant one carrying ApologyText, together with
	// an *apperrors.UpstreamError.
	Send(ctx context.Context, userID, projectID uuid.UUID, content string) (*ChatResult, error)
	// Stream runs one streamed turn, pushing events to sink. An error
	// returned before sink was first called means nothing was emitted.
	Stream(ctx context.Context, userID, projectID uuid.UUID, content string, sink func(StreamEvent) error) error
}

type chatService struct {
	projectRepo repository.ProjectRepository
	messageRepo repository.MessageRepository
	client      llm.Client
}

// NewChatService creates a new chat service.
func NewChatService(projectRepo repository.ProjectRepository, messageRepo repository.MessageRepository, client llm.Client) ChatService {
	return &chatService{
		projectRepo: projectRepo,
		messageRepo: messageRepo,
		client:      client,
	}
}

// begin validates the turn, persists the user message and returns the
// upstream conversation.
func (s *chatService) begin(ctx context.Context, userID, projectID uuid.UUID, content string) (*model.Message, []llm.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperrors.Validation("content is required")
	}
	if err := s.client.Ready(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", apperrors.ErrUpstreamNotConfigured, err)
	}

	project, err := s.projectRepo.FindByIDAndOwner(ctx, projectID, userID)
	if err != nil {
		return nil, nil, notFound(err, "find project")
	}

	history, err := s.messageRepo.ListRecent(ctx, project.ID, userID, ContextWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}

	var last time.Time
	if len(history) > 0 {
		last = history[len(history)-1].CreatedAt
	}
	userMsg := &model.Message{
		ProjectID: project.ID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: after(last),
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, nil, fmt.Errorf("save user message: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	if strings.TrimSpace(project.SystemPrompt) != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: project.SystemPrompt})
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: content})
	return userMsg, messages, nil
}

// finish persists the assistant turn and bumps the project's activity time.
func (s *chatService) finish(ctx context.Context, userMsg *model.Message, content string) (*model.Message, error) {
	assistant := &model.Message{
		ProjectID: userMsg.ProjectID,
		Role:      model.RoleAssistant,
		Content:   content,
		CreatedAt: after(userMsg.CreatedAt),
	}
	if err := s.messageRepo.Create(ctx, assistant); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}
	if err := s.projectRepo.Touch(ctx, userMsg.ProjectID); err != nil {
		slog.WarnContext(ctx, "touch project", "project_id", userMsg.ProjectID, "error", err)
	}
	return assistant, nil
}

func (s *chatService) Send(ctx context.Context, userID, projectID uuid.UUID, content string) (*ChatResult, error) {
	userMsg, messages, err := s.begin(ctx, userID, projectID, content)
	if err != nil {
		return nil, err
	}

	reply, callErr := s.client.Complete(ctx, messages)
	if callErr != nil {
		slog.WarnContext(ctx, "llm completion failed", "project_id", projectID, "error", callErr)
		// the request may already be cancelled; the apology must still land
		assistant, err := s.finish(context.WithoutCancel(ctx), userMsg, ApologyText)
		if err != nil {
			return nil, err
		}
		return &ChatResult{UserMessage: userMsg, AssistantMessage: assistant}, &apperrors.UpstreamError{Detail: callErr.Error()}
	}

	assistant, err := s.finish(ctx, userMsg, reply)
	if err != nil {
		return nil, err
	}
	return &ChatResult{UserMessage: userMsg, AssistantMessage: assistant}, nil
}

func (s *chatService) Stream(ctx context.Context, userID, projectID uuid.UUID, content string, sink func(StreamEvent) error) error {
	userMsg, messages, err := s.begin(ctx, userID, projectID, content)
	if err != nil {
		return err
	}
	if err := sink(StreamEvent{Type: EventUserMessage, Data: userMsg}); err != nil {
		return fmt.Errorf("emit user message: %w", err)
	}

	upstreamFailed := func(cause error) error {
		slog.WarnContext(ctx, "llm stream failed", "project_id", projectID, "error", cause)
		detail := &apperrors.UpstreamError{Detail: cause.Error()}
		return sink(StreamEvent{Type: EventError, Data: StreamError{
			Message: detail.Error(),
			Code:    apperrors.MapErrorToHTTP(detail).Code,
		}})
	}

	stream, err := s.client.Stream(ctx, messages)
	if err != nil {
		return upstreamFailed(err)
	}
	defer stream.Close()

	var reply strings.Builder
	fragments := 0
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if fragments == 0 {
				return upstreamFailed(err)
			}
			// partial reply: nothing is persisted and no terminal event is sent
			return fmt.Errorf("relay interrupted after %d fragments: %w", fragments, err)
		}
		if fragment == "" {
			continue
		}
		fragments++
		reply.WriteString(fragment)
		if err := sink(StreamEvent{Type: EventChunk, Data: fragment}); err != nil {
			return fmt.Errorf("emit chunk: %w", err)
		}
	}

	if fragments == 0 {
		return upstreamFailed(errors.New("empty response from llm api"))
	}

	assistant, err := s.finish(ctx, userMsg, reply.String())
	if err != nil {
		return err
	}
	return sink(StreamEvent{Type: EventDone, Data: assistant})
}

// after returns the current UTC time, at least one millisecond past t so
// turns keep a strict creation order at datetime(3) precision.
func after(t time.Time) time.Time {
	now := time.Now().UTC()
	if floor := t.UTC().Add(time.Millisecond); !t.IsZero() && now.Before(floor) {
		return floor
	}
	return now
}
