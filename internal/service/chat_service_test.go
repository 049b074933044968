package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "agenthub/internal/errors"
	"agenthub/internal/llm"
	"agenthub/internal/model"
)

type chatFixture struct {
	userID    uuid.UUID
	project   *model.Project
	projects  *MockProjectRepository
	messages  *MockMessageRepository
	llm       *fakeLLM
	svc       ChatService
	persisted []*model.Message
}

func newChatFixture(t *testing.T, history []model.Message) *chatFixture {
	t.Helper()
	f := &chatFixture{
		userID:   uuid.New(),
		projects: new(MockProjectRepository),
		messages: new(MockMessageRepository),
		llm:      &fakeLLM{},
	}
	f.project = &model.Project{ID: uuid.New(), OwnerID: f.userID, Name: "agent", SystemPrompt: "You are terse."}
	f.svc = NewChatService(f.projects, f.messages, f.llm)

	f.projects.On("FindByIDAndOwner", mock.Anything, f.project.ID, f.userID).Return(f.project, nil).Maybe()
	f.projects.On("Touch", mock.Anything, f.project.ID).Return(nil).Maybe()
	f.messages.On("ListRecent", mock.Anything, f.project.ID, f.userID, ContextWindow).Return(history, nil).Maybe()
	f.messages.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).
		Run(func(args mock.Arguments) {
			f.persisted = append(f.persisted, args.Get(1).(*model.Message))
		}).
		Return(nil).Maybe()
	return f
}

func (f *chatFixture) collect() (func(StreamEvent) error, *[]StreamEvent) {
	events := make([]StreamEvent, 0)
	return func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	}, &events
}

func eventTypes(events []StreamEvent) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestChatService_Send_Success(t *testing.T) {
	earlier := time.Now().UTC().Add(-time.Minute)
	history := []model.Message{
		{Role: model.RoleUser, Content: "first", CreatedAt: earlier},
		{Role: model.RoleAssistant, Content: "reply", CreatedAt: earlier.Add(time.Second)},
	}
	f := newChatFixture(t, history)
	f.llm.reply = "hello!"

	result, err := f.svc.Send(context.Background(), f.userID, f.project.ID, "  hi  ")
	require.NoError(t, err)

	require.Len(t, f.persisted, 2)
	assert.Equal(t, model.RoleUser, result.UserMessage.Role)
	assert.Equal(t, "hi", result.UserMessage.Content)
	assert.Equal(t, model.RoleAssistant, result.AssistantMessage.Role)
	assert.Equal(t, "hello!", result.AssistantMessage.Content)
	assert.True(t, result.AssistantMessage.CreatedAt.After(result.UserMessage.CreatedAt))

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are terse."},
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "hi"},
	}, f.llm.received)
	f.projects.AssertCalled(t, "Touch", mock.Anything, f.project.ID)
}

func TestChatService_Send_NoSystemPrompt(t *testing.T) {
	f := newChatFixture(t, nil)
	f.project.SystemPrompt = "   "
	f.llm.reply = "ok"

	_, err := f.svc.Send(context.Background(), f.userID, f.project.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, f.llm.received)
}

func TestChatService_Send_UpstreamFailurePersistsApology(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.completeErr = errors.New("llm api error (500): boom")

	result, err := f.svc.Send(context.Background(), f.userID, f.project.ID, "hi")

	var upstream *apperrors.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.Contains(t, upstream.Detail, "boom")

	require.NotNil(t, result)
	require.Len(t, f.persisted, 2)
	assert.Equal(t, ApologyText, result.AssistantMessage.Content)
	assert.NotContains(t, result.AssistantMessage.Content, "boom")
}

func TestChatService_Send_FailsFast(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		notReady error
		foreign  bool
		expected error
	}{
		{name: "empty content", content: "", expected: apperrors.ErrValidation},
		{name: "whitespace content", content: " \n\t", expected: apperrors.ErrValidation},
		{name: "missing api key", content: "hi", notReady: llm.ErrNotConfigured, expected: apperrors.ErrUpstreamNotConfigured},
		{name: "project of another user", content: "hi", foreign: true, expected: apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, nil)
			f.llm.notReady = tt.notReady
			caller := f.userID
			if tt.foreign {
				caller = uuid.New()
				f.projects.On("FindByIDAndOwner", mock.Anything, f.project.ID, caller).Return(nil, gorm.ErrRecordNotFound)
			}

			result, err := f.svc.Send(context.Background(), caller, f.project.ID, tt.content)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, f.persisted)
			assert.Zero(t, f.llm.calls)
		})
	}
}

func TestChatService_Stream_Success(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.stream = &fakeStream{fragments: []string{"Hel", "", "lo", "!"}, end: io.EOF}
	sink, events := f.collect()

	err := f.svc.Stream(context.Background(), f.userID, f.project.ID, "hi", sink)
	require.NoError(t, err)

	assert.Equal(t, []string{EventUserMessage, EventChunk, EventChunk, EventChunk, EventDone}, eventTypes(*events))
	var joined strings.Builder
	for _, ev := range (*events)[1:4] {
		joined.WriteString(ev.Data.(string))
	}
	done := (*events)[4].Data.(*model.Message)
	assert.Equal(t, joined.String(), done.Content)
	assert.Equal(t, "Hello!", done.Content)

	require.Len(t, f.persisted, 2)
	assert.True(t, f.llm.stream.closed)
}

func TestChatService_Stream_FailureBeforeFirstFragment(t *testing.T) {
	tests := []struct {
		name      string
		streamErr error
		stream    *fakeStream
	}{
		{name: "request error", streamErr: errors.New("dial tcp: refused")},
		{name: "error payload", stream: &fakeStream{end: &llm.APIError{Message: "overloaded"}}},
		{name: "empty completion", stream: &fakeStream{end: io.EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, nil)
			f.llm.streamErr = tt.streamErr
			f.llm.stream = tt.stream
			sink, events := f.collect()

			err := f.svc.Stream(context.Background(), f.userID, f.project.ID, "hi", sink)
			require.NoError(t, err)

			assert.Equal(t, []string{EventUserMessage, EventError}, eventTypes(*events))
			payload := (*events)[1].Data.(StreamError)
			assert.Equal(t, "UPSTREAM_UNAVAILABLE", payload.Code)
			assert.NotEmpty(t, payload.Message)

			// only the user turn is stored
			require.Len(t, f.persisted, 1)
			assert.Equal(t, model.RoleUser, f.persisted[0].Role)
		})
	}
}

func TestChatService_Stream_InterruptedAfterFragments(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.stream = &fakeStream{fragments: []string{"partial"}, end: llm.ErrStreamInterrupted}
	sink, events := f.collect()

	err := f.svc.Stream(context.Background(), f.userID, f.project.ID, "hi", sink)
	assert.ErrorIs(t, err, llm.ErrStreamInterrupted)

	assert.Equal(t, []string{EventUserMessage, EventChunk}, eventTypes(*events))
	require.Len(t, f.persisted, 1)
	assert.True(t, f.llm.stream.closed)
}

func TestChatService_Stream_SinkFailureStops(t *testing.T) {
	f := newChatFixture(t, nil)
	f.llm.stream = &fakeStream{fragments: []string{"a", "b"}, end: io.EOF}
	gone := errors.New("client gone")
	seen := 0
	sink := func(ev StreamEvent) error {
		seen++
		if ev.Type == EventChunk {
			return gone
		}
		return nil
	}

	err := f.svc.Stream(context.Background(), f.userID, f.project.ID, "hi", sink)
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 2, seen)
	require.Len(t, f.persisted, 1)
}

func TestChatService_Stream_ErrorsBeforeFirstEvent(t *testing.T) {
	f := newChatFixture(t, nil)
	sink, events := f.collect()

	err := f.svc.Stream(context.Background(), f.userID, f.project.ID, "   ", sink)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, *events)
	assert.Empty(t, f.persisted)
}

func TestAfter_StrictlyIncreasing(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	assert.Equal(t, future.Add(time.Millisecond), after(future))

	past := time.Now().UTC().Add(-time.Hour)
	assert.True(t, after(past).After(past))
	assert.False(t, after(time.Time{}).IsZero())
}
