package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrStreamInterrupted is returned by Recv when the body ends, or fails,
// before the upstream signalled completion.
var ErrStreamInterrupted = errors.New("llm stream interrupted")

// Stream yields reply fragments in order.
//
// Recv returns io.EOF once the reply is complete. Any other error ends the
// stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type sseStream struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	finished bool
	err      error
}

// NewSSEStream decodes an OpenAI-style server-sent-event body.
func NewSSEStream(body io.ReadCloser) Stream {
	return &sseStream{body: body, reader: bufio.NewReader(body)}
}

func (s *sseStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		line, readErr := s.reader.ReadString('\n')
		if fragment, done, err := s.handleLine(line); err != nil {
			s.err = err
			return "", err
		} else if done {
			s.err = io.EOF
			return "", io.EOF
		} else if fragment != "" {
			return fragment, nil
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) && s.finished {
			s.err = io.EOF
		} else if errors.Is(readErr, io.EOF) {
			s.err = ErrStreamInterrupted
		} else {
			s.err = fmt.Errorf("%w: %w", ErrStreamInterrupted, readErr)
		}
		return "", s.err
	}
}

// handleLine processes one SSE line. Non-data lines are ignored.
func (s *sseStream) handleLine(line string) (fragment string, done bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return "", false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return "", false, nil
	}
	if payload == "[DONE]" {
		return "", true, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false, fmt.Errorf("llm stream decode: %w", err)
	}
	if chunk.Error != nil && chunk.Error.Message != "" {
		return "", false, &APIError{Message: chunk.Error.Message}
	}
	var b strings.Builder
	for _, choice := range chunk.Choices {
		b.WriteString(choice.Delta.Content)
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finished = true
		}
	}
	return b.String(), false, nil
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
