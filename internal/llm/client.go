// Package llm provides reasoning backend implementations. The engine
// consumes a backend as a black box: a message list in, one response
// out, with an optional streaming variant.
package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is a single message in a conversation. Role is "system",
// "user", or "assistant". ID and Timestamp identify the message in
// session transcripts; only Role and Content go over the wire.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Roles for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		ID:        newID(),
		Timestamp: time.Now(),
	}
}

// Response is the backend's output for a single turn.
//
// Metadata is diagnostic and unstable: it may carry token counts,
// durations, or backend-specific fields, and its schema can change.
// Callers must not depend on specific metadata keys for core behavior.
type Response struct {
	Content   string         `json:"content"`
	ModelID   string         `json:"model_id"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

func newResponse(content, modelID string, metadata map[string]any) *Response {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Response{
		Content:   content,
		ModelID:   modelID,
		ID:        newID(),
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// StreamCallback receives each streamed token as it arrives.
type StreamCallback func(token string)

// Client is the interface every reasoning backend implements.
type Client interface {
	// Reason produces a single response from the given message list.
	Reason(ctx context.Context, messages []Message) (*Response, error)

	// StreamReason streams tokens to callback (when non-nil) and
	// returns the complete response.
	StreamReason(ctx context.Context, messages []Message, callback StreamCallback) (*Response, error)

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}

// wireMessage is the role+content projection sent to every backend.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toWire(messages []Message) []wireMessage {
	wire := make([]wireMessage, len(messages))
	for i, m := range messages {
		wire[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	return wire
}
