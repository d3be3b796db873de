// Package model defines data structures for the advisory chat client.
package model

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in the session transcript. Content grows append-only
// while IsStreaming is true and is immutable afterwards.
type Message struct {
	ID          string      `json:"id"`
	Sender      Sender      `json:"sender"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
	IsStreaming bool        `json:"is_streaming"`
	Error       bool        `json:"error"`
	ResponseID  string      `json:"response_id,omitempty"`
	Metadata    *Metadata   `json:"metadata,omitempty"`
	Confidence  *Confidence `json:"confidence,omitempty"`
}

// AskRequest is the body of the question endpoint.
type AskRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
}

// MaxQuestionLength mirrors the backend's request validation.
const MaxQuestionLength = 5000
