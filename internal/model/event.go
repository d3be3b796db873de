package model

// EventType discriminates the frames of the answer stream.
type EventType string

const (
	EventStart    EventType = "start"
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Metadata summarizes a completed response.
type Metadata struct {
	ResponseTime float64 `json:"response_time"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
	Model        string  `json:"model"`
	ChunksSent   int     `json:"chunks_sent"`
}

// Confidence is the backend's self-assessment of an answer.
type Confidence struct {
	Level       string `json:"level"`
	Percentage  int    `json:"percentage"`
	Explanation string `json:"explanation"`
}

// Quality carries the backend's quality-gate verdict. The client only
// forwards it; it never influences assembly.
type Quality struct {
	Passed   bool            `json:"passed"`
	Checks   map[string]bool `json:"checks,omitempty"`
	Failures []string        `json:"failures,omitempty"`
}

// StreamEvent is one decoded frame from the answer stream. It is a tagged
// union on Type; only the fields for that type are populated. Frames are
// consumed once and discarded.
type StreamEvent struct {
	Type EventType `json:"type"`

	// start
	ResponseID string `json:"response_id,omitempty"`
	Model      string `json:"model,omitempty"`

	// chunk
	Content     string `json:"content,omitempty"`
	ChunkNumber int    `json:"chunk_number,omitempty"`

	// complete (conversation/workspace ids may also appear on start)
	ConversationID string      `json:"conversation_id,omitempty"`
	WorkspaceID    string      `json:"workspace_id,omitempty"`
	Confidence     *Confidence `json:"confidence,omitempty"`
	Quality        *Quality    `json:"quality,omitempty"`
	Metadata       *Metadata   `json:"metadata,omitempty"`

	// error
	ErrorMessage string `json:"error,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	Stage        string `json:"stage,omitempty"`

	Timestamp string `json:"timestamp,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e *StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
