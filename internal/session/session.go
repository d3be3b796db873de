// Package session drives the per-turn state machine that assembles stream
// events into exactly one assistant message.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/internal/store"
	"github.com/lumen-advisory/advisory-chat/internal/stream"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
)

// State is the turn lifecycle position.
type State int

const (
	StateIdle State = iota
	StatePending
	StateStreaming
	StateComplete
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// FailureNotice replaces partially streamed text when a turn errors. The
// failed message stays visible in the transcript rather than vanishing.
const FailureNotice = "Something went wrong while generating this answer. Please try again."

// Turn is the state machine for one question through to its terminal
// answer state. It exists for a single turn and is not reused.
type Turn struct {
	store  *store.Store
	logger *logger.Logger

	state       State
	assistantID string
	responseID  string
	model       string
	accumulated strings.Builder
	chunkCount  int
}

// NewTurn creates a turn in the idle state.
func NewTurn(st *store.Store, log *logger.Logger) *Turn {
	return &Turn{store: st, logger: log}
}

// State returns the current lifecycle position.
func (t *Turn) State() State {
	return t.state
}

// Terminal reports whether the turn reached complete or errored.
func (t *Turn) Terminal() bool {
	return t.state == StateComplete || t.state == StateErrored
}

// Content returns the accumulated assistant text so far.
func (t *Turn) Content() string {
	return t.accumulated.String()
}

// Begin appends the user message optimistically and raises the processing
// flag. Returns store.ErrBusy when another turn is in flight; the
// transcript is untouched in that case.
func (t *Turn) Begin(question string) error {
	err := t.store.BeginTurn(model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Sender:    model.SenderUser,
		Content:   question,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	t.state = StatePending
	return nil
}

// Apply advances the state machine with one stream delivery. Chunk events
// must be applied in arrival order; each application appends onto
// previously accumulated text.
func (t *Turn) Apply(ev stream.Event) {
	if t.Terminal() {
		return
	}

	if ev.Err != nil {
		t.failTransport(ev.Err)
		return
	}

	switch ev.Type {
	case model.EventStart:
		t.model = ev.Model
		t.responseID = ev.ResponseID
		// Adopt the server-assigned conversation id before any chunk is
		// applied so later list refreshes key off the right id.
		t.store.AdoptConversation(ev.ConversationID)

	case model.EventChunk:
		if t.state == StatePending {
			t.assistantID = uuid.Must(uuid.NewV7()).String()
			t.store.StageAssistant(model.Message{
				ID:          t.assistantID,
				Sender:      model.SenderAssistant,
				CreatedAt:   time.Now(),
				IsStreaming: true,
				ResponseID:  t.responseID,
			})
			t.state = StateStreaming
		}
		t.accumulated.WriteString(ev.Content)
		t.chunkCount++
		t.store.AppendAssistant(t.assistantID, ev.Content)

	case model.EventComplete:
		t.store.AdoptConversation(ev.ConversationID)
		if ev.ResponseID != "" {
			t.responseID = ev.ResponseID
		}
		if t.state == StateStreaming {
			t.store.FinalizeAssistant(t.assistantID, t.accumulated.String(), ev.Metadata, ev.Confidence, t.responseID)
		}
		t.state = StateComplete
		t.store.EndTurn()
		t.logger.Info("turn complete",
			zap.String("response_id", t.responseID),
			zap.Int("chunks", t.chunkCount),
		)

	case model.EventError:
		t.logger.Warn("server error event",
			zap.String("error", ev.ErrorMessage),
			zap.String("error_type", ev.ErrorType),
			zap.String("stage", ev.Stage),
		)
		if t.state == StateStreaming {
			t.store.FailAssistant(t.assistantID, FailureNotice)
		}
		t.store.SetNotice(noticeFor(ev.ErrorMessage))
		t.state = StateErrored
		t.store.EndTurn()

	default:
		t.logger.Warn("ignoring unknown event type", zap.String("type", string(ev.Type)))
	}
}

// failTransport handles a transport failure. While streaming, the partial
// assistant message is kept but marked failed; while still pending, the
// turn is discarded silently beyond the already-visible user message.
func (t *Turn) failTransport(err error) {
	t.logger.Warn("transport failure", zap.Error(err), zap.Stringer("state", t.state))

	if t.state == StateStreaming {
		t.store.FailAssistant(t.assistantID, FailureNotice)
		t.store.SetNotice("Connection lost while receiving the answer.")
	}
	t.state = StateErrored
	t.store.EndTurn()
}

func noticeFor(serverError string) string {
	if serverError == "" {
		return "The advisor could not answer this question."
	}
	return "The advisor could not answer this question: " + serverError
}
