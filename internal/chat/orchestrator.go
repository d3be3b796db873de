// Package chat orchestrates one question/answer turn end to end: deciding
// whether a conversation must be created, driving the answer stream through
// the session state machine, and refreshing lists afterwards.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/internal/session"
	"github.com/lumen-advisory/advisory-chat/internal/store"
	"github.com/lumen-advisory/advisory-chat/internal/stream"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
	"github.com/lumen-advisory/advisory-chat/pkg/metrics"
)

// maxTitleLen caps the auto-generated conversation title.
const maxTitleLen = 50

// Orchestrator owns the send pipeline for one session. Construct once and
// share; the store's processing flag serializes turns.
type Orchestrator struct {
	store  *store.Store
	api    store.API
	stream *stream.Client
	logger *logger.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates an orchestrator with its collaborators injected.
func New(st *store.Store, apiClient store.API, streamClient *stream.Client, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		api:    apiClient,
		stream: streamClient,
		logger: log,
		tracer: otel.Tracer("advisory-chat/chat"),
	}
}

// Send runs one full turn: validate, auto-create the conversation when this
// is the first question of a fresh session, open the answer stream, apply
// every event in arrival order, and kick off the post-completion list
// refresh. Returns store.ErrBusy while a turn is in flight.
func (o *Orchestrator) Send(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)

	snap := o.store.Snapshot()
	if snap.IsProcessing {
		return store.ErrBusy
	}

	conversationID := snap.CurrentConversationID
	if conversationID == "" && len(snap.Messages) == 0 {
		conversationID = o.createConversation(ctx, question, snap.CurrentWorkspaceID)
	}

	turn := session.NewTurn(o.store, o.logger)
	if err := turn.Begin(question); err != nil {
		return err
	}

	// Each turn owns a cancelable context; starting a new turn or calling
	// Cancel aborts the previous in-flight network read.
	turnCtx, cancel := o.swapCancel(ctx)
	defer cancel()

	turnCtx, span := o.tracer.Start(turnCtx, "chat.turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("question.length", len(question)),
		),
	)
	defer span.End()

	started := time.Now()

	events, err := o.stream.Ask(turnCtx, model.AskRequest{
		Question:       question,
		ConversationID: conversationID,
		WorkspaceID:    snap.CurrentWorkspaceID,
	})
	if err != nil {
		// Transport failure before any event: the turn is still pending,
		// so it is discarded without an assistant message.
		turn.Apply(stream.Event{Err: err})
		span.RecordError(err)
		metrics.RecordTurn("transport_error", time.Since(started).Seconds())
		return err
	}

	for ev := range events {
		turn.Apply(ev)
	}
	if !turn.Terminal() {
		// The reader stopped without a terminal event; the turn context
		// was canceled mid-read.
		turn.Apply(stream.Event{Err: turnCtx.Err()})
	}

	status := turn.State().String()
	metrics.RecordTurn(status, time.Since(started).Seconds())
	span.SetAttributes(attribute.String("turn.status", status))

	if turn.State() == session.StateComplete {
		// Fire-and-forget refresh so counts and recency ordering stay
		// current; not a precondition for the next send.
		go o.refreshConversations()
	}

	return nil
}

// Cancel aborts the in-flight turn's network read, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// swapCancel cancels any previous turn context and installs a new one.
func (o *Orchestrator) swapCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	turnCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	return turnCtx, cancel
}

// createConversation auto-creates a conversation for a fresh session and
// adopts its id. Failure is non-fatal: the send proceeds without an id
// rather than blocking the user's question.
func (o *Orchestrator) createConversation(ctx context.Context, question, workspaceID string) string {
	conv, err := o.api.CreateConversation(ctx, model.CreateConversationRequest{
		Title:       TitleFor(question),
		WorkspaceID: workspaceID,
	})
	if err != nil {
		o.logger.Warn("conversation auto-create failed, sending without id", zap.Error(err))
		return ""
	}

	o.store.AddConversation(*conv)
	o.store.AdoptConversation(conv.ID)
	o.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("workspace_id", workspaceID),
	)
	return conv.ID
}

func (o *Orchestrator) refreshConversations() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	o.store.FetchConversations(ctx)
}

// TitleFor derives a conversation title from the outgoing question:
// a rune-safe prefix capped at maxTitleLen with an ellipsis marker.
func TitleFor(question string) string {
	runes := []rune(question)
	if len(runes) <= maxTitleLen {
		return question
	}
	return string(runes[:maxTitleLen]) + "..."
}
