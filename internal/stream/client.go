// Package stream reads incrementally generated answers from the advisory
// backend and frames them into typed events.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
	"github.com/lumen-advisory/advisory-chat/pkg/metrics"
)

const (
	askPath    = "/api/agents/ask/"
	dataPrefix = "data:"

	// maxFrameSize bounds a single SSE line; a chunk is at most a few KB,
	// but a complete frame carries metadata and quality payloads.
	maxFrameSize = 1 << 20
)

// TransportError is a connection, status or read failure on the answer
// stream. It is distinct from an error event emitted by the server.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("stream request failed with status %d", e.Status)
	}
	return fmt.Sprintf("stream transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Event is one delivery from an answer stream. Either the embedded
// StreamEvent is populated, or Err carries a transport failure observed
// mid-read. The last event on the channel is always terminal: a server
// complete/error frame, a synthesized complete on clean end-of-body, or a
// transport failure.
type Event struct {
	model.StreamEvent
	Err error
}

// TokenFunc supplies the bearer token for the stream request. May return
// empty when unauthenticated.
type TokenFunc func() string

// Client issues one HTTP request per question and frames the chunked
// response body into events.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenFunc
	logger  *logger.Logger
}

// New creates a stream client. The http.Client must not enforce an overall
// request timeout; answer streams are long-lived and bounded by context.
func New(baseURL string, httpClient *http.Client, token TokenFunc, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		token:   token,
		logger:  log,
	}
}

// Ask submits a question and returns the event channel for its answer
// stream. Transport failures before any event (connection refused, non-2xx
// status) are returned immediately and no channel is created. Cancelling
// ctx aborts the in-flight read.
func (c *Client) Ask(ctx context.Context, req model.AskRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("question cannot be empty")
	}
	if len(req.Question) > model.MaxQuestionLength {
		return nil, fmt.Errorf("question too long (max %d characters)", model.MaxQuestionLength)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+askPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode}
	}

	events := make(chan Event)
	go c.read(ctx, resp, events)
	return events, nil
}

// read scans the response body line by line, decodes data frames and
// delivers them in arrival order. A malformed frame is dropped and parsing
// continues; one corrupted chunk boundary must not lose subsequent chunks.
func (c *Client) read(ctx context.Context, resp *http.Response, events chan<- Event) {
	defer close(events)
	defer resp.Body.Close()

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	terminal := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == "" {
			continue
		}

		var ev model.StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			metrics.FramesDropped.Inc()
			c.logger.Warn("dropping malformed stream frame",
				zap.Error(err),
				zap.Int("frame_bytes", len(payload)),
			)
			continue
		}

		if ev.Type == model.EventChunk {
			metrics.ChunksReceived.Inc()
		}

		if !c.deliver(ctx, events, Event{StreamEvent: ev}) {
			return
		}
		if ev.Terminal() {
			terminal = true
			break
		}
	}

	if terminal {
		return
	}

	if err := scanner.Err(); err != nil {
		c.deliver(ctx, events, Event{Err: &TransportError{Err: err}})
		return
	}

	// End-of-body without a terminal frame: fall back to a synthesized
	// complete so the consumer always observes a terminal signal.
	c.logger.Debug("stream ended without terminal frame, synthesizing complete")
	c.deliver(ctx, events, Event{StreamEvent: model.StreamEvent{Type: model.EventComplete}})
}

func (c *Client) deliver(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
