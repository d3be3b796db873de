package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
)

// sseServer streams the given raw lines, flushing after each.
func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func newTestClient(baseURL string) *Client {
	return New(baseURL, nil, func() string { return "test-token" }, logger.NewNop())
}

func TestAsk_DeliversEventsInOrder(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"type":"start","response_id":"resp-1","model":"m1"}`,
		``,
		`data: {"type":"chunk","content":"Yes, ","chunk_number":1}`,
		``,
		`data: {"type":"chunk","content":"with caveats.","chunk_number":2}`,
		``,
		`data: {"type":"complete","response_id":"resp-1","metadata":{"total_tokens":12,"model":"m1","chunks_sent":2}}`,
		``,
	})
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "Should we enter APAC?"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 4)
	assert.Equal(t, model.EventStart, got[0].Type)
	assert.Equal(t, "m1", got[0].Model)
	assert.Equal(t, "Yes, ", got[1].Content)
	assert.Equal(t, "with caveats.", got[2].Content)
	assert.Equal(t, model.EventComplete, got[3].Type)
	require.NotNil(t, got[3].Metadata)
	assert.Equal(t, 12, got[3].Metadata.TotalTokens)
}

func TestAsk_SkipsMalformedFrame(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"type":"chunk","content":"first ","chunk_number":1}`,
		``,
		`data: {"type":"chunk","content":`,
		``,
		`data: {"type":"chunk","content":"second","chunk_number":2}`,
		``,
		`data: {"type":"complete"}`,
		``,
	})
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "q"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, "first ", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, model.EventComplete, got[2].Type)
}

func TestAsk_IgnoresNonDataLines(t *testing.T) {
	srv := sseServer(t, []string{
		`: keepalive comment`,
		`event: unrelated`,
		`data: {"type":"chunk","content":"only","chunk_number":1}`,
		``,
		`data: {"type":"complete"}`,
		``,
	})
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "q"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, "only", got[0].Content)
}

func TestAsk_NonSuccessStatusFailsBeforeAnyEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "q"})
	require.Error(t, err)
	assert.Nil(t, events)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusInternalServerError, transportErr.Status)
}

func TestAsk_ConnectionRefused(t *testing.T) {
	events, err := newTestClient("http://127.0.0.1:1").Ask(context.Background(), model.AskRequest{Question: "q"})
	require.Error(t, err)
	assert.Nil(t, events)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.Status)
}

func TestAsk_SynthesizesCompleteOnCleanEOF(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"type":"chunk","content":"partial","chunk_number":1}`,
		``,
	})
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "q"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, model.EventChunk, got[0].Type)
	assert.Equal(t, model.EventComplete, got[1].Type)
	assert.NoError(t, got[1].Err)
}

func TestAsk_MidStreamDropDeliversTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"chunk\",\"content\":\"cut \",\"chunk_number\":1}\n\n")
		flusher.Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "q"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, "cut ", got[0].Content)
	require.Error(t, got[1].Err)

	var transportErr *TransportError
	assert.True(t, errors.As(got[1].Err, &transportErr))
}

func TestAsk_RejectsInvalidQuestion(t *testing.T) {
	client := newTestClient("http://localhost:0")

	_, err := client.Ask(context.Background(), model.AskRequest{Question: "   "})
	require.Error(t, err)

	long := make([]byte, model.MaxQuestionLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = client.Ask(context.Background(), model.AskRequest{Question: string(long)})
	require.Error(t, err)
}

func TestAsk_SendsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, "data: {\"type\":\"complete\"}\n\n")
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).Ask(context.Background(), model.AskRequest{Question: "q"})
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, "Bearer test-token", gotAuth)
}
