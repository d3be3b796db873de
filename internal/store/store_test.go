package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
)

func newTestStore(t *testing.T) (*Store, *MockAPI) {
	t.Helper()
	mock := NewMockAPI()
	return New(mock, nil, logger.NewNop()), mock
}

func openTestPersister(t *testing.T) *SQLitePersister {
	t.Helper()
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestLogin_RecordsProfile(t *testing.T) {
	st, mock := newTestStore(t)
	require.NoError(t, st.Login(context.Background(), "advisor@example.com", "pw"))

	snap := st.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, mock.User.Email, snap.User.Email)
}

func TestLogout_ResetsEverythingAtOnce(t *testing.T) {
	persist := openTestPersister(t)
	mock := NewMockAPI()
	st := New(mock, persist, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, st.Login(ctx, "a@b.c", "pw"))
	st.SelectWorkspace("ws-1")
	require.NoError(t, st.BeginTurn(model.Message{ID: "m1", Sender: model.SenderUser, Content: "q"}))
	st.AddConversation(model.Conversation{ID: "conv-1", Title: "t"})
	st.AdoptConversation("conv-1")

	st.Logout(ctx)

	snap := st.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, snap.CurrentWorkspaceID)
	assert.Empty(t, snap.CurrentConversationID)
	assert.False(t, snap.IsProcessing)
	assert.Equal(t, 1, mock.LogoutCalls)

	// Durable storage is cleared too: nothing leaks into the next session.
	saved, err := persist.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestPersistence_RestoresOnlySafeSubset(t *testing.T) {
	persist := openTestPersister(t)
	mock := NewMockAPI()
	mock.Workspaces = []model.Workspace{{ID: "ws-1", Name: "Strategy"}}

	st := New(mock, persist, logger.NewNop())
	ctx := context.Background()
	require.NoError(t, st.Login(ctx, "a@b.c", "pw"))
	st.FetchWorkspaces(ctx)
	st.SelectWorkspace("ws-1")
	st.SetTheme(ThemeDark)
	st.AddConversation(model.Conversation{ID: "conv-1", Title: "t"})
	require.NoError(t, st.BeginTurn(model.Message{ID: "m1", Sender: model.SenderUser, Content: "q"}))

	restored := New(mock, persist, logger.NewNop())
	snap := restored.Snapshot()
	assert.Equal(t, ThemeDark, snap.Theme)
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	require.Len(t, snap.Workspaces, 1)
	assert.Equal(t, "ws-1", snap.CurrentWorkspaceID)

	// Messages and conversations deliberately do not survive a restart.
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Conversations)
	assert.False(t, snap.IsProcessing)
}

func TestFetchConversations_DegradesToEmptyOnFailure(t *testing.T) {
	st, mock := newTestStore(t)
	st.AddConversation(model.Conversation{ID: "conv-old", Title: "stale"})
	mock.ListConversationsErr = errors.New("backend down")

	st.FetchConversations(context.Background())

	snap := st.Snapshot()
	assert.Empty(t, snap.Conversations)
	assert.False(t, snap.LoadingConversations)
}

func TestFetchConversations_ScopedToCurrentWorkspace(t *testing.T) {
	st, mock := newTestStore(t)
	st.SelectWorkspace("ws-9")

	st.FetchConversations(context.Background())
	assert.Equal(t, "ws-9", mock.LastListWorkspaceID)
}

func TestFetchWorkspaces_DegradesToEmptyOnFailure(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ListWorkspacesErr = errors.New("backend down")

	st.FetchWorkspaces(context.Background())

	snap := st.Snapshot()
	assert.Empty(t, snap.Workspaces)
	assert.False(t, snap.LoadingWorkspaces)
}

func TestDeleteConversation_ClearsActiveState(t *testing.T) {
	st, mock := newTestStore(t)
	mock.Conversations = []model.Conversation{{ID: "conv-1"}}
	st.AddConversation(model.Conversation{ID: "conv-1", Title: "t"})
	st.AdoptConversation("conv-1")
	require.NoError(t, st.BeginTurn(model.Message{ID: "m1", Sender: model.SenderUser}))
	st.EndTurn()

	require.NoError(t, st.DeleteConversation(context.Background(), "conv-1"))

	snap := st.Snapshot()
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, snap.CurrentConversationID)
	assert.Empty(t, snap.Messages)
}

func TestDeleteConversation_InactiveKeepsTranscript(t *testing.T) {
	st, mock := newTestStore(t)
	mock.Conversations = []model.Conversation{{ID: "conv-2"}}
	st.AddConversation(model.Conversation{ID: "conv-2", Title: "other"})
	st.AdoptConversation("conv-1")
	require.NoError(t, st.BeginTurn(model.Message{ID: "m1", Sender: model.SenderUser}))
	st.EndTurn()

	require.NoError(t, st.DeleteConversation(context.Background(), "conv-2"))

	snap := st.Snapshot()
	assert.Equal(t, "conv-1", snap.CurrentConversationID)
	assert.Len(t, snap.Messages, 1)
}

func TestDeleteWorkspace_ClearsActiveState(t *testing.T) {
	st, mock := newTestStore(t)
	mock.Workspaces = []model.Workspace{{ID: "ws-1"}}
	st.FetchWorkspaces(context.Background())
	st.SelectWorkspace("ws-1")
	st.AddConversation(model.Conversation{ID: "conv-1"})

	require.NoError(t, st.DeleteWorkspace(context.Background(), "ws-1"))

	snap := st.Snapshot()
	assert.Empty(t, snap.Workspaces)
	assert.Empty(t, snap.CurrentWorkspaceID)
	assert.Empty(t, snap.Conversations)
}

func TestBeginTurn_GuardsAgainstConcurrentSend(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.BeginTurn(model.Message{ID: "m1", Sender: model.SenderUser, Content: "first"}))

	err := st.BeginTurn(model.Message{ID: "m2", Sender: model.SenderUser, Content: "second"})
	require.ErrorIs(t, err, ErrBusy)

	snap := st.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "first", snap.Messages[0].Content)
	assert.True(t, snap.IsProcessing)
}

func TestConversationOrdering(t *testing.T) {
	st, _ := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	older := base.Add(-time.Hour)
	newer := base.Add(time.Hour)

	st.AddConversation(model.Conversation{ID: "a", CreatedAt: base})
	st.AddConversation(model.Conversation{ID: "b", CreatedAt: older, LastMessageAt: &newer})
	st.AddConversation(model.Conversation{ID: "c", CreatedAt: base}) // tie with a

	snap := st.Snapshot()
	require.Len(t, snap.Conversations, 3)
	assert.Equal(t, "b", snap.Conversations[0].ID)
	// Tie broken by insertion order.
	assert.Equal(t, "a", snap.Conversations[1].ID)
	assert.Equal(t, "c", snap.Conversations[2].ID)
}

func TestTwoPhaseAssistantMessage(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.BeginTurn(model.Message{ID: "u1", Sender: model.SenderUser, Content: "q"}))

	st.StageAssistant(model.Message{ID: "a1", Sender: model.SenderAssistant, IsStreaming: true})
	st.AppendAssistant("a1", "Hello ")
	st.AppendAssistant("a1", "world")

	snap := st.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "Hello world", snap.Messages[1].Content)
	assert.True(t, snap.Messages[1].IsStreaming)

	st.FinalizeAssistant("a1", "Hello world", &model.Metadata{TotalTokens: 2}, nil, "resp-1")
	snap = st.Snapshot()
	assert.False(t, snap.Messages[1].IsStreaming)
	assert.Equal(t, "resp-1", snap.Messages[1].ResponseID)

	// Finalized messages are immutable: appends no longer apply.
	st.AppendAssistant("a1", " extra")
	assert.Equal(t, "Hello world", st.Snapshot().Messages[1].Content)
}

func TestFailAssistant_ReplacesContentAndKeepsMessage(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.BeginTurn(model.Message{ID: "u1", Sender: model.SenderUser}))
	st.StageAssistant(model.Message{ID: "a1", Sender: model.SenderAssistant, IsStreaming: true})
	st.AppendAssistant("a1", "partial text")

	st.FailAssistant("a1", "failed notice")
	st.EndTurn()

	snap := st.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "failed notice", snap.Messages[1].Content)
	assert.True(t, snap.Messages[1].Error)
	assert.False(t, snap.Messages[1].IsStreaming)
	assert.False(t, snap.IsProcessing)
}

func TestSubscribe_ObservesMutations(t *testing.T) {
	st, _ := newTestStore(t)
	snapshots, cancel := st.Subscribe()
	defer cancel()

	st.SetTheme(ThemeDark)

	select {
	case snap := <-snapshots:
		assert.Equal(t, ThemeDark, snap.Theme)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot notification")
	}
}

func TestSnapshot_IsolatedFromStore(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.BeginTurn(model.Message{ID: "m1", Sender: model.SenderUser, Content: "original"}))

	snap := st.Snapshot()
	snap.Messages[0].Content = "mutated"

	assert.Equal(t, "original", st.Snapshot().Messages[0].Content)
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	persist := openTestPersister(t)

	saved, err := persist.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)

	state := &PersistedState{
		Theme:              ThemeDark,
		IsAuthenticated:    true,
		User:               &model.User{ID: "u1", Email: "a@b.c"},
		Workspaces:         []model.Workspace{{ID: "ws-1", Name: "Strategy"}},
		CurrentWorkspaceID: "ws-1",
	}
	require.NoError(t, persist.Save(state))
	// Saving twice overwrites the single row.
	require.NoError(t, persist.Save(state))

	loaded, err := persist.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, ThemeDark, loaded.Theme)
	assert.Equal(t, "ws-1", loaded.CurrentWorkspaceID)
	require.Len(t, loaded.Workspaces, 1)

	require.NoError(t, persist.Clear())
	loaded, err = persist.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
