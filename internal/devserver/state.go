package devserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-advisory/advisory-chat/internal/model"
)

// state is the emulator's in-memory data. Insertion order is preserved so
// list responses are stable across calls.
type state struct {
	mu            sync.Mutex
	workspaces    []model.Workspace
	conversations []model.Conversation
}

func newState() *state {
	return &state{}
}

func (st *state) listWorkspaces() []model.Workspace {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]model.Workspace(nil), st.workspaces...)
}

func (st *state) createWorkspace(req model.CreateWorkspaceRequest) model.Workspace {
	st.mu.Lock()
	defer st.mu.Unlock()
	ws := model.Workspace{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      req.Name,
		Icon:      req.Icon,
		CreatedAt: time.Now(),
	}
	st.workspaces = append(st.workspaces, ws)
	return ws
}

func (st *state) deleteWorkspace(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, ws := range st.workspaces {
		if ws.ID == id {
			st.workspaces = append(st.workspaces[:i], st.workspaces[i+1:]...)
			return true
		}
	}
	return false
}

func (st *state) listConversations(workspaceID string) []model.Conversation {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]model.Conversation, 0, len(st.conversations))
	for _, conv := range st.conversations {
		if workspaceID == "" || conv.WorkspaceID == workspaceID {
			out = append(out, conv)
		}
	}
	return out
}

func (st *state) createConversation(req model.CreateConversationRequest) model.Conversation {
	st.mu.Lock()
	defer st.mu.Unlock()
	conv := model.Conversation{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Title:       req.Title,
		WorkspaceID: req.WorkspaceID,
		CreatedAt:   time.Now(),
	}
	st.conversations = append(st.conversations, conv)
	return conv
}

func (st *state) deleteConversation(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, conv := range st.conversations {
		if conv.ID == id {
			st.conversations = append(st.conversations[:i], st.conversations[i+1:]...)
			return true
		}
	}
	return false
}

func (st *state) touchConversation(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.conversations {
		if st.conversations[i].ID == id {
			now := time.Now()
			st.conversations[i].LastMessageAt = &now
			st.conversations[i].MessageCount += 2
			return
		}
	}
}
