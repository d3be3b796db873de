package store

import (
	"context"
	"errors"
	"sync"

	"github.com/lumen-advisory/advisory-chat/internal/model"
)

// MockAPI is an in-memory API implementation for tests. Call counts are
// tracked so tests can assert how often the store reached for the backend.
type MockAPI struct {
	mu sync.Mutex

	User          *model.User
	Workspaces    []model.Workspace
	Conversations []model.Conversation

	LoginErr              error
	ListWorkspacesErr     error
	ListConversationsErr  error
	CreateWorkspaceErr    error
	CreateConversationErr error
	DeleteErr             error

	LoginCalls              int
	LogoutCalls             int
	ListWorkspacesCalls     int
	ListConversationsCalls  int
	CreateConversationCalls int

	// LastConversationReq records the most recent create request.
	LastConversationReq model.CreateConversationRequest
	// LastListWorkspaceID records the workspace scope of the last list call.
	LastListWorkspaceID string
}

// NewMockAPI creates an empty mock backend.
func NewMockAPI() *MockAPI {
	return &MockAPI{
		User: &model.User{ID: "user-1", Email: "advisor@example.com"},
	}
}

func (m *MockAPI) Login(ctx context.Context, email, password string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoginCalls++
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	return m.User, nil
}

func (m *MockAPI) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LogoutCalls++
	return nil
}

func (m *MockAPI) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListWorkspacesCalls++
	if m.ListWorkspacesErr != nil {
		return nil, m.ListWorkspacesErr
	}
	return append([]model.Workspace(nil), m.Workspaces...), nil
}

func (m *MockAPI) CreateWorkspace(ctx context.Context, req model.CreateWorkspaceRequest) (*model.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateWorkspaceErr != nil {
		return nil, m.CreateWorkspaceErr
	}
	ws := model.Workspace{ID: "ws-" + req.Name, Name: req.Name, Icon: req.Icon}
	m.Workspaces = append(m.Workspaces, ws)
	return &ws, nil
}

func (m *MockAPI) DeleteWorkspace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i, ws := range m.Workspaces {
		if ws.ID == id {
			m.Workspaces = append(m.Workspaces[:i], m.Workspaces[i+1:]...)
			return nil
		}
	}
	return errors.New("workspace not found")
}

func (m *MockAPI) ListConversations(ctx context.Context, workspaceID string) ([]model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListConversationsCalls++
	m.LastListWorkspaceID = workspaceID
	if m.ListConversationsErr != nil {
		return nil, m.ListConversationsErr
	}
	return append([]model.Conversation(nil), m.Conversations...), nil
}

func (m *MockAPI) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateConversationCalls++
	m.LastConversationReq = req
	if m.CreateConversationErr != nil {
		return nil, m.CreateConversationErr
	}
	conv := model.Conversation{
		ID:          "conv-mock-1",
		Title:       req.Title,
		WorkspaceID: req.WorkspaceID,
	}
	m.Conversations = append(m.Conversations, conv)
	return &conv, nil
}

func (m *MockAPI) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i, conv := range m.Conversations {
		if conv.ID == id {
			m.Conversations = append(m.Conversations[:i], m.Conversations[i+1:]...)
			return nil
		}
	}
	return errors.New("conversation not found")
}

// Counts returns a consistent view of the call counters.
func (m *MockAPI) Counts() (listConversations, createConversations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListConversationsCalls, m.CreateConversationCalls
}
