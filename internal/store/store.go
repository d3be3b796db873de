// Package store holds client state as one atomically-replaced snapshot.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
)

// ErrBusy is returned when a send is attempted while a turn is in flight.
var ErrBusy = errors.New("a question is already being processed")

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// API is the slice of the backend the store depends on. The concrete
// api.Client satisfies it; tests use MockAPI.
type API interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Logout(ctx context.Context) error
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	CreateWorkspace(ctx context.Context, req model.CreateWorkspaceRequest) (*model.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error
	ListConversations(ctx context.Context, workspaceID string) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Persister stores the durable subset of the snapshot.
type Persister interface {
	Save(state *PersistedState) error
	Load() (*PersistedState, error)
	Clear() error
}

// PersistedState is the subset of the snapshot written to durable storage.
// Messages and conversations are deliberately excluded so stale or
// oversized transcripts never survive a restart.
type PersistedState struct {
	Theme              Theme             `json:"theme"`
	IsAuthenticated    bool              `json:"is_authenticated"`
	User               *model.User       `json:"user,omitempty"`
	Workspaces         []model.Workspace `json:"workspaces,omitempty"`
	CurrentWorkspaceID string            `json:"current_workspace_id,omitempty"`
}

// Snapshot is the complete state at one instant. Callers must treat a
// returned snapshot as immutable.
type Snapshot struct {
	Theme           Theme
	IsAuthenticated bool
	User            *model.User

	Workspaces    []model.Workspace
	Conversations []model.Conversation
	Messages      []model.Message

	CurrentWorkspaceID    string
	CurrentConversationID string

	IsProcessing         bool
	LoadingWorkspaces    bool
	LoadingConversations bool

	// Notice is a dismissible user-facing notification, set on transport
	// and stream failures.
	Notice string
}

// Store is the single source of truth for client state. Constructed once
// per session and passed by reference; mutation happens via whole-snapshot
// replacement, so readers never observe a partial write.
type Store struct {
	api     API
	persist Persister
	logger  *logger.Logger

	mu   sync.RWMutex
	snap Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates a store, restoring the persisted subset when available.
func New(apiClient API, persist Persister, log *logger.Logger) *Store {
	s := &Store{
		api:     apiClient,
		persist: persist,
		logger:  log,
		snap:    Snapshot{Theme: ThemeLight},
		subs:    make(map[int]chan Snapshot),
	}

	if persist != nil {
		saved, err := persist.Load()
		if err != nil {
			log.Warn("failed to load persisted state", zap.Error(err))
		} else if saved != nil {
			s.snap.Theme = saved.Theme
			s.snap.IsAuthenticated = saved.IsAuthenticated
			s.snap.User = saved.User
			s.snap.Workspaces = saved.Workspaces
			s.snap.CurrentWorkspaceID = saved.CurrentWorkspaceID
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snap)
}

// Subscribe registers a state watcher. Each mutation delivers the new
// snapshot; slow consumers miss intermediate snapshots rather than blocking
// the store. The returned func cancels the subscription.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 16)
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// mutate applies fn to a copy of the snapshot, installs the copy as the new
// state and notifies subscribers.
func (s *Store) mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	next := cloneSnapshot(s.snap)
	fn(&next)
	s.snap = next
	out := cloneSnapshot(next)
	s.mu.Unlock()

	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- out:
		default:
		}
	}
	s.subMu.Unlock()
}

// Login authenticates against the backend and records the profile.
func (s *Store) Login(ctx context.Context, email, password string) error {
	user, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.mutate(func(snap *Snapshot) {
		snap.IsAuthenticated = true
		snap.User = user
	})
	s.persistSubset()
	return nil
}

// Logout resets auth, messages, conversations, the processing flag and the
// active ids in a single state transition, then clears durable storage so
// no per-user state leaks into the next session.
func (s *Store) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn("server logout failed, clearing local state anyway", zap.Error(err))
	}

	s.mutate(func(snap *Snapshot) {
		theme := snap.Theme
		*snap = Snapshot{Theme: theme}
	})

	if s.persist != nil {
		if err := s.persist.Clear(); err != nil {
			s.logger.Warn("failed to clear persisted state", zap.Error(err))
		}
	}
}

// SetTheme switches the color scheme.
func (s *Store) SetTheme(theme Theme) {
	s.mutate(func(snap *Snapshot) {
		snap.Theme = theme
	})
	s.persistSubset()
}

// SetNotice surfaces a dismissible notification.
func (s *Store) SetNotice(text string) {
	s.mutate(func(snap *Snapshot) {
		snap.Notice = text
	})
}

// DismissNotice clears the notification.
func (s *Store) DismissNotice() {
	s.mutate(func(snap *Snapshot) {
		snap.Notice = ""
	})
}

// FetchWorkspaces refreshes the workspace list. Network failures degrade to
// an empty list so a partial backend outage does not break the UI.
func (s *Store) FetchWorkspaces(ctx context.Context) {
	s.mutate(func(snap *Snapshot) { snap.LoadingWorkspaces = true })

	workspaces, err := s.api.ListWorkspaces(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch workspaces", zap.Error(err))
		workspaces = nil
	}

	s.mutate(func(snap *Snapshot) {
		snap.Workspaces = workspaces
		snap.LoadingWorkspaces = false
	})
	s.persistSubset()
}

// FetchConversations refreshes the conversation list scoped to the current
// workspace. Failures degrade to an empty list.
func (s *Store) FetchConversations(ctx context.Context) {
	s.mu.RLock()
	workspaceID := s.snap.CurrentWorkspaceID
	s.mu.RUnlock()

	s.mutate(func(snap *Snapshot) { snap.LoadingConversations = true })

	conversations, err := s.api.ListConversations(ctx, workspaceID)
	if err != nil {
		s.logger.Warn("failed to fetch conversations", zap.Error(err))
		conversations = nil
	}
	sortConversations(conversations)

	s.mutate(func(snap *Snapshot) {
		snap.Conversations = conversations
		snap.LoadingConversations = false
	})
}

// CreateWorkspace creates a workspace and adds it to the list.
func (s *Store) CreateWorkspace(ctx context.Context, req model.CreateWorkspaceRequest) (*model.Workspace, error) {
	ws, err := s.api.CreateWorkspace(ctx, req)
	if err != nil {
		return nil, err
	}
	s.mutate(func(snap *Snapshot) {
		snap.Workspaces = append(snap.Workspaces, *ws)
	})
	s.persistSubset()
	return ws, nil
}

// DeleteWorkspace removes a workspace. When the deleted workspace was
// active, the current workspace id and its conversations are cleared too.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	if err := s.api.DeleteWorkspace(ctx, id); err != nil {
		return err
	}

	s.mutate(func(snap *Snapshot) {
		kept := snap.Workspaces[:0]
		for _, ws := range snap.Workspaces {
			if ws.ID != id {
				kept = append(kept, ws)
			}
		}
		snap.Workspaces = kept

		if snap.CurrentWorkspaceID == id {
			snap.CurrentWorkspaceID = ""
			snap.CurrentConversationID = ""
			snap.Conversations = nil
			snap.Messages = nil
		}
	})
	s.persistSubset()
	return nil
}

// DeleteConversation removes a conversation. When the deleted conversation
// was active, the current id and the transcript are cleared.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := s.api.DeleteConversation(ctx, id); err != nil {
		return err
	}

	s.mutate(func(snap *Snapshot) {
		kept := snap.Conversations[:0]
		for _, conv := range snap.Conversations {
			if conv.ID != id {
				kept = append(kept, conv)
			}
		}
		snap.Conversations = kept

		if snap.CurrentConversationID == id {
			snap.CurrentConversationID = ""
			snap.Messages = nil
		}
	})
	return nil
}

// SelectWorkspace makes a workspace active and clears conversation scope.
func (s *Store) SelectWorkspace(id string) {
	s.mutate(func(snap *Snapshot) {
		snap.CurrentWorkspaceID = id
		snap.CurrentConversationID = ""
		snap.Conversations = nil
		snap.Messages = nil
	})
	s.persistSubset()
}

// SelectConversation makes a conversation active and clears the transcript
// ahead of a message fetch.
func (s *Store) SelectConversation(id string) {
	s.mutate(func(snap *Snapshot) {
		snap.CurrentConversationID = id
		snap.Messages = nil
	})
}

// AddConversation inserts a newly created conversation and keeps ordering.
func (s *Store) AddConversation(conv model.Conversation) {
	s.mutate(func(snap *Snapshot) {
		snap.Conversations = append(snap.Conversations, conv)
		sortConversations(snap.Conversations)
	})
}

// AdoptConversation records a server-assigned conversation id as active,
// overwriting any local placeholder. All later list refreshes key off this
// id.
func (s *Store) AdoptConversation(id string) {
	if id == "" {
		return
	}
	s.mutate(func(snap *Snapshot) {
		snap.CurrentConversationID = id
	})
}

// BeginTurn appends the user message and raises the processing flag. It is
// the mutual-exclusion guard for sends: a second call while a turn is in
// flight returns ErrBusy and leaves the transcript untouched.
func (s *Store) BeginTurn(msg model.Message) error {
	var busy bool
	s.mutate(func(snap *Snapshot) {
		if snap.IsProcessing {
			busy = true
			return
		}
		snap.IsProcessing = true
		snap.Messages = append(snap.Messages, msg)
	})
	if busy {
		return ErrBusy
	}
	return nil
}

// StageAssistant appends the streaming assistant message. First phase of
// the two-phase optimistic update; FinalizeAssistant commits it,
// FailAssistant reverts the content.
func (s *Store) StageAssistant(msg model.Message) {
	s.mutate(func(snap *Snapshot) {
		snap.Messages = append(snap.Messages, msg)
	})
}

// AppendAssistant appends a content fragment to a streaming message.
func (s *Store) AppendAssistant(id, fragment string) {
	s.mutate(func(snap *Snapshot) {
		for i := range snap.Messages {
			if snap.Messages[i].ID == id && snap.Messages[i].IsStreaming {
				snap.Messages[i].Content += fragment
				return
			}
		}
	})
}

// FinalizeAssistant commits the assembled content and freezes the message.
func (s *Store) FinalizeAssistant(id, content string, meta *model.Metadata, conf *model.Confidence, responseID string) {
	s.mutate(func(snap *Snapshot) {
		for i := range snap.Messages {
			if snap.Messages[i].ID == id {
				snap.Messages[i].Content = content
				snap.Messages[i].IsStreaming = false
				snap.Messages[i].Metadata = meta
				snap.Messages[i].Confidence = conf
				snap.Messages[i].ResponseID = responseID
				return
			}
		}
	})
}

// FailAssistant marks the message failed, replacing any partially streamed
// text with the notice. The message stays in the transcript.
func (s *Store) FailAssistant(id, notice string) {
	s.mutate(func(snap *Snapshot) {
		for i := range snap.Messages {
			if snap.Messages[i].ID == id {
				snap.Messages[i].Content = notice
				snap.Messages[i].IsStreaming = false
				snap.Messages[i].Error = true
				return
			}
		}
	})
}

// EndTurn lowers the processing flag. Every terminal path must reach this;
// a stuck flag means a stuck input surface.
func (s *Store) EndTurn() {
	s.mutate(func(snap *Snapshot) {
		snap.IsProcessing = false
	})
}

// TouchConversation bumps a conversation's activity time and re-sorts.
func (s *Store) TouchConversation(id string, at time.Time) {
	s.mutate(func(snap *Snapshot) {
		for i := range snap.Conversations {
			if snap.Conversations[i].ID == id {
				t := at
				snap.Conversations[i].LastMessageAt = &t
				snap.Conversations[i].MessageCount++
				break
			}
		}
		sortConversations(snap.Conversations)
	})
}

func (s *Store) persistSubset() {
	if s.persist == nil {
		return
	}
	snap := s.Snapshot()
	err := s.persist.Save(&PersistedState{
		Theme:              snap.Theme,
		IsAuthenticated:    snap.IsAuthenticated,
		User:               snap.User,
		Workspaces:         snap.Workspaces,
		CurrentWorkspaceID: snap.CurrentWorkspaceID,
	})
	if err != nil {
		s.logger.Warn("failed to persist state", zap.Error(err))
	}
}

// sortConversations orders descending by last activity. SliceStable keeps
// insertion order for ties.
func sortConversations(conversations []model.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActivity().After(conversations[j].LastActivity())
	})
}

func cloneSnapshot(snap Snapshot) Snapshot {
	out := snap
	out.Workspaces = append([]model.Workspace(nil), snap.Workspaces...)
	out.Conversations = append([]model.Conversation(nil), snap.Conversations...)
	out.Messages = append([]model.Message(nil), snap.Messages...)
	if snap.User != nil {
		user := *snap.User
		out.User = &user
	}
	return out
}
