package model

import (
	"time"
)

// Conversation is a server-persisted thread of messages, optionally grouped
// under a workspace.
type Conversation struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	WorkspaceID   string     `json:"workspace_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MessageCount  int        `json:"message_count,omitempty"`
}

// LastActivity is the sort key for conversation lists: the most recent
// message timestamp if any, else creation time.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// Workspace groups related conversations.
type Workspace struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Icon              string    `json:"icon,omitempty"`
	ConversationCount int       `json:"conversation_count,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title       string `json:"title"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// CreateWorkspaceRequest is the request to create a new workspace.
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// User is the authenticated profile returned at login.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// LoginRequest is the credentials payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the token pair and profile returned at login.
type LoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries the renewed access token.
type RefreshResponse struct {
	Access string `json:"access"`
}
