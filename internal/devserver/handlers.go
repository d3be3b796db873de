package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-advisory/advisory-chat/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin accepts any non-empty credentials and issues a token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	access, err := s.issueToken(req.Email, s.cfg.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	refresh, err := s.issueToken(req.Email, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{
		Access:  access,
		Refresh: refresh,
		User: &model.User{
			ID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.Email)).String(),
			Email: req.Email,
		},
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subject, err := s.parseToken(req.Refresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, err := s.issueToken(subject, s.cfg.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, model.RefreshResponse{Access: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listWorkspaces())
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req model.CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.state.createWorkspace(req))
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if !s.state.deleteWorkspace(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "workspace not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listConversations(r.URL.Query().Get("workspace")))
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusCreated, s.state.createConversation(req))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.state.deleteConversation(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk streams the scripted answer over the advisory wire protocol:
// one data frame per event, blank-line terminated, terminal complete or
// error frame last.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req model.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question is required and cannot be empty")
		return
	}
	if len(req.Question) > model.MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "Question too long (max 5000 characters)")
		return
	}

	// A question without a conversation gets one assigned server-side; the
	// client adopts the id from the stream.
	conversationID := req.ConversationID
	if conversationID == "" {
		conv := s.state.createConversation(model.CreateConversationRequest{
			Title:       req.Question,
			WorkspaceID: req.WorkspaceID,
		})
		conversationID = conv.ID
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	responseID := uuid.Must(uuid.NewV7()).String()
	started := time.Now()

	sendFrame(w, flusher, model.StreamEvent{
		Type:       model.EventStart,
		ResponseID: responseID,
		Model:      s.cfg.Script.Model,
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	sent := 0
	for i, chunk := range s.cfg.Script.Chunks {
		if s.cfg.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.cfg.ChunkDelay):
			}
		}

		if s.cfg.Script.FailAfter > 0 && sent >= s.cfg.Script.FailAfter {
			sendFrame(w, flusher, model.StreamEvent{
				Type:         model.EventError,
				ErrorMessage: "scripted failure",
				ErrorType:    "StreamingError",
				Stage:        "pipeline",
				Timestamp:    time.Now().Format(time.RFC3339),
			})
			return
		}

		sendFrame(w, flusher, model.StreamEvent{
			Type:        model.EventChunk,
			Content:     chunk,
			ChunkNumber: i + 1,
			Timestamp:   time.Now().Format(time.RFC3339),
		})
		sent++
	}

	s.state.touchConversation(conversationID)

	sendFrame(w, flusher, model.StreamEvent{
		Type:           model.EventComplete,
		ResponseID:     responseID,
		ConversationID: conversationID,
		WorkspaceID:    req.WorkspaceID,
		Confidence: &model.Confidence{
			Level:       "high",
			Percentage:  90,
			Explanation: "scripted response",
		},
		Quality: &model.Quality{Passed: true},
		Metadata: &model.Metadata{
			ResponseTime: time.Since(started).Seconds(),
			TotalTokens:  len(s.cfg.Script.Chunks) * 8,
			Cost:         0,
			Model:        s.cfg.Script.Model,
			ChunksSent:   sent,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})

	s.logger.Info("scripted answer streamed",
		zap.String("conversation_id", conversationID),
		zap.Int("chunks", sent),
	)
}

func sendFrame(w http.ResponseWriter, flusher http.Flusher, ev model.StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
