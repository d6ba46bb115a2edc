package platform

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler is an in-memory stand-in for the real messaging platform. It keeps
// channels and messages in maps and simulates network latency so downstream
// timeouts and traces look realistic.
type Handler struct {
	mu       sync.Mutex
	channels map[string]*channel
	logger   *slog.Logger
}

type channel struct {
	Scope    string
	Kind     string
	Name     string
	Viewers  map[string]bool
	Messages map[string]string
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		channels: make(map[string]*channel),
		logger:   logger,
	}
}

func (h *Handler) simulateLatency() {
	delay := time.Duration(50+rand.Intn(151)) * time.Millisecond
	time.Sleep(delay)
}

type createChannelRequest struct {
	Scope string `json:"scope"`
	Kind  string `json:"kind"`
}

func (h *Handler) HandleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Scope == "" {
		h.writeError(w, http.StatusBadRequest, "missing scope")
		return
	}

	h.simulateLatency()

	h.mu.Lock()
	ch, ok := h.channels[req.Scope]
	if !ok {
		ch = &channel{
			Scope:    req.Scope,
			Kind:     req.Kind,
			Name:     req.Scope,
			Viewers:  make(map[string]bool),
			Messages: make(map[string]string),
		}
		h.channels[req.Scope] = ch
	}
	h.mu.Unlock()

	h.logger.Info("channel created", "scope", req.Scope, "kind", req.Kind)
	h.writeJSON(w, http.StatusCreated, map[string]string{"scope": ch.Scope, "name": ch.Name})
}

type visibilityRequest struct {
	Viewer string `json:"viewer"`
}

func (h *Handler) HandleShowChannel(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, true)
}

func (h *Handler) HandleHideChannel(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, false)
}

func (h *Handler) setVisibility(w http.ResponseWriter, r *http.Request, visible bool) {
	scope := r.PathValue("scope")

	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateLatency()

	h.mu.Lock()
	ch, ok := h.channels[scope]
	if ok {
		if visible {
			ch.Viewers[req.Viewer] = true
		} else {
			delete(ch.Viewers, req.Viewer)
		}
	}
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "channel not found")
		return
	}

	h.logger.Info("channel visibility changed", "scope", scope, "viewer", req.Viewer, "visible", visible)
	h.writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleRenameChannel(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateLatency()

	h.mu.Lock()
	ch, ok := h.channels[scope]
	if ok {
		ch.Name = req.Name
	}
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "channel not found")
		return
	}

	h.logger.Info("channel renamed", "scope", scope, "name", req.Name)
	h.writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

type messageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateLatency()

	id := uuid.New().String()
	h.mu.Lock()
	ch, ok := h.channels[scope]
	if ok {
		ch.Messages[id] = req.Content
	}
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "channel not found")
		return
	}

	h.logger.Info("message sent", "scope", scope, "message_id", id)
	h.writeJSON(w, http.StatusCreated, Message{ID: id, Content: req.Content})
}

func (h *Handler) HandleEditMessage(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	messageID := r.PathValue("messageId")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.simulateLatency()

	h.mu.Lock()
	ch, chOK := h.channels[scope]
	var msgOK bool
	if chOK {
		_, msgOK = ch.Messages[messageID]
		if msgOK {
			ch.Messages[messageID] = req.Content
		}
	}
	h.mu.Unlock()

	if !chOK || !msgOK {
		h.writeError(w, http.StatusNotFound, "message not found")
		return
	}

	h.writeJSON(w, http.StatusOK, Message{ID: messageID, Content: req.Content})
}

func (h *Handler) HandleGetMessage(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	messageID := r.PathValue("messageId")

	h.mu.Lock()
	var (
		content string
		ok      bool
	)
	if ch, chOK := h.channels[scope]; chOK {
		content, ok = ch.Messages[messageID]
	}
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "message not found")
		return
	}

	h.writeJSON(w, http.StatusOK, Message{ID: messageID, Content: content})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
