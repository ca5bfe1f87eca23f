package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/skillhost/activity"
	"github.com/BaSui01/skillhost/bot"
	"github.com/BaSui01/skillhost/skill"
)

// =============================================================================
// Activity handler
// =============================================================================

// ActivityHandler serves the activity protocol endpoints:
//
//	POST /api/messages                                    channel turn
//	POST /api/skills/v3/conversations/{id}/activities     skill callback
//	GET  /api/conversations/{id}/activities?after=N       outbox poll
//
// Turns are serialized per conversation: two activities for the same
// conversation never run through the bot concurrently, while different
// conversations proceed in parallel.
type ActivityHandler struct {
	bot    *bot.RootBot
	outbox *bot.Outbox
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const (
	skillCallbackPrefix = "/api/skills/v3/conversations/"
	conversationsPrefix = "/api/conversations/"
	activitiesSuffix    = "/activities"
)

// NewActivityHandler creates the activity endpoint handler.
func NewActivityHandler(b *bot.RootBot, outbox *bot.Outbox, logger *zap.Logger) *ActivityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityHandler{
		bot:    b,
		outbox: outbox,
		logger: logger.With(zap.String("component", "activity_handler")),
		locks:  make(map[string]*sync.Mutex),
	}
}

// conversationLock returns the mutex serializing turns for a conversation.
func (h *ActivityHandler) conversationLock(conversationID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[conversationID] = lock
	}
	return lock
}

// ServeHTTP routes requests to the activity endpoints.
func (h *ActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/api/messages":
		if r.Method != http.MethodPost {
			WriteErrorMessage(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed", nil)
			return
		}
		h.handleMessages(w, r)

	case strings.HasPrefix(path, skillCallbackPrefix) && strings.HasSuffix(path, activitiesSuffix):
		if r.Method != http.MethodPost {
			WriteErrorMessage(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed", nil)
			return
		}
		conversationID := strings.TrimSuffix(strings.TrimPrefix(path, skillCallbackPrefix), activitiesSuffix)
		h.handleSkillCallback(w, r, conversationID)

	case strings.HasPrefix(path, conversationsPrefix) && strings.HasSuffix(path, activitiesSuffix):
		if r.Method != http.MethodGet {
			WriteErrorMessage(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed", nil)
			return
		}
		conversationID := strings.TrimSuffix(strings.TrimPrefix(path, conversationsPrefix), activitiesSuffix)
		h.handleGetActivities(w, r, conversationID)

	default:
		WriteErrorMessage(w, http.StatusNotFound, CodeNotFound, "unknown endpoint", nil)
	}
}

// handleMessages runs one inbound channel turn through the bot and
// returns the replies it produced.
func (h *ActivityHandler) handleMessages(w http.ResponseWriter, r *http.Request) {
	act, err := h.readActivity(w, r)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), h.logger)
		return
	}

	conversationID := act.Conversation.ID
	lock := h.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	tc := bot.NewTurnContext(act)
	if err := h.bot.OnTurn(r.Context(), tc); err != nil {
		h.writeTurnError(w, conversationID, err)
		return
	}

	replies := tc.Responses()
	h.outbox.Append(conversationID, replies...)
	if replies == nil {
		replies = []*activity.Activity{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"activities": replies,
	})
}

// handleSkillCallback receives activities a skill posts back to the host.
// EndOfConversation is a routing event and runs through the bot; anything
// else is queued for the user.
func (h *ActivityHandler) handleSkillCallback(w http.ResponseWriter, r *http.Request, conversationID string) {
	if conversationID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, "missing conversation id", nil)
		return
	}

	act, err := h.readActivity(w, r)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), h.logger)
		return
	}

	// The path names the conversation; the payload must agree.
	if act.Conversation.ID != conversationID {
		WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, "conversation id mismatch", h.logger)
		return
	}

	lock := h.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if act.IsEndOfConversation() {
		tc := bot.NewTurnContext(act)
		if err := h.bot.OnTurn(r.Context(), tc); err != nil {
			h.writeTurnError(w, conversationID, err)
			return
		}
		h.outbox.Append(conversationID, tc.Responses()...)
	} else {
		h.outbox.Append(conversationID, act)
	}

	WriteJSON(w, http.StatusOK, map[string]string{"id": act.ID})
}

// handleGetActivities returns the outbox entries past the caller's cursor.
func (h *ActivityHandler) handleGetActivities(w http.ResponseWriter, r *http.Request, conversationID string) {
	if conversationID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, "missing conversation id", nil)
		return
	}

	after := 0
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, "invalid after cursor", nil)
			return
		}
		after = parsed
	}

	acts, cursor := h.outbox.After(conversationID, after)
	if acts == nil {
		acts = []*activity.Activity{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"activities": acts,
		"cursor":     cursor,
	})
}

// readActivity reads and validates an activity from the request body.
// Bodies are capped at 1 MiB.
func (h *ActivityHandler) readActivity(w http.ResponseWriter, r *http.Request) (*activity.Activity, error) {
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, activity.ErrInvalidActivity
	}
	return activity.ParseActivity(data)
}

// writeTurnError maps a failed turn to an HTTP status. Transport failures
// surface as 502 so callers can tell a broken skill from a broken host.
func (h *ActivityHandler) writeTurnError(w http.ResponseWriter, conversationID string, err error) {
	h.logger.Error("turn failed",
		zap.String("conversation_id", conversationID),
		zap.Error(err))

	switch {
	case errors.Is(err, skill.ErrSkillUnavailable):
		WriteErrorMessage(w, http.StatusBadGateway, CodeUpstreamError, err.Error(), nil)
	case errors.Is(err, activity.ErrInvalidActivity):
		WriteErrorMessage(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
	default:
		WriteErrorMessage(w, http.StatusInternalServerError, CodeInternalError, err.Error(), nil)
	}
}
