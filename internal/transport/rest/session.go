package rest

import (
	"net/http"

	"github.com/abgdnv/bazaar/internal/syncqueue"
	"github.com/abgdnv/bazaar/pkg/web"
)

// SessionDto is the sign-in state of a session.
type SessionDto struct {
	SessionID   string `json:"session_id"`
	State       string `json:"state"`
	Owner       string `json:"owner"`
	PendingSync int    `json:"pending_sync"`
}

// SyncDto reports a manual sync.
type SyncDto struct {
	Replayed  int `json:"replayed"`
	Discarded int `json:"discarded"`
	Pending   int `json:"pending"`
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, sessionDto(s.Session(), s.State().String(), s.Owner(), s.PendingSync()))
}

// SignIn moves the guest cart and wishlist to the identified user.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	userID, err := h.identifier.Identify(r)
	if err != nil {
		h.respondErr(w, r, err, "Failed to identify user")
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := s.SignIn(r.Context(), userID); err != nil {
		h.respondErr(w, r, err, "Failed to sign in")
		return
	}
	h.logger.InfoContext(r.Context(), "Session signed in", "user_id", userID)
	web.RespondJSON(w, h.logger, http.StatusOK, h.cartDto(s))
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := s.SignOut(r.Context()); err != nil {
		h.respondErr(w, r, err, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sync replays the queued changes of the session now instead of waiting for the reconnect.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if !h.conn.Online() {
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Backend is offline")
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	res, err := s.Sync(r.Context())
	if err != nil {
		h.respondErr(w, r, err, "Failed to sync session")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, SyncDto{Replayed: res.Replayed, Discarded: res.Discarded, Pending: len(s.PendingSync())})
}

// Notifications drains the notification inbox of the session.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	session, ok := web.GetSessionID(r.Context())
	if !ok {
		web.RespondError(w, h.logger, http.StatusBadRequest, "Missing session")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, h.inbox.Take(session))
}

func sessionDto(session, state, owner string, pending []syncqueue.Operation) SessionDto {
	return SessionDto{SessionID: session, State: state, Owner: owner, PendingSync: len(pending)}
}
