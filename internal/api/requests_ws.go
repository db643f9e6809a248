package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/challenge-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// requestEvent is one message of the live moderation feed
type requestEvent struct {
	Type      string               `json:"type"`
	RequestID int64                `json:"request_id,omitempty"`
	Request   *models.EntryRequest `json:"request,omitempty"`
}

// feedConn serializes writes to one moderation-feed connection; the
// underlying websocket allows a single concurrent writer.
type feedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *feedConn) write(event requestEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(event)
}

// requestsHub fans entry-request events out to the creator's open
// moderation screens, grouped by challenge.
type requestsHub struct {
	mu    sync.Mutex
	conns map[int64]map[*feedConn]bool
}

func newRequestsHub() *requestsHub {
	return &requestsHub{conns: make(map[int64]map[*feedConn]bool)}
}

func (h *requestsHub) register(challengeID int64, conn *feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[challengeID] == nil {
		h.conns[challengeID] = make(map[*feedConn]bool)
	}
	h.conns[challengeID][conn] = true
}

func (h *requestsHub) unregister(challengeID int64, conn *feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[challengeID], conn)
	if len(h.conns[challengeID]) == 0 {
		delete(h.conns, challengeID)
	}
}

// Broadcast sends the event to every open feed for the challenge. Writes
// happen outside the hub lock so one slow connection cannot stall the
// others; dead connections are dropped on write failure.
func (h *requestsHub) Broadcast(challengeID int64, event requestEvent) {
	h.mu.Lock()
	targets := make([]*feedConn, 0, len(h.conns[challengeID]))
	for conn := range h.conns[challengeID] {
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	for _, conn := range targets {
		if err := conn.write(event); err != nil {
			slog.Debug("failed to push request event", "error", err, "challenge_id", challengeID)
			conn.conn.Close()
			h.unregister(challengeID, conn)
		}
	}
}

// handleRequestsWS streams entry-request events for a challenge to its
// creator. The current pending queue is sent as a snapshot on connect.
func (s *Server) handleRequestsWS(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	pending, err := s.entry.PendingRequests(r.Context(), challengeID, user.ID)
	if err != nil {
		s.respondEntryError(w, err, "failed to open request feed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("request feed connected", "challenge_id", challengeID, "user_id", user.ID)

	fc := &feedConn{conn: conn}
	for _, req := range pending {
		if err := fc.write(requestEvent{Type: "pending", Request: req}); err != nil {
			slog.Debug("failed to send queue snapshot", "error", err)
			return
		}
	}

	s.requestsHub.register(challengeID, fc)
	defer s.requestsHub.unregister(challengeID, fc)

	// Keep reading until the client goes away; the feed is one-directional
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}
	}

	slog.Info("request feed disconnected", "challenge_id", challengeID, "user_id", user.ID)
}
