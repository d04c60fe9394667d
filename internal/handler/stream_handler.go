package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/middleware"
	"github.com/vigilo/vigilo-backend/internal/relay"
	"github.com/vigilo/vigilo-backend/internal/response"
)

// StreamHandler upgrades authenticated clients to websocket connections and
// dispatches the proctoring protocol to the relay. Candidates push frames;
// admins and evaluators watch them.
type StreamHandler struct {
	relay    *relay.Relay
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(r *relay.Relay, allowedOrigins []string, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		relay:    r,
		upgrader: buildUpgrader(allowedOrigins),
		log:      log.With().Str("component", "stream_handler").Logger(),
	}
}

func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

// Handle serves GET /ws/v1/proctoring. The connection stays open until the
// client disconnects or a read fails; per-message errors are reported as
// error events, never by closing the connection.
func (h *StreamHandler) Handle(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	peer := relay.NewWSPeer(conn)
	h.log.Info().
		Int("user_id", claims.UserID).
		Str("role", string(claims.Role)).
		Msg("Proctoring connection opened")

	defer func() {
		h.relay.Disconnect(peer)
		conn.Close()
		h.log.Info().Int("user_id", claims.UserID).Msg("Proctoring connection closed")
	}()

	for {
		var envelope relay.Envelope
		if err := peer.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Int("user_id", claims.UserID).Msg("Connection closed unexpectedly")
			}
			return
		}
		h.dispatch(peer, claims, envelope)
	}
}

// dispatch routes one inbound message. Role gating happens here: candidate
// events on an admin connection (and vice versa) are protocol errors.
func (h *StreamHandler) dispatch(peer *relay.WSPeer, claims *middleware.Claims, envelope relay.Envelope) {
	switch envelope.Event {
	case relay.EventStartStreaming:
		if !h.requireRole(peer, claims, middleware.RoleCandidate) {
			return
		}
		var req relay.StartStreamingRequest
		if !h.parse(peer, envelope.Data, &req) {
			return
		}
		h.relay.StartStreaming(peer, req.AttemptID, claims.UserID, claims.OrgID)

	case relay.EventScreenFrame:
		if !h.requireRole(peer, claims, middleware.RoleCandidate) {
			return
		}
		var req relay.ScreenFrameRequest
		if !h.parse(peer, envelope.Data, &req) {
			return
		}
		h.relay.Frame(peer, req.AttemptID, req.Frame, req.Timestamp)

	case relay.EventStopStreaming:
		if !h.requireRole(peer, claims, middleware.RoleCandidate) {
			return
		}
		var req relay.StopStreamingRequest
		if !h.parse(peer, envelope.Data, &req) {
			return
		}
		h.relay.StopStreaming(peer, req.AttemptID)

	case relay.EventWatchScreen:
		if !h.requireWatcher(peer, claims) {
			return
		}
		var req relay.WatchRequest
		if !h.parse(peer, envelope.Data, &req) {
			return
		}
		h.relay.Watch(peer, req.AttemptID, claims.OrgID)

	case relay.EventStopWatching:
		if !h.requireWatcher(peer, claims) {
			return
		}
		var req relay.StopWatchingRequest
		if !h.parse(peer, envelope.Data, &req) {
			return
		}
		h.relay.StopWatching(peer, req.AttemptID)

	default:
		_ = peer.Send(relay.ProtocolErrorEvent{
			Event: relay.EventProtocolError,
			Error: "unknown event",
		})
	}
}

func (h *StreamHandler) parse(peer *relay.WSPeer, data json.RawMessage, dst interface{}) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		_ = peer.Send(relay.ProtocolErrorEvent{
			Event: relay.EventProtocolError,
			Error: "malformed payload",
		})
		return false
	}
	return true
}

func (h *StreamHandler) requireRole(peer *relay.WSPeer, claims *middleware.Claims, role middleware.Role) bool {
	if claims.Role != role {
		_ = peer.Send(relay.ProtocolErrorEvent{
			Event: relay.EventProtocolError,
			Error: "event not permitted for this role",
		})
		return false
	}
	return true
}

func (h *StreamHandler) requireWatcher(peer *relay.WSPeer, claims *middleware.Claims) bool {
	if claims.Role != middleware.RoleAdmin && claims.Role != middleware.RoleEvaluator {
		_ = peer.Send(relay.ProtocolErrorEvent{
			Event: relay.EventProtocolError,
			Error: "event not permitted for this role",
		})
		return false
	}
	return true
}
