package handlers

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/upb/paper-archive/metrics"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/presence"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

// PresenceHandler upgrades paper viewers to the presence websocket
type PresenceHandler struct {
	hub            *presence.Hub
	originPatterns []string
	logger         *zap.Logger
}

// NewPresenceHandler creates a new PresenceHandler. originPatterns lists the
// hosts allowed to open cross-origin connections.
func NewPresenceHandler(hub *presence.Hub, originPatterns []string, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		hub:            hub,
		originPatterns: originPatterns,
		logger:         logger,
	}
}

// HandlePresence handles GET /api/v1/papers/{paperID}/presence
func (h *PresenceHandler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	paperID := chi.URLParam(r, "paperID")
	if paperID == "" {
		_ = utils.WriteBadRequest(w, "Missing paper ID", nil)
		return
	}

	// Server read and write timeouts would cut long-lived connections
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	metrics.PresenceConnected()
	defer metrics.PresenceDisconnected()

	client := h.hub.Join(paperID, claims.Subject, claims.Email)
	if err := h.hub.Serve(r.Context(), conn, client); err != nil {
		h.logger.Debug("presence connection closed",
			zap.String("paper_id", paperID),
			zap.String("user_id", claims.Subject),
			zap.Error(err))
	}
}
