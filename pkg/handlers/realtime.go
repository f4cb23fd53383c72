package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/utils"

	"github.com/gorilla/websocket"
)

// RealtimeHandler upgrades authenticated clients onto the event hub
type RealtimeHandler struct {
	config     *config.Config
	hub        *realtime.Hub
	jwtService *utils.JWTService
	upgrader   websocket.Upgrader
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(cfg *config.Config, hub *realtime.Hub) *RealtimeHandler {
	h := &RealtimeHandler{
		config:     cfg,
		hub:        hub,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows the configured frontends plus same-origin requests
func (h *RealtimeHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWS handles GET /ws
// The access token comes from the "token" query parameter (browser WebSocket
// clients cannot set headers) or the Authorization header. Connections without
// a valid token are rejected before the upgrade.
func (h *RealtimeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := utils.GetQueryParam(r, "token", "")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			tokenString = ""
		}
	}
	if tokenString == "" {
		utils.WriteUnauthorizedResponse(w, "Missing access token")
		return
	}

	claims, err := h.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid access token")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		fmt.Printf("[realtime] upgrade failed for user %s: %v\n", claims.UserID, err)
		return
	}

	realtime.ServeConn(h.hub, claims.UserID, ws)
}
