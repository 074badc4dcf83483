package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/hub"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced at the edge proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and runs the viewer protocol: the
// client authenticates, joins a session, and from then on receives state
// deltas, chat, presence counts, and purchase banners pushed by the bus.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), h.hub, conn, h.hubConfig)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(h.handleClientMessage)
}

func (h *Handler) handleClientMessage(client *hub.Client, data []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed message"))
		return
	}

	switch base.Type {
	case domain.MsgTypeAuth:
		h.handleAuth(client, data)
	case domain.MsgTypeJoinSession:
		h.handleJoin(client, data)
	case domain.MsgTypeLeaveSession:
		h.handleLeave(client)
	case domain.MsgTypePing:
		h.handlePing(client)
	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}

func (h *Handler) handleAuth(client *hub.Client, data []byte) {
	var msg domain.AuthMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed auth message"))
		return
	}

	claims, err := h.tokens.Validate(msg.Token)
	if err != nil {
		client.SendMessage(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "invalid token",
		})
		return
	}

	client.ViewerID = claims.UserID
	client.DisplayName = claims.DisplayName
	client.Broadcaster = claims.Broadcaster
	client.SendMessage(&domain.AuthResultMessage{
		Type:        domain.MsgTypeAuthResult,
		Success:     true,
		ViewerID:    claims.UserID,
		DisplayName: claims.DisplayName,
	})
}

func (h *Handler) handleJoin(client *hub.Client, data []byte) {
	if client.ViewerID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "authenticate first"))
		return
	}

	var msg domain.JoinSessionMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.SessionID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "malformed join message"))
		return
	}

	ctx := context.Background()
	snap, err := h.sessions.Snapshot(ctx, msg.SessionID)
	if err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "session not active"))
		return
	}

	count, err := h.registry.Join(ctx, msg.SessionID, client.ViewerID)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldSessionID, msg.SessionID).Msg("presence join failed")
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "join failed"))
		return
	}

	// Leave any previous session set; a viewer watches one stream at a time.
	if client.SessionID != "" && client.SessionID != msg.SessionID {
		h.hub.LeaveSession(client, client.SessionID)
	}
	h.hub.JoinSession(client, msg.SessionID)

	client.SendMessage(&domain.SessionJoinedMessage{
		Type:      domain.MsgTypeSessionJoined,
		SessionID: msg.SessionID,
		Snapshot:  snap,
		Count:     count,
	})

	// Backfill the recent chat tail so late joiners see context.
	if messages, err := h.channel.Recent(ctx, msg.SessionID, 0); err == nil {
		for i := range messages {
			client.SendMessage(&domain.ChatPostedMessage{
				Type:    domain.MsgTypeChatPosted,
				Message: &messages[i],
			})
		}
	}
}

func (h *Handler) handleLeave(client *hub.Client) {
	if client.ViewerID == "" || client.SessionID == "" {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInSession, "not in a session"))
		return
	}

	ctx := context.Background()
	if err := h.registry.Leave(ctx, client.ViewerID); err != nil {
		log.L().Error().Err(err).Str(log.FieldViewerID, client.ViewerID).Msg("presence leave failed")
	}
	h.hub.LeaveSession(client, client.SessionID)
}

func (h *Handler) handlePing(client *hub.Client) {
	// A protocol-level ping doubles as a presence heartbeat.
	if client.ViewerID != "" {
		if _, _, err := h.registry.Heartbeat(context.Background(), client.ViewerID); err != nil {
			log.L().Warn().Err(err).Str(log.FieldViewerID, client.ViewerID).Msg("heartbeat failed")
		}
	}
	client.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})
}
