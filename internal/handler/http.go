package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/chat"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/hub"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/presence"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/purchase"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/session"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/jwt"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/middleware"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/response"
)

// ProductReader reads catalog entries for viewer and broadcaster UIs.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Handler carries the coordinator's entry points for HTTP and websocket
// traffic.
type Handler struct {
	sessions  *session.Manager
	registry  *presence.Registry
	channel   *chat.Channel
	purchases *purchase.Coordinator
	products  ProductReader
	hub       *hub.Hub
	hubConfig hub.Config
	tokens    *jwt.Manager
}

// New creates the handler set.
func New(
	sessions *session.Manager,
	registry *presence.Registry,
	channel *chat.Channel,
	purchases *purchase.Coordinator,
	products ProductReader,
	h *hub.Hub,
	hubConfig hub.Config,
	tokens *jwt.Manager,
) *Handler {
	return &Handler{
		sessions:  sessions,
		registry:  registry,
		channel:   channel,
		purchases: purchases,
		products:  products,
		hub:       h,
		hubConfig: hubConfig,
		tokens:    tokens,
	}
}

// RegisterRoutes mounts all endpoints on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine, auth *middleware.AuthMiddleware) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.WebSocket)

	v1 := r.Group("/v1", auth.RequireAuth())
	{
		v1.GET("/sessions/:id", h.GetSnapshot)
		v1.GET("/products/:id", h.GetProduct)
		v1.POST("/sessions/:id/join", h.Join)
		v1.POST("/heartbeat", h.Heartbeat)
		v1.POST("/leave", h.Leave)
		v1.POST("/sessions/:id/chat", h.PostChat)
		v1.GET("/sessions/:id/chat", h.RecentChat)
		v1.POST("/sessions/:id/buy", h.Buy)

		broadcaster := v1.Group("", h.requireSessionOwner())
		{
			broadcaster.POST("/sessions/:id/open", h.OpenSession)
			broadcaster.POST("/sessions/:id/rotation/start", h.StartRotation)
			broadcaster.POST("/sessions/:id/rotation/pause", h.PauseRotation)
			broadcaster.POST("/sessions/:id/rotation/resume", h.ResumeRotation)
			broadcaster.POST("/sessions/:id/product", h.SelectProduct)
			broadcaster.PUT("/sessions/:id/queue", h.ReorderQueue)
			broadcaster.POST("/sessions/:id/end", h.EndSession)
		}
	}
}

// requireSessionOwner gates broadcaster commands: the session ID is the
// broadcaster identity, so only that user may steer it.
func (h *Handler) requireSessionOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !middleware.IsBroadcaster(c) {
			response.Forbidden(c, "broadcaster role required")
			c.Abort()
			return
		}
		if c.Param("id") != middleware.GetUserID(c) {
			response.Forbidden(c, "not the session owner")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type openSessionRequest struct {
	DiscountsEnabled bool `json:"discounts_enabled"`
}

// OpenSession creates an idle session for the authenticated broadcaster.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	sess, err := h.sessions.Open(c.Request.Context(), middleware.GetUserID(c), req.DiscountsEnabled)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, sess)
}

type startRotationRequest struct {
	Queue           []string `json:"queue" binding:"required"`
	IntervalSeconds int      `json:"interval_seconds" binding:"required"`
	AutoRestart     bool     `json:"auto_restart"`
}

// StartRotation begins automatic product cycling.
func (h *Handler) StartRotation(c *gin.Context) {
	var req startRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	err := h.sessions.StartRotation(c.Request.Context(), c.Param("id"), req.Queue, req.IntervalSeconds, req.AutoRestart)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSnapshot(c)
}

// PauseRotation freezes the countdown.
func (h *Handler) PauseRotation(c *gin.Context) {
	if err := h.sessions.PauseRotation(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSnapshot(c)
}

// ResumeRotation continues a paused rotation.
func (h *Handler) ResumeRotation(c *gin.Context) {
	if err := h.sessions.ResumeRotation(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSnapshot(c)
}

type selectProductRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// SelectProduct manually overrides the current product.
func (h *Handler) SelectProduct(c *gin.Context) {
	var req selectProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if err := h.sessions.SelectProduct(c.Request.Context(), c.Param("id"), req.ProductID); err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSnapshot(c)
}

type reorderQueueRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required"`
}

// ReorderQueue replaces the rotation queue order.
func (h *Handler) ReorderQueue(c *gin.Context) {
	var req reorderQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if err := h.sessions.ReorderQueue(c.Request.Context(), c.Param("id"), req.ProductIDs); err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSnapshot(c)
}

// EndSession terminates the session and evicts all viewers.
func (h *Handler) EndSession(c *gin.Context) {
	if err := h.sessions.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"ended": true})
}

// GetSnapshot returns the session's current versioned snapshot.
func (h *Handler) GetSnapshot(c *gin.Context) {
	snap, err := h.sessions.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, snap)
}

// GetProduct returns one catalog entry with its live stock count.
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.writeError(c, err)
		return
	}
	response.Success(c, p)
}

// Join attaches the viewer to the session and returns the snapshot plus
// the resulting viewer count for initial sync.
func (h *Handler) Join(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	viewerID := middleware.GetUserID(c)

	snap, err := h.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	count, err := h.registry.Join(ctx, sessionID, viewerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"snapshot": snap, "count": count})
}

// Heartbeat refreshes the viewer's liveness window.
func (h *Handler) Heartbeat(c *gin.Context) {
	sessionID, ok, err := h.registry.Heartbeat(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !ok {
		response.Error(c, http.StatusNotFound, domain.ErrCodeNotInSession, "not in a session, rejoin required")
		return
	}
	response.Success(c, gin.H{"session_id": sessionID})
}

// Leave detaches the viewer immediately.
func (h *Handler) Leave(c *gin.Context) {
	if err := h.registry.Leave(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"left": true})
}

type postChatRequest struct {
	Text string `json:"text" binding:"required"`
}

// PostChat admits a chat message into the session.
func (h *Handler) PostChat(c *gin.Context) {
	var req postChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	sessionID := c.Param("id")

	sess, err := h.sessions.Session(ctx, sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !sess.Active() {
		h.writeError(c, domain.ErrSessionNotActive)
		return
	}

	msg, err := h.channel.Post(ctx, sessionID, middleware.GetUserID(c), middleware.GetUsername(c), req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, msg)
}

// RecentChat returns the session's recent message tail for backfill.
func (h *Handler) RecentChat(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	messages, err := h.channel.Recent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, messages)
}

type buyRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// Buy runs the purchase pipeline for the authenticated viewer.
func (h *Handler) Buy(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	order, err := h.purchases.Buy(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, order)
}

func (h *Handler) writeSnapshot(c *gin.Context) {
	snap, err := h.sessions.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, snap)
}

// writeError maps the domain error taxonomy onto HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		response.Conflict(c, "OUT_OF_STOCK", "product is out of stock")
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(c, "CONFLICT", "concurrent update conflict, retry")
	case errors.Is(err, domain.ErrPaymentDeclined):
		response.PaymentRequired(c, "PAYMENT_DECLINED", "payment was declined")
	case errors.Is(err, domain.ErrPaymentUnknown):
		// Not a final failure: the order is pending reconciliation.
		c.JSON(http.StatusAccepted, response.Response{
			Success: true,
			Data:    gin.H{"status": "pending", "detail": "payment outcome pending confirmation"},
		})
	case errors.Is(err, domain.ErrSessionNotActive):
		response.Error(c, http.StatusConflict, "SESSION_NOT_ACTIVE", "session is not active")
	case errors.Is(err, domain.ErrMissingBuyerSetup):
		response.Error(c, http.StatusPreconditionFailed, "MISSING_BUYER_SETUP", "shipping address and payment method required")
	case errors.Is(err, domain.ErrInvalidCommand):
		response.BadRequest(c, err.Error())
	case errors.Is(err, chat.ErrMessageEmpty), errors.Is(err, chat.ErrMessageTooLong):
		response.BadRequest(c, err.Error())
	case errors.Is(err, chat.ErrMessageRejected):
		response.Error(c, http.StatusUnprocessableEntity, "MESSAGE_REJECTED", "message rejected by content filter")
	default:
		response.InternalError(c, "internal error")
	}
}
