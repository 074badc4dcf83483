package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/buyer"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/chat"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/hub"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/inventory"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/payment"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/presence"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/purchase"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/session"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/streak"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/jwt"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/middleware"
)

type stubPaymentOK struct{}

func (stubPaymentOK) Capture(context.Context, payment.CaptureRequest) (payment.Outcome, error) {
	return payment.OutcomeCaptured, nil
}

func (stubPaymentOK) QueryStatus(context.Context, string) (payment.Outcome, error) {
	return payment.OutcomeCaptured, nil
}

type testEnv struct {
	router *gin.Engine
	tokens *jwt.Manager
	store  *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := store.NewMemoryStore()
	err := st.CreateProduct(ctx, &domain.Product{
		ID:             "p1",
		Title:          "vintage tee",
		FullPriceCents: 1000,
		ShippingCents:  0,
		Stock:          5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	ledger := inventory.NewLedger(st, 8)
	streaks := streak.NewEngine()
	presenceStore := presence.NewMemoryStore()
	registry := presence.NewRegistry(presenceStore, nil, presence.Config{HeartbeatTTL: time.Minute})
	channel := chat.NewChannel(chat.NewWordListFilter([]string{"scam"}), chat.NewMemoryLog(50), nil)

	sessions := session.NewManager(st, ledger, nil, registry)
	profiles := buyer.NewStaticChecker(buyer.Profile{
		ViewerID:           "viewer-1",
		DisplayName:        "Sam",
		HasShippingAddress: true,
		HasPaymentMethod:   true,
	})
	purchases := purchase.NewCoordinator(st, ledger, streaks, stubPaymentOK{}, profiles, sessions, nil, purchase.Config{})

	tokens := jwt.NewManager("test-secret", "test", time.Hour)
	h := New(sessions, registry, channel, purchases, st, hub.NewHub(hub.DefaultConfig()), hub.DefaultConfig(), tokens)

	router := gin.New()
	h.RegisterRoutes(router, middleware.NewAuthMiddleware(tokens))
	return &testEnv{router: router, tokens: tokens, store: st}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) broadcasterToken(t *testing.T, id string) string {
	t.Helper()
	token, err := e.tokens.Sign(id, "Broadcaster", true)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) viewerToken(t *testing.T, id string) string {
	t.Helper()
	token, err := e.tokens.Sign(id, "Sam", false)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	w := e.request(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestBroadcasterEndpointsRequireAuth(t *testing.T) {
	e := newTestEnv(t)

	w := e.request(t, http.MethodPost, "/v1/sessions/bcast-1/open", "", map[string]bool{"discounts_enabled": true})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/open", e.viewerToken(t, "viewer-1"), map[string]bool{"discounts_enabled": true})
	if w.Code != http.StatusForbidden {
		t.Fatalf("viewer token: expected 403, got %d", w.Code)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/open", e.broadcasterToken(t, "other-bcast"), map[string]bool{"discounts_enabled": true})
	if w.Code != http.StatusForbidden {
		t.Fatalf("wrong owner: expected 403, got %d", w.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	owner := e.broadcasterToken(t, "bcast-1")

	w := e.request(t, http.MethodPost, "/v1/sessions/bcast-1/open", owner, map[string]bool{"discounts_enabled": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/rotation/start", owner, map[string]interface{}{
		"queue":            []string{"p1"},
		"interval_seconds": 15,
		"auto_restart":     true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("start rotation: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data domain.StateSnapshot `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if envelope.Data.CurrentProductID != "p1" || !envelope.Data.RotationActive {
		t.Fatalf("unexpected snapshot %+v", envelope.Data)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/end", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", w.Code)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/rotation/pause", owner, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("command after end: expected 409, got %d", w.Code)
	}
}

func TestViewerJoinChatAndBuy(t *testing.T) {
	e := newTestEnv(t)
	owner := e.broadcasterToken(t, "bcast-1")
	viewer := e.viewerToken(t, "viewer-1")

	e.request(t, http.MethodPost, "/v1/sessions/bcast-1/open", owner, map[string]bool{"discounts_enabled": true})

	w := e.request(t, http.MethodPost, "/v1/sessions/bcast-1/join", viewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var joined struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &joined)
	if joined.Data.Count != 1 {
		t.Fatalf("expected count 1, got %d", joined.Data.Count)
	}

	w = e.request(t, http.MethodPost, "/v1/heartbeat", viewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("heartbeat: expected 200, got %d", w.Code)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/chat", viewer, map[string]string{"text": "hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("chat: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/chat", viewer, map[string]string{"text": "total scam"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("filtered chat: expected 422, got %d", w.Code)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/buy", viewer, map[string]interface{}{
		"product_id": "p1",
		"quantity":   1,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("buy: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var bought struct {
		Data domain.PurchaseOrder `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &bought)
	if bought.Data.Status != domain.OrderCaptured {
		t.Fatalf("expected captured order, got %s", bought.Data.Status)
	}
	if bought.Data.DiscountPercent != 10 {
		t.Fatalf("first purchase should carry 10%% discount, got %d%%", bought.Data.DiscountPercent)
	}

	w = e.request(t, http.MethodPost, "/v1/sessions/bcast-1/buy", viewer, map[string]interface{}{
		"product_id": "p1",
		"quantity":   99,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("oversized buy: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = e.request(t, http.MethodPost, "/v1/leave", viewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leave: expected 200, got %d", w.Code)
	}
	w = e.request(t, http.MethodPost, "/v1/heartbeat", viewer, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("heartbeat after leave: expected 404, got %d", w.Code)
	}
}

func TestGetProduct(t *testing.T) {
	e := newTestEnv(t)
	viewer := e.viewerToken(t, "viewer-1")

	w := e.request(t, http.MethodGet, "/v1/products/p1", viewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var envelope struct {
		Data domain.Product `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if envelope.Data.ID != "p1" || envelope.Data.Stock != 5 {
		t.Fatalf("unexpected product %+v", envelope.Data)
	}

	w = e.request(t, http.MethodGet, "/v1/products/nope", viewer, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestBuyWithoutProfileIsBlocked(t *testing.T) {
	e := newTestEnv(t)
	owner := e.broadcasterToken(t, "bcast-1")
	stranger := e.viewerToken(t, "viewer-2")

	e.request(t, http.MethodPost, "/v1/sessions/bcast-1/open", owner, map[string]bool{"discounts_enabled": true})

	w := e.request(t, http.MethodPost, "/v1/sessions/bcast-1/buy", stranger, map[string]interface{}{
		"product_id": "p1",
		"quantity":   1,
	})
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d: %s", w.Code, w.Body.String())
	}
}
