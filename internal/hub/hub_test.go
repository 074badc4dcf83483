package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("hub did not stop on context cancel")
		}
	})
	return h
}

func newTestClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, 8)}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := NewHub(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBroadcastReachesSessionMembers(t *testing.T) {
	h := startHub(t)

	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	h.Register(c1)
	h.Register(c2)
	h.JoinSession(c1, "s1")
	h.JoinSession(c2, "s1")

	if err := h.BroadcastToSession("s1", map[string]string{"type": "state_delta"}, "c2"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-c1.Send:
		if len(msg) == 0 {
			t.Fatal("empty broadcast payload")
		}
	case <-time.After(time.Second):
		t.Fatal("c1 never received the broadcast")
	}
	select {
	case <-c2.Send:
		t.Fatal("excluded client received the broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLeaveSessionStopsDelivery(t *testing.T) {
	h := startHub(t)

	c1 := newTestClient("c1")
	h.Register(c1)
	h.JoinSession(c1, "s1")
	h.LeaveSession(c1, "s1")

	if n := h.SessionClientCount("s1"); n != 0 {
		t.Fatalf("expected empty session, got %d", n)
	}
	if err := h.BroadcastToSession("s1", map[string]string{"type": "state_delta"}, ""); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	select {
	case <-c1.Send:
		t.Fatal("departed client received the broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}
