package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
)

type recordingBus struct {
	mu   sync.Mutex
	msgs []domain.ChatMessage
}

func (b *recordingBus) ChatPosted(_ context.Context, msg domain.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func TestPostAssignsMonotonicSequence(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(nil, NewMemoryLog(10), nil)

	var last uint64
	for i := 0; i < 5; i++ {
		msg, err := ch.Post(ctx, "s1", "v1", "viewer", "hello")
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		if msg.Sequence <= last {
			t.Fatalf("sequence not monotonic: %d after %d", msg.Sequence, last)
		}
		last = msg.Sequence
	}
}

func TestSequencesAreIndependentPerSession(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(nil, nil, nil)

	m1, _ := ch.Post(ctx, "s1", "v1", "viewer", "a")
	m2, _ := ch.Post(ctx, "s2", "v1", "viewer", "b")
	if m1.Sequence != 1 || m2.Sequence != 1 {
		t.Fatalf("expected both sessions to start at 1, got %d and %d", m1.Sequence, m2.Sequence)
	}
}

// Concurrent posters never share or skip a sequence number.
func TestConcurrentPostsGetUniqueSequences(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(nil, nil, nil)

	const posters = 40
	seqs := make(chan uint64, posters)
	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := ch.Post(ctx, "s1", "v1", "viewer", "hi")
			if err != nil {
				t.Errorf("post: %v", err)
				return
			}
			seqs <- msg.Sequence
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[uint64]bool)
	for s := range seqs {
		if seen[s] {
			t.Fatalf("duplicate sequence %d", s)
		}
		seen[s] = true
	}
	for s := uint64(1); s <= posters; s++ {
		if !seen[s] {
			t.Fatalf("sequence %d was skipped", s)
		}
	}
}

func TestPostRejectsEmptyAndOversized(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(nil, nil, nil)

	if _, err := ch.Post(ctx, "s1", "v1", "viewer", "   "); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("expected ErrMessageEmpty, got %v", err)
	}
	long := strings.Repeat("x", MaxMessageLength+1)
	if _, err := ch.Post(ctx, "s1", "v1", "viewer", long); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestFilterBlocksMessageAndBurnsNoSequence(t *testing.T) {
	ctx := context.Background()
	filter := NewWordListFilter([]string{"scam"})
	ch := NewChannel(filter, nil, nil)

	if _, err := ch.Post(ctx, "s1", "v1", "viewer", "total SCAM here"); !errors.Is(err, ErrMessageRejected) {
		t.Fatalf("expected ErrMessageRejected, got %v", err)
	}

	msg, err := ch.Post(ctx, "s1", "v1", "viewer", "legit question")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.Sequence != 1 {
		t.Fatalf("rejected message consumed a sequence, next got %d", msg.Sequence)
	}
}

// A filter that errors internally still rejects the message.
func TestFilterErrorRejectsMessage(t *testing.T) {
	ctx := context.Background()
	broken := FilterFunc(func(string) error { return errors.New("upstream down") })
	ch := NewChannel(broken, nil, nil)

	if _, err := ch.Post(ctx, "s1", "v1", "viewer", "anything"); !errors.Is(err, ErrMessageRejected) {
		t.Fatalf("expected ErrMessageRejected, got %v", err)
	}
}

func TestPostFansOutToBus(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	ch := NewChannel(nil, nil, bus)

	if _, err := ch.Post(ctx, "s1", "v1", "viewer", "hello"); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(bus.msgs) != 1 || bus.msgs[0].Text != "hello" {
		t.Fatalf("expected one broadcast message, got %v", bus.msgs)
	}
}

func TestRedisLogKeepsCappedTailInOrder(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tail := NewRedisLog(client, 3, 0)
	defer tail.Close()

	ch := NewChannel(nil, tail, nil)
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		if _, err := ch.Post(ctx, "s1", "v1", "viewer", text); err != nil {
			t.Fatalf("post %q: %v", text, err)
		}
	}

	recent, err := ch.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected capped tail of 3, got %d", len(recent))
	}
	for i, want := range []string{"three", "four", "five"} {
		if recent[i].Text != want {
			t.Fatalf("tail[%d] = %q, want %q", i, recent[i].Text, want)
		}
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Sequence <= recent[i-1].Sequence {
			t.Fatalf("tail not in ascending sequence order: %v", recent)
		}
	}
}

func TestCloseSessionResetsSequenceAndTail(t *testing.T) {
	ctx := context.Background()
	ch := NewChannel(nil, NewMemoryLog(10), nil)

	if _, err := ch.Post(ctx, "s1", "v1", "viewer", "hello"); err != nil {
		t.Fatalf("post: %v", err)
	}
	ch.CloseSession(ctx, "s1")

	recent, err := ch.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected empty tail after close, got %d", len(recent))
	}
}
