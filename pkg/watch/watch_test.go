package watch

import (
	"context"
	"testing"
	"time"
)

func TestLatestValueWins(t *testing.T) {
	v := New(1.0)
	r := v.Subscribe()

	select {
	case <-r.Changed():
		t.Fatal("fresh receiver should have nothing to see")
	default:
	}

	v.Set(2)
	v.Set(3)

	select {
	case <-r.Changed():
	default:
		t.Fatal("receiver not notified")
	}
	if got := r.Latest(); got != 3 {
		t.Fatalf("Latest() = %v, expected 3", got)
	}
	select {
	case <-r.Changed():
		t.Fatal("value already seen")
	default:
	}
}

func TestEveryReceiverNotified(t *testing.T) {
	v := New("a")
	r1 := v.Subscribe()
	r2 := v.Subscribe()
	v.Set("b")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, r := range []*Receiver[string]{r1, r2} {
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if r.Latest() != "b" {
			t.Fatal("wrong value")
		}
	}
}

func TestWaitBlocksUntilSet(t *testing.T) {
	v := New(0)
	r := v.Subscribe()
	go func() {
		time.Sleep(10 * time.Millisecond)
		v.Set(7)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if r.Peek() != 7 {
		t.Fatalf("Peek() = %v", r.Peek())
	}
	// Peek does not consume the change.
	if err := r.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	v := New(0)
	r := v.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClose(t *testing.T) {
	v := New(0)
	r := v.Subscribe()
	v.Set(1)
	v.Close()
	v.Set(2)

	ctx := context.Background()
	// The unseen value is still delivered before the close.
	if err := r.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if r.Latest() != 1 {
		t.Fatal("set after close should be ignored")
	}
	if err := r.Wait(ctx); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if !r.Closed() {
		t.Fatal("receiver should report closed")
	}
}
