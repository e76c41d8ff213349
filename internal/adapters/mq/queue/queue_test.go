package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/duelist/internal/domain/model"
)

func notice(key string) model.Notice {
	return model.Notice{Kind: model.NoticeOutcome, Key: key}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, notice("venue-1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	n := <-q.Dequeue(ctx)
	if n.Key != "venue-1" {
		t.Errorf("expected venue-1, got %v", n.Key)
	}
	if n.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be stamped")
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, notice("a")) || !q.Enqueue(ctx, notice("b")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, notice("c")) {
		t.Error("expected enqueue to fail when queue is full")
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if !q.Enqueue(ctx, notice(fmt.Sprintf("k-%d", i))) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	_ = q.Close()

	i := 0
	for n := range q.Dequeue(ctx) {
		if want := fmt.Sprintf("k-%d", i); n.Key != want {
			t.Fatalf("expected %s, got %s", want, n.Key)
		}
		i++
	}
	if i != 50 {
		t.Errorf("expected 50 notices drained after close, got %d", i)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("expected queue to be open")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, notice("late")) {
		t.Error("expected enqueue to fail after close")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected closed dequeue channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel was not closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A full queue with a cancelled context must not block.
	_ = q.Enqueue(context.Background(), notice("a"))
	if q.Enqueue(ctx, notice("b")) {
		t.Error("expected enqueue to fail")
	}
}
