package convo

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/askdb/internal/render"
)

func unit(id string) render.Unit {
	return render.Unit{ID: id, Role: render.RoleAssistant}
}

func TestAppendPreservesOrder(t *testing.T) {
	l := New()
	l.Append(unit("a"))
	l.Append(unit("b"))
	l.Append(unit("c"))

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d", len(snap))
	}
	for i, want := range []string{"a", "b", "c"} {
		if snap[i].ID != want {
			t.Fatalf("snap[%d] = %q want %q", i, snap[i].ID, want)
		}
	}
}

func TestTypingIdempotent(t *testing.T) {
	l := New()
	l.ShowTyping(unit("t1"))
	l.ShowTyping(unit("t2")) // second show is a no-op
	if !l.Typing() {
		t.Fatal("indicator should be shown")
	}
	snap := l.Snapshot()
	if len(snap) != 1 || snap[0].ID != "t1" {
		t.Fatalf("snapshot = %+v", snap)
	}

	l.ClearTyping()
	l.ClearTyping() // clearing when absent is a no-op
	if l.Typing() {
		t.Fatal("indicator should be gone")
	}
	if len(l.Snapshot()) != 0 {
		t.Fatal("typing must not persist in the log")
	}
}

func TestTypingAlwaysLastInSnapshot(t *testing.T) {
	l := New()
	l.ShowTyping(unit("typing"))
	l.Append(unit("a"))

	snap := l.Snapshot()
	if len(snap) != 2 || snap[1].ID != "typing" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap[1].Transient {
		t.Fatal("typing unit must be transient")
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := l.Subscribe(ctx)

	l.Append(unit("a"))
	l.ShowTyping(unit("t"))
	l.ClearTyping()

	want := []EventKind{EventAppend, EventTyping, EventClearTyping}
	for i, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind {
				t.Fatalf("event %d kind = %q want %q", i, ev.Kind, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	events := l.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-events:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}

func TestSlowSubscriberDoesNotBlockAppend(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = l.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			l.Append(unit("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("append blocked on a slow subscriber")
	}
}
