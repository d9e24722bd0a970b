// Package convo holds the append-only conversation log. Only the pipeline
// coordinator writes to it; the presentation layer subscribes to its events.
package convo

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/askdb/internal/render"
)

type EventKind string

const (
	EventAppend      EventKind = "append"
	EventTyping      EventKind = "typing"
	EventClearTyping EventKind = "clear_typing"
)

// Event announces one change to the log.
type Event struct {
	Kind EventKind   `json:"kind"`
	Unit render.Unit `json:"unit"`
}

// Log is an append-only ordered sequence of display units plus at most one
// transient typing indicator. Entries are never mutated or removed.
type Log struct {
	mu      sync.RWMutex
	entries []render.Unit
	typing  *render.Unit
	subs    map[uint64]chan Event
	nextSub uint64
}

func New() *Log {
	return &Log{subs: make(map[uint64]chan Event)}
}

// Append adds a unit at the end of the log in arrival order.
func (l *Log) Append(u render.Unit) {
	l.mu.Lock()
	l.entries = append(l.entries, u)
	l.mu.Unlock()
	l.publish(Event{Kind: EventAppend, Unit: u})
}

// ShowTyping installs the transient typing indicator. Calling it while one is
// already shown is a no-op.
func (l *Log) ShowTyping(u render.Unit) {
	l.mu.Lock()
	if l.typing != nil {
		l.mu.Unlock()
		return
	}
	u.Transient = true
	l.typing = &u
	l.mu.Unlock()
	l.publish(Event{Kind: EventTyping, Unit: u})
}

// ClearTyping removes the typing indicator. Removing when absent is a no-op,
// not an error.
func (l *Log) ClearTyping() {
	l.mu.Lock()
	if l.typing == nil {
		l.mu.Unlock()
		return
	}
	cleared := *l.typing
	l.typing = nil
	l.mu.Unlock()
	l.publish(Event{Kind: EventClearTyping, Unit: cleared})
}

// Typing reports whether the indicator is currently shown.
func (l *Log) Typing() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.typing != nil
}

// Len returns the number of permanent entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot copies the log in display order, with the typing indicator (when
// shown) as the final unit.
func (l *Log) Snapshot() []render.Unit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]render.Unit, len(l.entries), len(l.entries)+1)
	copy(out, l.entries)
	if l.typing != nil {
		out = append(out, *l.typing)
	}
	return out
}

// Subscribe returns a channel of log events that closes when ctx is done.
// Slow subscribers lose events rather than blocking the coordinator; the page
// recovers by refetching the snapshot.
func (l *Log) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (l *Log) publish(ev Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
