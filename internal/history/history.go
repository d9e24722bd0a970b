// Package history records submitted questions and their correlation ids so
// the page can offer past questions for re-asking.
package history

import (
	"context"
	"time"
)

// Entry is one answered or attempted question.
type Entry struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store keeps question history, newest first.
type Store interface {
	Add(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
