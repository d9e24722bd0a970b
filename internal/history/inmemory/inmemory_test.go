package inmemory

import (
	"context"
	"fmt"
	"testing"

	"github.com/mohammad-safakhou/askdb/internal/history"
)

func TestAddAndRecentNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := s.Add(ctx, history.Entry{Question: fmt.Sprintf("q%d", i), CorrelationID: fmt.Sprintf("id%d", i)})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Question != "q2" || got[1].Question != "q1" {
		t.Fatalf("recent = %+v", got)
	}
	for _, e := range got {
		if e.ID == "" {
			t.Fatal("entries must get an id assigned")
		}
	}
}

func TestRecentLimitLargerThanStore(t *testing.T) {
	s := New()
	_ = s.Add(context.Background(), history.Entry{Question: "only"})

	got, err := s.Recent(context.Background(), 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("recent = %+v", got)
	}
}

func TestCapAtMaxEntries(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < maxEntries+10; i++ {
		_ = s.Add(ctx, history.Entry{Question: fmt.Sprintf("q%d", i)})
	}
	got, _ := s.Recent(ctx, 0)
	if len(got) != maxEntries {
		t.Fatalf("len = %d want %d", len(got), maxEntries)
	}
	if got[0].Question != fmt.Sprintf("q%d", maxEntries+9) {
		t.Fatalf("newest = %q", got[0].Question)
	}
}
