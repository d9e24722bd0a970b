package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/askdb/internal/history"
)

const (
	listKey    = "askdb:question_history"
	maxEntries = 1000
)

type Store struct {
	rdb *goredis.Client
}

// New connects to redis and verifies the connection before handing the store
// out, matching how the rest of the app fails fast on bad wiring.
func New(ctx context.Context, host, port, password string, db int) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", host, port, err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Add(ctx context.Context, e history.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, listKey, buf)
	pipe.LTrim(ctx, listKey, 0, maxEntries-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = maxEntries
	}
	raw, err := s.rdb.LRange(ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]history.Entry, 0, len(raw))
	for _, item := range raw {
		var e history.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
