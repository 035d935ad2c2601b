// Package redis keeps the budget document as a JSON string in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"budget/internal/core"
	"budget/internal/gateway"
)

// Key is the Redis key holding the document.
const Key = gateway.Collection + ":" + gateway.DocumentID

type Store struct {
	client *redis.Client
}

// Connect accepts a redis:// URL or a bare host:port. No connection is made
// until the first command.
func Connect(ctx context.Context, redisURL string) (*Store, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	return &Store{client: redis.NewClient(opt)}, nil
}

// New wraps an existing client.
func New(client *redis.Client) *Store { return &Store{client: client} }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Load(ctx context.Context) (core.Document, error) {
	data, err := s.client.Get(ctx, Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", Key, err)
	}
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Key, err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	return doc, nil
}

func (s *Store) Save(ctx context.Context, doc core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := s.client.Set(ctx, Key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", Key, err)
	}
	return nil
}
