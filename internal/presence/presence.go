// Package presence keeps online/offline state in Redis so that other
// instances (and the identity service) can see who is connected.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status struct {
	Status   string `json:"status"` // "online" or "offline"
	LastSeen int64  `json:"last_seen"`
}

// Store is nil-safe: a nil *Store turns every call into a no-op so the
// service runs without Redis in development.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID uint) string {
	return fmt.Sprintf("%s:presence:%d", s.prefix, userID)
}

// Connected records a live connection for the user. Connection counting
// lives in a Redis integer so a user with two devices stays online until
// the last one drops.
func (s *Store) Connected(ctx context.Context, userID uint) error {
	if s == nil || s.client == nil {
		return nil
	}
	countKey := s.key(userID) + ":conns"
	if err := s.client.Incr(ctx, countKey).Err(); err != nil {
		return err
	}
	_ = s.client.Expire(ctx, countKey, s.ttl).Err()
	return s.set(ctx, userID, "online")
}

// Disconnected drops one connection; the user goes offline when none
// remain.
func (s *Store) Disconnected(ctx context.Context, userID uint) error {
	if s == nil || s.client == nil {
		return nil
	}
	countKey := s.key(userID) + ":conns"
	n, err := s.client.Decr(ctx, countKey).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		_ = s.client.Del(ctx, countKey).Err()
		return s.set(ctx, userID, "offline")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID uint) (*Status, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) set(ctx context.Context, userID uint, status string) error {
	b, _ := json.Marshal(Status{Status: status, LastSeen: time.Now().Unix()})
	ttl := s.ttl
	if status == "offline" {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(userID), b, ttl).Err()
}
