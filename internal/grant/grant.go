// Package grant keeps the short-lived "OTP verified" markers that gate access
// to an invite's document and to submission.
package grant

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store issues and checks verified grants scoped to an invite token.
// Issuing a new grant for a token replaces the previous one.
type Store interface {
	Grant(ctx context.Context, token string, ttl time.Duration) (string, error)
	Valid(ctx context.Context, token, grantID string) (bool, error)
	Revoke(ctx context.Context, token string) error
}

const keyPrefix = "docsign:grant:"

// Redis stores grants as expiring keys.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Grant(ctx context.Context, token string, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	if err := r.rdb.Set(ctx, keyPrefix+token, id, ttl).Err(); err != nil {
		return "", fmt.Errorf("store grant: %w", err)
	}
	return id, nil
}

func (r *Redis) Valid(ctx context.Context, token, grantID string) (bool, error) {
	if grantID == "" {
		return false, nil
	}
	v, err := r.rdb.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load grant: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(v), []byte(grantID)) == 1, nil
}

func (r *Redis) Revoke(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, keyPrefix+token).Err()
}

type memoryGrant struct {
	id      string
	expires time.Time
}

// Memory is a process-local Store for single-instance runs and tests.
type Memory struct {
	mu     sync.Mutex
	grants map[string]memoryGrant
	now    func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{grants: make(map[string]memoryGrant), now: time.Now}
}

func (m *Memory) Grant(ctx context.Context, token string, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.grants[token] = memoryGrant{id: id, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Valid(ctx context.Context, token, grantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[token]
	if !ok || grantID == "" {
		return false, nil
	}
	if !m.now().Before(g.expires) {
		delete(m.grants, token)
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(g.id), []byte(grantID)) == 1, nil
}

func (m *Memory) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.grants, token)
	m.mu.Unlock()
	return nil
}
