package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "vidtube:lock:"

// Lock implements DistributedLock using Redis SET NX with TTL.
// Every acquisition stores a fresh owner token so a holder can only release
// the lock it took, never one re-acquired after its own TTL lapsed.
type Lock struct {
	client     redis.Cmdable
	instanceID string

	mu     sync.Mutex
	tokens map[string]string
}

// NewLock creates a new Redis-backed distributed lock.
func NewLock(client redis.Cmdable) *Lock {
	return &Lock{
		client:     client,
		instanceID: generateInstanceID(),
		tokens:     make(map[string]string),
	}
}

// generateInstanceID identifies this process. Format: hostname:pid
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s:%d", hostname, os.Getpid())
}

func (l *Lock) newToken() string {
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return l.instanceID + ":" + hex.EncodeToString(randomBytes)
}

// Acquire attempts to acquire a named lock with the given TTL.
// Returns false if the lock is already held, including by this instance.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("acquire lock %s: ttl must be positive", name)
	}

	token := l.newToken()
	acquired, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release releases a named lock if this instance holds it.
// Safe to call even if the lock is not held or has expired.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// InstanceID returns the identifier embedded in this instance's owner tokens.
func (l *Lock) InstanceID() string {
	return l.instanceID
}
