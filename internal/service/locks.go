package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker hands out short-lived exclusive locks on basket identifiers
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// IdempotencyStore remembers the result of a request made with an idempotency key
type IdempotencyStore interface {
	SetIdempotencyKey(ctx context.Context, key string, value string, ttl time.Duration) error
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
}

type localEntry struct {
	value     string
	expiresAt time.Time
}

// LocalLocker implements Locker and IdempotencyStore in process memory.
// It is used when Redis is disabled, so locks are only exclusive within one instance.
type LocalLocker struct {
	mu      sync.Mutex
	locks   map[string]localEntry
	keys    map[string]localEntry
	nowFunc func() time.Time
}

// NewLocalLocker creates an empty in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks:   make(map[string]localEntry),
		keys:    make(map[string]localEntry),
		nowFunc: time.Now,
	}
}

// AcquireLock takes the lock unless another live token holds it
func (l *LocalLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.locks[key] = localEntry{value: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// ReleaseLock drops the lock if token still owns it
func (l *LocalLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.value == token {
		delete(l.locks, key)
	}
	return nil
}

// SetIdempotencyKey stores value under key until ttl elapses
func (l *LocalLocker) SetIdempotencyKey(ctx context.Context, key string, value string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = localEntry{value: value, expiresAt: l.nowFunc().Add(ttl)}
	return nil
}

// GetIdempotencyKey returns the live value stored under key
func (l *LocalLocker) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.keys[key]
	if !ok {
		return "", false, nil
	}
	if !l.nowFunc().Before(entry.expiresAt) {
		delete(l.keys, key)
		return "", false, nil
	}
	return entry.value, true, nil
}
