package ussd

import (
	"context"
	"time"
)

// Repository stores sessions.
type Repository interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Create inserts s with version 0. It fails with a duplicate error if
	// the id is taken.
	Create(ctx context.Context, s *Session) error
	// Save writes state, last input/text/response when the stored version
	// equals s.Version, then increments s.Version. Identity is never updated.
	Save(ctx context.Context, s *Session) error
}

// Locker serialises work on a single session id across goroutines and processes.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done. The lock expires
	// after ttl if release is never called.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
