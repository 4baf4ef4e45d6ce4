package services

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// dummyPassword is hashed once at construction; comparing against its hash
// keeps the unknown-email login path as slow as a real one.
const dummyPassword = "numeria-dummy-password"

// PasswordHasher runs bcrypt for passwords and backup codes. When built with
// a positive concurrency it admits at most that many hash operations at once
// and callers wait (honoring ctx) for a slot.
type PasswordHasher struct {
	cost      int
	sem       *semaphore.Weighted
	dummyHash []byte
}

// NewPasswordHasher returns a hasher with the given bcrypt cost. concurrency
// 0 runs every operation inline without a limit.
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	h := &PasswordHasher{cost: cost}
	if concurrency > 0 {
		h.sem = semaphore.NewWeighted(int64(concurrency))
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	h.dummyHash = dummy
	return h, nil
}

func (h *PasswordHasher) run(ctx context.Context, fn func()) error {
	if h.sem != nil {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer h.sem.Release(1)
	}
	fn()
	return nil
}

// Hash returns the bcrypt hash of secret.
func (h *PasswordHasher) Hash(ctx context.Context, secret string) (string, error) {
	var (
		out     []byte
		hashErr error
	)
	if err := h.run(ctx, func() {
		out, hashErr = bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	}); err != nil {
		return "", err
	}
	if hashErr != nil {
		return "", fmt.Errorf("hash password: %w", hashErr)
	}
	return string(out), nil
}

// Compare reports whether secret matches hash. A malformed hash is a
// mismatch, not an error; only ctx cancellation while waiting for a slot is
// returned as an error.
func (h *PasswordHasher) Compare(ctx context.Context, hash, secret string) (bool, error) {
	var cmpErr error
	if err := h.run(ctx, func() {
		cmpErr = bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	}); err != nil {
		return false, err
	}
	return cmpErr == nil, nil
}

// CompareDummy burns the same time as a real Compare and always fails.
func (h *PasswordHasher) CompareDummy(ctx context.Context, secret string) error {
	return h.run(ctx, func() {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(secret))
	})
}
