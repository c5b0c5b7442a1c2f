package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

const (
	referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referenceSuffix   = 6
	referenceAttempts = 10
)

var ErrReferenceExhausted = errors.New("booking: could not allocate a unique reference")

// ReferenceExistsFunc reports whether a reference is already taken.
type ReferenceExistsFunc func(ctx context.Context, reference string) (bool, error)

// NewReference formats a human-readable reference such as BK-250310-7KQ2MX.
func NewReference(now time.Time) (string, error) {
	buf := make([]byte, referenceSuffix)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("booking: reference entropy read failed: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("BK-%s-%s", now.UTC().Format("060102"), buf), nil
}

// GenerateUniqueReference draws references until exists reports a free one.
func GenerateUniqueReference(ctx context.Context, now time.Time, exists ReferenceExistsFunc) (string, error) {
	return generateUniqueReference(ctx, now, exists, NewReference)
}

func generateUniqueReference(ctx context.Context, now time.Time, exists ReferenceExistsFunc, next func(time.Time) (string, error)) (string, error) {
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ref, err := next(now)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return ref, nil
		}
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", ErrReferenceExhausted
}
