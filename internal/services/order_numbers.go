package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/foxglove-goods/api/internal/repositories"
)

const (
	orderNumberPrefix = "FG-"
	orderNumberLength = 8
	// Excludes 0, O, 1, and I so numbers survive being read over the phone.
	orderNumberAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	defaultMintAttempts = 5
)

// ErrOrderNumberExhausted indicates every mint attempt collided with an existing number.
var ErrOrderNumberExhausted = errors.New("order numbers: mint attempts exhausted")

// OrderNumberMinter produces random order number candidates and retries claims
// until one is unique.
type OrderNumberMinter struct {
	attempts int
	random   func([]byte) error
}

// OrderNumberMinterOption customises minting behaviour.
type OrderNumberMinterOption func(*OrderNumberMinter)

// WithMintAttempts overrides how many candidates are tried before giving up.
func WithMintAttempts(attempts int) OrderNumberMinterOption {
	return func(m *OrderNumberMinter) {
		if attempts > 0 {
			m.attempts = attempts
		}
	}
}

// WithMintRandom injects a deterministic byte source for tests.
func WithMintRandom(random func([]byte) error) OrderNumberMinterOption {
	return func(m *OrderNumberMinter) {
		if random != nil {
			m.random = random
		}
	}
}

// NewOrderNumberMinter constructs a minter backed by crypto/rand.
func NewOrderNumberMinter(opts ...OrderNumberMinterOption) *OrderNumberMinter {
	m := &OrderNumberMinter{
		attempts: defaultMintAttempts,
		random: func(buf []byte) error {
			_, err := rand.Read(buf)
			return err
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Candidate mints a single order number candidate. The 32-character alphabet
// divides 256 evenly, so the modulo mapping stays unbiased.
func (m *OrderNumberMinter) Candidate() (string, error) {
	if m == nil {
		return "", errors.New("order numbers: minter is nil")
	}
	buf := make([]byte, orderNumberLength)
	if err := m.random(buf); err != nil {
		return "", fmt.Errorf("order numbers: read entropy: %w", err)
	}
	var b strings.Builder
	b.Grow(len(orderNumberPrefix) + orderNumberLength)
	b.WriteString(orderNumberPrefix)
	for _, v := range buf {
		b.WriteByte(orderNumberAlphabet[int(v)%len(orderNumberAlphabet)])
	}
	return b.String(), nil
}

// ClaimFunc attempts to claim a candidate. Returning a number-conflict error
// triggers another attempt; any other error aborts the mint.
type ClaimFunc func(ctx context.Context, candidate string) error

// MintUnique mints candidates until the claim succeeds or attempts run out.
func (m *OrderNumberMinter) MintUnique(ctx context.Context, claim ClaimFunc) (string, error) {
	if m == nil {
		return "", errors.New("order numbers: minter is nil")
	}
	if claim == nil {
		return "", errors.New("order numbers: claim function is required")
	}

	for attempt := 0; attempt < m.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := m.Candidate()
		if err != nil {
			return "", err
		}
		err = claim(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !repositories.OrderErrorHasCode(err, repositories.OrderErrorNumberConflict) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrOrderNumberExhausted, m.attempts)
}
