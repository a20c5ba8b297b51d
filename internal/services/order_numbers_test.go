package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/foxglove-goods/api/internal/repositories"
)

func TestOrderNumberCandidateFormat(t *testing.T) {
	minter := NewOrderNumberMinter()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		candidate, err := minter.Candidate()
		if err != nil {
			t.Fatalf("candidate: %v", err)
		}
		if !strings.HasPrefix(candidate, "FG-") {
			t.Fatalf("expected FG- prefix, got %s", candidate)
		}
		body := strings.TrimPrefix(candidate, "FG-")
		if len(body) != 8 {
			t.Fatalf("expected 8 character body, got %q", body)
		}
		for _, c := range body {
			if strings.ContainsRune("0O1I", c) {
				t.Fatalf("ambiguous character %q in %s", c, candidate)
			}
			if !strings.ContainsRune(orderNumberAlphabet, c) {
				t.Fatalf("character %q outside alphabet in %s", c, candidate)
			}
		}
		seen[candidate] = struct{}{}
	}
	if len(seen) < 190 {
		t.Fatalf("expected candidates to be mostly unique, got %d distinct of 200", len(seen))
	}
}

func TestMintUniqueRetriesOnConflict(t *testing.T) {
	minter := NewOrderNumberMinter()

	var mu sync.Mutex
	attempts := 0
	claimed := ""
	claim := func(ctx context.Context, candidate string) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return repositories.NewOrderError(repositories.OrderErrorNumberConflict, "taken", nil)
		}
		claimed = candidate
		return nil
	}

	number, err := minter.MintUnique(context.Background(), claim)
	if err != nil {
		t.Fatalf("mint unique: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if number != claimed {
		t.Fatalf("returned number %s does not match claimed %s", number, claimed)
	}
}

func TestMintUniqueExhaustsAttempts(t *testing.T) {
	minter := NewOrderNumberMinter(WithMintAttempts(5))

	attempts := 0
	claim := func(ctx context.Context, candidate string) error {
		attempts++
		return repositories.NewOrderError(repositories.OrderErrorNumberConflict, "taken", nil)
	}

	_, err := minter.MintUnique(context.Background(), claim)
	if !errors.Is(err, ErrOrderNumberExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", attempts)
	}
}

func TestMintUniqueStopsOnOtherErrors(t *testing.T) {
	minter := NewOrderNumberMinter()

	boom := errors.New("datastore down")
	attempts := 0
	claim := func(ctx context.Context, candidate string) error {
		attempts++
		return boom
	}

	_, err := minter.MintUnique(context.Background(), claim)
	if !errors.Is(err, boom) {
		t.Fatalf("expected claim error to propagate, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestMintUniqueDeterministicCandidates(t *testing.T) {
	next := byte(0)
	minter := NewOrderNumberMinter(WithMintRandom(func(buf []byte) error {
		for i := range buf {
			buf[i] = next
		}
		next++
		return nil
	}))

	first, err := minter.Candidate()
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	if first != "FG-22222222" {
		t.Fatalf("expected FG-22222222 from zero bytes, got %s", first)
	}
	second, err := minter.Candidate()
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	if second != "FG-33333333" {
		t.Fatalf("expected FG-33333333, got %s", second)
	}
}
