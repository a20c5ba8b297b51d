package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/repositories"
)

type stubRaffleRepository struct {
	findFn   func(context.Context, string) (domain.Raffle, error)
	slugFn   func(context.Context, string) (domain.Raffle, error)
	listFn   func(context.Context, repositories.RaffleListFilter) ([]domain.Raffle, error)
	upsertFn func(context.Context, domain.Raffle) (domain.Raffle, error)
	winnerFn func(context.Context, string, string, time.Time) (domain.Raffle, error)
}

func (s *stubRaffleRepository) FindByID(ctx context.Context, id string) (domain.Raffle, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, "", nil)
}

func (s *stubRaffleRepository) FindBySlug(ctx context.Context, slug string) (domain.Raffle, error) {
	if s.slugFn != nil {
		return s.slugFn(ctx, slug)
	}
	return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, "", nil)
}

func (s *stubRaffleRepository) List(ctx context.Context, filter repositories.RaffleListFilter) ([]domain.Raffle, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubRaffleRepository) Upsert(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, raffle)
	}
	return raffle, nil
}

func (s *stubRaffleRepository) SetWinner(ctx context.Context, raffleID, entryID string, now time.Time) (domain.Raffle, error) {
	if s.winnerFn != nil {
		return s.winnerFn(ctx, raffleID, entryID, now)
	}
	return domain.Raffle{}, nil
}

type stubEntryRepository struct {
	createFn func(context.Context, domain.Entry) (domain.Entry, bool, error)
	insertFn func(context.Context, domain.Entry) (domain.Entry, error)
	deleteFn func(context.Context, string) error
	findFn   func(context.Context, string) (domain.Entry, error)
	listFn   func(context.Context, string, int) ([]domain.Entry, error)
	sumFn    func(context.Context, string, string) (int, error)
	sumAllFn func(context.Context, string) (int, error)
}

func (s *stubEntryRepository) CreateFromPayment(ctx context.Context, entry domain.Entry) (domain.Entry, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, entry)
	}
	return entry, true, nil
}

func (s *stubEntryRepository) Insert(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	if s.insertFn != nil {
		return s.insertFn(ctx, entry)
	}
	return entry, nil
}

func (s *stubEntryRepository) Delete(ctx context.Context, entryID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, entryID)
	}
	return nil
}

func (s *stubEntryRepository) FindByID(ctx context.Context, entryID string) (domain.Entry, error) {
	if s.findFn != nil {
		return s.findFn(ctx, entryID)
	}
	return domain.Entry{}, repositories.NewRaffleError(repositories.RaffleErrorEntryNotFound, "", nil)
}

func (s *stubEntryRepository) ListByRaffle(ctx context.Context, raffleID string, limit int) ([]domain.Entry, error) {
	if s.listFn != nil {
		return s.listFn(ctx, raffleID, limit)
	}
	return nil, nil
}

func (s *stubEntryRepository) SumTicketsForBuyer(ctx context.Context, raffleID, email string) (int, error) {
	if s.sumFn != nil {
		return s.sumFn(ctx, raffleID, email)
	}
	return 0, nil
}

func (s *stubEntryRepository) SumTickets(ctx context.Context, raffleID string) (int, error) {
	if s.sumAllFn != nil {
		return s.sumAllFn(ctx, raffleID)
	}
	return 0, nil
}

type stubPaymentProvider struct {
	createFn func(context.Context, payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	verifyFn func([]byte, string) (payments.WebhookEvent, error)
	requests []payments.CheckoutSessionRequest
}

func (s *stubPaymentProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	s.requests = append(s.requests, req)
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return payments.CheckoutSession{ID: "cs_stub", RedirectURL: "https://checkout.example.com/cs_stub"}, nil
}

func (s *stubPaymentProvider) VerifyWebhook(payload []byte, signature string) (payments.WebhookEvent, error) {
	if s.verifyFn != nil {
		return s.verifyFn(payload, signature)
	}
	return payments.WebhookEvent{}, nil
}

func openRaffle(now time.Time) domain.Raffle {
	return domain.Raffle{
		ID:                "raf_1",
		Title:             "Spring Print",
		Slug:              "spring-print",
		TicketPrice:       500,
		MaxEntriesPerUser: 5,
		Status:            domain.RaffleStatusActive,
		ClosesAt:          now.Add(24 * time.Hour),
		VariantOptions:    []string{"framed", "unframed"},
	}
}

func newCheckoutServiceWith(t *testing.T, raffles repositories.RaffleRepository, entries repositories.EntryRepository, provider payments.Provider, now time.Time) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Raffles:       raffles,
		Entries:       entries,
		Payments:      provider,
		PublicBaseURL: "https://shop.example.com/",
		Clock:         fixedClock(now),
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return svc
}

func TestCreateRaffleSessionBuildsMetadataContract(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raffle := openRaffle(now)
	raffles := &stubRaffleRepository{
		findFn: func(context.Context, string) (domain.Raffle, error) { return raffle, nil },
	}
	provider := &stubPaymentProvider{}
	svc := newCheckoutServiceWith(t, raffles, &stubEntryRepository{}, provider, now)

	redirect, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{
		RaffleID:    "raf_1",
		Email:       "Buyer@Example.com",
		TicketCount: 3,
		Variant:     "framed",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if redirect.SessionID != "cs_stub" {
		t.Fatalf("unexpected session id %s", redirect.SessionID)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("expected one session request, got %d", len(provider.requests))
	}
	req := provider.requests[0]
	meta := req.Metadata
	if meta[payments.MetadataKeyKind] != payments.CheckoutKindRaffle {
		t.Fatalf("expected raffle kind, got %s", meta[payments.MetadataKeyKind])
	}
	if meta[payments.MetadataKeyRaffleID] != "raf_1" || meta[payments.MetadataKeyTicketCount] != "3" {
		t.Fatalf("metadata incomplete: %+v", meta)
	}
	if meta[payments.MetadataKeyEmail] != "buyer@example.com" {
		t.Fatalf("expected lowercased email, got %s", meta[payments.MetadataKeyEmail])
	}
	if meta[payments.MetadataKeyVariant] != "framed" {
		t.Fatalf("expected variant metadata, got %+v", meta)
	}
	if len(req.Items) != 1 || req.Items[0].Quantity != 3 || req.Items[0].Amount != 500 {
		t.Fatalf("unexpected line items: %+v", req.Items)
	}
	if req.SuccessURL != "https://shop.example.com/raffles/spring-print/thanks" {
		t.Fatalf("unexpected success url %s", req.SuccessURL)
	}
}

func TestCreateRaffleSessionValidation(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raffle := openRaffle(now)
	raffles := &stubRaffleRepository{
		findFn: func(_ context.Context, id string) (domain.Raffle, error) {
			if id == "raf_1" {
				return raffle, nil
			}
			return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, "", nil)
		},
	}
	svc := newCheckoutServiceWith(t, raffles, &stubEntryRepository{}, &stubPaymentProvider{}, now)
	ctx := context.Background()

	if _, err := svc.CreateRaffleSession(ctx, RaffleCheckoutCommand{RaffleID: "raf_1", Email: "not-an-email", TicketCount: 1}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid email rejection, got %v", err)
	}
	if _, err := svc.CreateRaffleSession(ctx, RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 0}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected zero tickets rejection, got %v", err)
	}
	if _, err := svc.CreateRaffleSession(ctx, RaffleCheckoutCommand{RaffleID: "raf_missing", Email: "a@b.co", TicketCount: 1}); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.CreateRaffleSession(ctx, RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 1, Variant: "gilded"}); !errors.Is(err, ErrRaffleVariantInvalid) {
		t.Fatalf("expected variant rejection, got %v", err)
	}
}

func TestCreateRaffleSessionClosedRaffle(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	past := openRaffle(now)
	past.ClosesAt = now.Add(-time.Minute)
	drawn := openRaffle(now)
	drawn.Status = domain.RaffleStatusClosed

	for name, raffle := range map[string]domain.Raffle{"past deadline": past, "closed status": drawn} {
		t.Run(name, func(t *testing.T) {
			raffles := &stubRaffleRepository{
				findFn: func(context.Context, string) (domain.Raffle, error) { return raffle, nil },
			}
			svc := newCheckoutServiceWith(t, raffles, &stubEntryRepository{}, &stubPaymentProvider{}, now)

			_, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 1})
			if !errors.Is(err, ErrRaffleClosed) {
				t.Fatalf("expected closed raffle rejection, got %v", err)
			}
		})
	}
}

func TestCreateRaffleSessionTicketCap(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raffle := openRaffle(now)
	raffles := &stubRaffleRepository{
		findFn: func(context.Context, string) (domain.Raffle, error) { return raffle, nil },
	}

	entries := &stubEntryRepository{
		sumFn: func(context.Context, string, string) (int, error) { return 4, nil },
	}
	svc := newCheckoutServiceWith(t, raffles, entries, &stubPaymentProvider{}, now)

	_, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 2, Variant: "framed"})
	if !errors.Is(err, ErrTicketLimitExceeded) {
		t.Fatalf("expected cap rejection, got %v", err)
	}

	// Exactly at the cap is fine.
	if _, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 1, Variant: "framed"}); err != nil {
		t.Fatalf("expected session at cap, got %v", err)
	}
}

func TestCreateRaffleSessionTotalCap(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raffle := openRaffle(now)
	raffle.MaxTickets = 100
	raffles := &stubRaffleRepository{
		findFn: func(context.Context, string) (domain.Raffle, error) { return raffle, nil },
	}
	entries := &stubEntryRepository{
		sumAllFn: func(context.Context, string) (int, error) { return 99, nil },
	}
	svc := newCheckoutServiceWith(t, raffles, entries, &stubPaymentProvider{}, now)

	_, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 2, Variant: "framed"})
	if !errors.Is(err, ErrRaffleSoldOut) {
		t.Fatalf("expected sold out rejection, got %v", err)
	}

	if _, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 1, Variant: "framed"}); err != nil {
		t.Fatalf("expected last ticket to sell, got %v", err)
	}
}

func TestCreateRaffleSessionCapLookupFailureIsBestEffort(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raffle := openRaffle(now)
	raffles := &stubRaffleRepository{
		findFn: func(context.Context, string) (domain.Raffle, error) { return raffle, nil },
	}
	entries := &stubEntryRepository{
		sumFn: func(context.Context, string, string) (int, error) {
			return 0, errors.New("query timeout")
		},
	}
	svc := newCheckoutServiceWith(t, raffles, entries, &stubPaymentProvider{}, now)

	if _, err := svc.CreateRaffleSession(context.Background(), RaffleCheckoutCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 1, Variant: "framed"}); err != nil {
		t.Fatalf("expected session despite cap lookup failure, got %v", err)
	}
}
