package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/repositories"
)

func newRaffleServiceWith(t *testing.T, raffles repositories.RaffleRepository, entries repositories.EntryRepository) RaffleService {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewRaffleService(RaffleServiceDeps{
		Raffles:     raffles,
		Entries:     entries,
		Clock:       fixedClock(now),
		IDGenerator: func() string { return "FIXEDULID" },
	})
	if err != nil {
		t.Fatalf("new raffle service: %v", err)
	}
	return svc
}

func TestUpsertRaffleDefaultsAndValidation(t *testing.T) {
	var stored domain.Raffle
	raffles := &stubRaffleRepository{
		upsertFn: func(_ context.Context, raffle domain.Raffle) (domain.Raffle, error) {
			stored = raffle
			return raffle, nil
		},
	}
	svc := newRaffleServiceWith(t, raffles, &stubEntryRepository{})
	ctx := context.Background()

	raffle, err := svc.UpsertRaffle(ctx, UpsertRaffleCommand{
		Title:             "Spring Print",
		Slug:              "spring-print",
		TicketPrice:       500,
		MaxEntriesPerUser: 5,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if raffle.ID != "raf_FIXEDULID" {
		t.Fatalf("expected generated id, got %s", raffle.ID)
	}
	if stored.Status != domain.RaffleStatusDraft {
		t.Fatalf("expected draft default, got %s", stored.Status)
	}

	cases := map[string]UpsertRaffleCommand{
		"missing title":     {Slug: "x", TicketPrice: 500, MaxEntriesPerUser: 5},
		"bad slug":          {Title: "X", Slug: "Not Valid", TicketPrice: 500, MaxEntriesPerUser: 5},
		"zero price":        {Title: "X", Slug: "x", TicketPrice: 0, MaxEntriesPerUser: 5},
		"zero per-user cap": {Title: "X", Slug: "x", TicketPrice: 500},
		"negative max":      {Title: "X", Slug: "x", TicketPrice: 500, MaxEntriesPerUser: 5, MaxTickets: -1},
		"bad status":        {Title: "X", Slug: "x", TicketPrice: 500, MaxEntriesPerUser: 5, Status: "archived"},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.UpsertRaffle(ctx, cmd); !errors.Is(err, ErrRaffleInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestGetRaffleBySlug(t *testing.T) {
	raffles := &stubRaffleRepository{
		slugFn: func(_ context.Context, slug string) (domain.Raffle, error) {
			if slug == "spring-print" {
				return domain.Raffle{ID: "raf_1", Slug: slug}, nil
			}
			return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, "", nil)
		},
	}
	svc := newRaffleServiceWith(t, raffles, &stubEntryRepository{})
	ctx := context.Background()

	raffle, err := svc.GetRaffleBySlug(ctx, " Spring-Print ")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if raffle.ID != "raf_1" {
		t.Fatalf("unexpected raffle %s", raffle.ID)
	}

	if _, err := svc.GetRaffleBySlug(ctx, "missing"); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertRaffleSlugConflict(t *testing.T) {
	raffles := &stubRaffleRepository{
		upsertFn: func(context.Context, domain.Raffle) (domain.Raffle, error) {
			return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorSlugConflict, "", nil)
		},
	}
	svc := newRaffleServiceWith(t, raffles, &stubEntryRepository{})

	_, err := svc.UpsertRaffle(context.Background(), UpsertRaffleCommand{Title: "X", Slug: "spring-print", TicketPrice: 500, MaxEntriesPerUser: 5})
	if !errors.Is(err, ErrRaffleSlugConflict) {
		t.Fatalf("expected slug conflict, got %v", err)
	}
}

func TestAssignWinnerMapsErrors(t *testing.T) {
	raffles := &stubRaffleRepository{
		winnerFn: func(_ context.Context, raffleID, entryID string, _ time.Time) (domain.Raffle, error) {
			switch {
			case raffleID == "raf_gone":
				return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, "", nil)
			case entryID == "ent_gone":
				return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorEntryNotFound, "", nil)
			}
			return domain.Raffle{ID: raffleID, Status: domain.RaffleStatusClosed, WinnerEntryID: entryID}, nil
		},
	}
	svc := newRaffleServiceWith(t, raffles, &stubEntryRepository{})
	ctx := context.Background()

	raffle, err := svc.AssignWinner(ctx, "raf_1", "ent_1")
	if err != nil {
		t.Fatalf("assign winner: %v", err)
	}
	if raffle.Status != domain.RaffleStatusClosed || raffle.WinnerEntryID != "ent_1" {
		t.Fatalf("unexpected raffle %+v", raffle)
	}

	if _, err := svc.AssignWinner(ctx, "raf_gone", "ent_1"); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("expected raffle not found, got %v", err)
	}
	if _, err := svc.AssignWinner(ctx, "raf_1", "ent_gone"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
	if _, err := svc.AssignWinner(ctx, "", "ent_1"); !errors.Is(err, ErrRaffleInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAddManualEntry(t *testing.T) {
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
	var inserted domain.Entry
	entries := &stubEntryRepository{
		insertFn: func(_ context.Context, entry domain.Entry) (domain.Entry, error) {
			inserted = entry
			return entry, nil
		},
	}
	svc := newRaffleServiceWith(t, raffles, entries)
	ctx := context.Background()

	entry, err := svc.AddManualEntry(ctx, ManualEntryCommand{
		RaffleID:    "raf_1",
		Email:       "Winner@Example.com",
		TicketCount: 2,
		Variant:     "framed",
	})
	if err != nil {
		t.Fatalf("add manual entry: %v", err)
	}
	if entry.ID != "ent_FIXEDULID" {
		t.Fatalf("expected generated id, got %s", entry.ID)
	}
	if inserted.Source != domain.EntrySourceManual || inserted.Email != "winner@example.com" || inserted.TicketCount != 2 {
		t.Fatalf("unexpected entry %+v", inserted)
	}
	if inserted.PaymentRef != "" {
		t.Fatalf("manual entries carry no payment reference, got %q", inserted.PaymentRef)
	}

	if _, err := svc.AddManualEntry(ctx, ManualEntryCommand{RaffleID: "raf_gone", Email: "a@b.co", TicketCount: 1}); !errors.Is(err, ErrRaffleNotFound) {
		t.Fatalf("expected raffle not found, got %v", err)
	}
	if _, err := svc.AddManualEntry(ctx, ManualEntryCommand{RaffleID: "raf_1", Email: "bad", TicketCount: 1}); !errors.Is(err, ErrRaffleInvalidInput) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := svc.AddManualEntry(ctx, ManualEntryCommand{RaffleID: "raf_1", Email: "a@b.co", TicketCount: 1, Variant: "gilded"}); !errors.Is(err, ErrRaffleVariantInvalid) {
		t.Fatalf("expected variant rejection, got %v", err)
	}
}

func TestRemoveEntryMapsNotFound(t *testing.T) {
	entries := &stubEntryRepository{
		deleteFn: func(_ context.Context, entryID string) error {
			if entryID == "ent_gone" {
				return repositories.NewRaffleError(repositories.RaffleErrorEntryNotFound, "", nil)
			}
			return nil
		},
	}
	svc := newRaffleServiceWith(t, &stubRaffleRepository{}, entries)
	ctx := context.Background()

	if err := svc.RemoveEntry(ctx, "ent_1"); err != nil {
		t.Fatalf("remove entry: %v", err)
	}
	if err := svc.RemoveEntry(ctx, "ent_gone"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
	if err := svc.RemoveEntry(ctx, " "); !errors.Is(err, ErrRaffleInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListRafflesValidatesStatus(t *testing.T) {
	var gotFilter repositories.RaffleListFilter
	raffles := &stubRaffleRepository{
		listFn: func(_ context.Context, filter repositories.RaffleListFilter) ([]domain.Raffle, error) {
			gotFilter = filter
			return []domain.Raffle{{ID: "raf_1"}}, nil
		},
	}
	svc := newRaffleServiceWith(t, raffles, &stubEntryRepository{})
	ctx := context.Background()

	listed, err := svc.ListRaffles(ctx, domain.RaffleStatusActive)
	if err != nil {
		t.Fatalf("list raffles: %v", err)
	}
	if len(listed) != 1 || gotFilter.Status != domain.RaffleStatusActive {
		t.Fatalf("unexpected listing %v filter %+v", listed, gotFilter)
	}

	if _, err := svc.ListRaffles(ctx, "archived"); !errors.Is(err, ErrRaffleInvalidInput) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}
