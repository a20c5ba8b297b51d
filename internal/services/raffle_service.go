package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/repositories"
)

var (
	// ErrRaffleInvalidInput indicates a malformed raffle or entry payload.
	ErrRaffleInvalidInput = errors.New("raffle: invalid input")
	// ErrEntryNotFound indicates the entry does not exist.
	ErrEntryNotFound = errors.New("raffle: entry not found")
	// ErrRaffleSlugConflict indicates the slug is already claimed by another raffle.
	ErrRaffleSlugConflict = errors.New("raffle: slug already in use")
)

// RaffleServiceDeps bundles collaborators required to construct a raffle service.
type RaffleServiceDeps struct {
	Raffles     repositories.RaffleRepository
	Entries     repositories.EntryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type raffleService struct {
	raffles repositories.RaffleRepository
	entries repositories.EntryRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

var _ RaffleService = (*raffleService)(nil)

// NewRaffleService wires dependencies into a RaffleService implementation.
func NewRaffleService(deps RaffleServiceDeps) (RaffleService, error) {
	if deps.Raffles == nil {
		return nil, errors.New("raffle service: raffle repository is required")
	}
	if deps.Entries == nil {
		return nil, errors.New("raffle service: entry repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &raffleService{
		raffles: deps.Raffles,
		entries: deps.Entries,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *raffleService) ListRaffles(ctx context.Context, status RaffleStatus) ([]Raffle, error) {
	if status != "" {
		if _, ok := parseRaffleStatus(string(status)); !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrRaffleInvalidInput, status)
		}
	}
	return s.raffles.List(ctx, repositories.RaffleListFilter{Status: status})
}

func (s *raffleService) GetRaffle(ctx context.Context, raffleID string) (Raffle, error) {
	raffleID = strings.TrimSpace(raffleID)
	if raffleID == "" {
		return Raffle{}, fmt.Errorf("%w: raffle id is required", ErrRaffleInvalidInput)
	}

	raffle, err := s.raffles.FindByID(ctx, raffleID)
	if err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorNotFound) {
			return Raffle{}, ErrRaffleNotFound
		}
		return Raffle{}, err
	}
	return raffle, nil
}

func (s *raffleService) GetRaffleBySlug(ctx context.Context, slug string) (Raffle, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Raffle{}, fmt.Errorf("%w: slug is required", ErrRaffleInvalidInput)
	}

	raffle, err := s.raffles.FindBySlug(ctx, slug)
	if err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorNotFound) {
			return Raffle{}, ErrRaffleNotFound
		}
		return Raffle{}, err
	}
	return raffle, nil
}

func (s *raffleService) UpsertRaffle(ctx context.Context, cmd UpsertRaffleCommand) (Raffle, error) {
	if err := validateUpsertRaffle(cmd); err != nil {
		return Raffle{}, err
	}
	status := cmd.Status
	if status == "" {
		status = domain.RaffleStatusDraft
	}

	now := s.clock()
	raffle := domain.Raffle{
		ID:                strings.TrimSpace(cmd.ID),
		Title:             strings.TrimSpace(cmd.Title),
		Slug:              strings.ToLower(strings.TrimSpace(cmd.Slug)),
		TicketPrice:       cmd.TicketPrice,
		MaxEntriesPerUser: cmd.MaxEntriesPerUser,
		MaxTickets:        cmd.MaxTickets,
		ClosesAt:          normaliseExpiry(cmd.ClosesAt),
		Status:            status,
		VariantOptions:    trimVariantOptions(cmd.VariantOptions),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if raffle.ID == "" {
		raffle.ID = "raf_" + s.newID()
	}

	stored, err := s.raffles.Upsert(ctx, raffle)
	if err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorSlugConflict) {
			return Raffle{}, fmt.Errorf("%w: %q", ErrRaffleSlugConflict, raffle.Slug)
		}
		return Raffle{}, err
	}

	s.logger(ctx, "raffles.upserted", map[string]any{
		"raffleId": stored.ID,
		"status":   string(stored.Status),
	})
	return stored, nil
}

// AssignWinner closes the raffle around the chosen entry. The draw itself
// happens outside the system; this records its result.
func (s *raffleService) AssignWinner(ctx context.Context, raffleID, entryID string) (Raffle, error) {
	raffleID = strings.TrimSpace(raffleID)
	entryID = strings.TrimSpace(entryID)
	if raffleID == "" || entryID == "" {
		return Raffle{}, fmt.Errorf("%w: raffle id and entry id are required", ErrRaffleInvalidInput)
	}

	raffle, err := s.raffles.SetWinner(ctx, raffleID, entryID, s.clock())
	if err != nil {
		switch {
		case repositories.RaffleErrorHasCode(err, repositories.RaffleErrorNotFound):
			return Raffle{}, ErrRaffleNotFound
		case repositories.RaffleErrorHasCode(err, repositories.RaffleErrorEntryNotFound):
			return Raffle{}, fmt.Errorf("%w: %v", ErrEntryNotFound, err)
		}
		return Raffle{}, err
	}

	s.logger(ctx, "raffles.winner.assigned", map[string]any{
		"raffleId": raffleID,
		"entryId":  entryID,
	})
	return raffle, nil
}

func (s *raffleService) AddManualEntry(ctx context.Context, cmd ManualEntryCommand) (Entry, error) {
	raffleID := strings.TrimSpace(cmd.RaffleID)
	if raffleID == "" {
		return Entry{}, fmt.Errorf("%w: raffle id is required", ErrRaffleInvalidInput)
	}
	email, err := normaliseEmail(cmd.Email)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: malformed email", ErrRaffleInvalidInput)
	}
	if cmd.TicketCount <= 0 {
		return Entry{}, fmt.Errorf("%w: ticket count must be > 0", ErrRaffleInvalidInput)
	}

	raffle, err := s.raffles.FindByID(ctx, raffleID)
	if err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorNotFound) {
			return Entry{}, ErrRaffleNotFound
		}
		return Entry{}, err
	}
	variant := strings.TrimSpace(cmd.Variant)
	if !raffle.HasVariant(variant) {
		return Entry{}, fmt.Errorf("%w: %q", ErrRaffleVariantInvalid, variant)
	}

	entry, err := s.entries.Insert(ctx, domain.Entry{
		ID:          "ent_" + s.newID(),
		RaffleID:    raffleID,
		Email:       email,
		TicketCount: int64(cmd.TicketCount),
		Variant:     variant,
		Source:      domain.EntrySourceManual,
		CreatedAt:   s.clock(),
	})
	if err != nil {
		return Entry{}, err
	}

	s.logger(ctx, "raffles.entry.added", map[string]any{
		"raffleId":    raffleID,
		"entryId":     entry.ID,
		"ticketCount": cmd.TicketCount,
	})
	return entry, nil
}

func (s *raffleService) RemoveEntry(ctx context.Context, entryID string) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return fmt.Errorf("%w: entry id is required", ErrRaffleInvalidInput)
	}

	if err := s.entries.Delete(ctx, entryID); err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorEntryNotFound) {
			return ErrEntryNotFound
		}
		return err
	}

	s.logger(ctx, "raffles.entry.removed", map[string]any{"entryId": entryID})
	return nil
}

func (s *raffleService) ListEntries(ctx context.Context, raffleID string, limit int) ([]Entry, error) {
	raffleID = strings.TrimSpace(raffleID)
	if raffleID == "" {
		return nil, fmt.Errorf("%w: raffle id is required", ErrRaffleInvalidInput)
	}
	return s.entries.ListByRaffle(ctx, raffleID, limit)
}

func validateUpsertRaffle(cmd UpsertRaffleCommand) error {
	if strings.TrimSpace(cmd.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrRaffleInvalidInput)
	}
	slug := strings.ToLower(strings.TrimSpace(cmd.Slug))
	if !productSlugPattern.MatchString(slug) {
		return fmt.Errorf("%w: malformed slug %q", ErrRaffleInvalidInput, cmd.Slug)
	}
	if cmd.TicketPrice <= 0 {
		return fmt.Errorf("%w: ticket price must be > 0", ErrRaffleInvalidInput)
	}
	if cmd.MaxEntriesPerUser < 1 {
		return fmt.Errorf("%w: max entries per user must be >= 1", ErrRaffleInvalidInput)
	}
	if cmd.MaxTickets < 0 {
		return fmt.Errorf("%w: max tickets must be >= 0", ErrRaffleInvalidInput)
	}
	if cmd.Status != "" {
		if _, ok := parseRaffleStatus(string(cmd.Status)); !ok {
			return fmt.Errorf("%w: unknown status %q", ErrRaffleInvalidInput, cmd.Status)
		}
	}
	return nil
}

func parseRaffleStatus(value string) (domain.RaffleStatus, bool) {
	switch domain.RaffleStatus(strings.ToLower(strings.TrimSpace(value))) {
	case domain.RaffleStatusDraft:
		return domain.RaffleStatusDraft, true
	case domain.RaffleStatusActive:
		return domain.RaffleStatusActive, true
	case domain.RaffleStatusClosed:
		return domain.RaffleStatusClosed, true
	default:
		return "", false
	}
}
