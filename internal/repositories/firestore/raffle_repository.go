package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/foxglove-goods/api/internal/domain"
	pfirestore "github.com/foxglove-goods/api/internal/platform/firestore"
	"github.com/foxglove-goods/api/internal/repositories"
)

const (
	rafflesCollection          = "raffles"
	raffleSlugRegistryCollName = "raffleSlugRegistry"
)

// RaffleRepository persists raffles and winner assignments, with a slug
// registry for unique public lookups.
type RaffleRepository struct {
	provider *pfirestore.Provider
	raffles  *pfirestore.BaseRepository[raffleDocument]
	entries  *pfirestore.BaseRepository[entryDocument]
	slugs    *pfirestore.BaseRepository[raffleSlugDocument]
}

// NewRaffleRepository constructs a Firestore-backed raffle repository.
func NewRaffleRepository(provider *pfirestore.Provider) (*RaffleRepository, error) {
	if provider == nil {
		return nil, errors.New("raffle repository requires firestore provider")
	}
	return &RaffleRepository{
		provider: provider,
		raffles:  pfirestore.NewBaseRepository[raffleDocument](provider, rafflesCollection, nil, nil),
		entries:  pfirestore.NewBaseRepository[entryDocument](provider, entriesCollection, nil, nil),
		slugs:    pfirestore.NewBaseRepository[raffleSlugDocument](provider, raffleSlugRegistryCollName, nil, nil),
	}, nil
}

func (r *RaffleRepository) FindByID(ctx context.Context, raffleID string) (domain.Raffle, error) {
	if r == nil || r.raffles == nil {
		return domain.Raffle{}, errors.New("raffle repository not initialised")
	}
	raffleID = strings.TrimSpace(raffleID)
	if raffleID == "" {
		return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "raffle lookup: id is required", nil)
	}

	doc, err := r.raffles.Get(ctx, raffleID)
	if err != nil {
		if isNotFound(err) {
			return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, fmt.Sprintf("raffle %s not found", raffleID), err)
		}
		return domain.Raffle{}, wrapRaffleError("raffles.get", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *RaffleRepository) FindBySlug(ctx context.Context, slug string) (domain.Raffle, error) {
	if r == nil || r.slugs == nil {
		return domain.Raffle{}, errors.New("raffle repository not initialised")
	}
	slug = normalizeSlug(slug)
	if slug == "" {
		return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "raffle lookup: slug is required", nil)
	}

	entry, err := r.slugs.Get(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorNotFound, fmt.Sprintf("raffle slug %s not found", slug), err)
		}
		return domain.Raffle{}, wrapRaffleError("raffles.findBySlug", err)
	}
	return r.FindByID(ctx, entry.Data.RaffleID)
}

func (r *RaffleRepository) List(ctx context.Context, filter repositories.RaffleListFilter) ([]domain.Raffle, error) {
	if r == nil || r.raffles == nil {
		return nil, errors.New("raffle repository not initialised")
	}

	docs, err := r.raffles.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, wrapRaffleError("raffles.list", err)
	}

	raffles := make([]domain.Raffle, 0, len(docs))
	for _, doc := range docs {
		raffles = append(raffles, doc.Data.toDomain(doc.ID))
	}
	return raffles, nil
}

// Upsert writes the raffle and claims its slug in the registry, releasing a
// previously held slug when it changes.
func (r *RaffleRepository) Upsert(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	if r == nil || r.provider == nil {
		return domain.Raffle{}, errors.New("raffle repository not initialised")
	}
	raffleID := strings.TrimSpace(raffle.ID)
	if raffleID == "" {
		return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "raffle upsert: id is required", nil)
	}
	slug := normalizeSlug(raffle.Slug)
	if slug == "" {
		return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "raffle upsert: slug is required", nil)
	}

	raffle.Slug = slug
	var saved domain.Raffle
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		raffleRef, err := r.raffles.DocumentRef(ctx, raffleID)
		if err != nil {
			return err
		}
		slugRef, err := r.slugs.DocumentRef(ctx, slug)
		if err != nil {
			return err
		}

		previousSlug := ""
		snap, err := tx.Get(raffleRef)
		switch {
		case err == nil:
			var existing raffleDocument
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("decode raffle %s: %w", raffleID, err)
			}
			previousSlug = existing.Slug
			if raffle.CreatedAt.IsZero() {
				raffle.CreatedAt = existing.CreatedAt
			}
		case status.Code(err) == codes.NotFound:
			// First write for this raffle.
		default:
			return err
		}

		slugSnap, err := tx.Get(slugRef)
		switch {
		case err == nil:
			var entry raffleSlugDocument
			if err := slugSnap.DataTo(&entry); err != nil {
				return fmt.Errorf("decode raffle slug %s: %w", slug, err)
			}
			if entry.RaffleID != raffleID {
				return repositories.NewRaffleError(repositories.RaffleErrorSlugConflict, fmt.Sprintf("slug %s already in use", slug), nil)
			}
		case status.Code(err) == codes.NotFound:
			if err := tx.Set(slugRef, raffleSlugDocument{RaffleID: raffleID, ClaimedAt: raffle.UpdatedAt.UTC()}); err != nil {
				return err
			}
		default:
			return err
		}

		if previousSlug != "" && previousSlug != slug {
			oldRef, err := r.slugs.DocumentRef(ctx, previousSlug)
			if err != nil {
				return err
			}
			if err := tx.Delete(oldRef); err != nil {
				return err
			}
		}

		doc := newRaffleDocument(raffle)
		if err := tx.Set(raffleRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(raffleID)
		return nil
	})
	if err != nil {
		return domain.Raffle{}, wrapRaffleError("raffles.upsert", err)
	}
	return saved, nil
}

// SetWinner records the winning entry and closes the raffle. The entry must
// belong to the raffle being drawn.
func (r *RaffleRepository) SetWinner(ctx context.Context, raffleID, entryID string, now time.Time) (domain.Raffle, error) {
	if r == nil || r.provider == nil {
		return domain.Raffle{}, errors.New("raffle repository not initialised")
	}
	raffleID = strings.TrimSpace(raffleID)
	entryID = strings.TrimSpace(entryID)
	if raffleID == "" || entryID == "" {
		return domain.Raffle{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "winner assignment: raffle id and entry id are required", nil)
	}

	var updated domain.Raffle
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		raffleRef, err := r.raffles.DocumentRef(ctx, raffleID)
		if err != nil {
			return err
		}
		entryRef, err := r.entries.DocumentRef(ctx, entryID)
		if err != nil {
			return err
		}

		raffleSnap, err := tx.Get(raffleRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewRaffleError(repositories.RaffleErrorNotFound, fmt.Sprintf("raffle %s not found", raffleID), err)
			}
			return err
		}
		var raffleDoc raffleDocument
		if err := raffleSnap.DataTo(&raffleDoc); err != nil {
			return fmt.Errorf("decode raffle %s: %w", raffleID, err)
		}

		entrySnap, err := tx.Get(entryRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewRaffleError(repositories.RaffleErrorEntryNotFound, fmt.Sprintf("entry %s not found", entryID), err)
			}
			return err
		}
		var entryDoc entryDocument
		if err := entrySnap.DataTo(&entryDoc); err != nil {
			return fmt.Errorf("decode entry %s: %w", entryID, err)
		}
		if entryDoc.RaffleID != raffleID {
			return repositories.NewRaffleError(repositories.RaffleErrorEntryNotFound, fmt.Sprintf("entry %s does not belong to raffle %s", entryID, raffleID), nil)
		}

		if err := tx.Update(raffleRef, []firestore.Update{
			{Path: "status", Value: string(domain.RaffleStatusClosed)},
			{Path: "winnerEntryId", Value: entryID},
			{Path: "winnerEmail", Value: entryDoc.Email},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return err
		}

		raffleDoc.Status = string(domain.RaffleStatusClosed)
		raffleDoc.WinnerEntryID = entryID
		raffleDoc.WinnerEmail = entryDoc.Email
		raffleDoc.UpdatedAt = now.UTC()
		updated = raffleDoc.toDomain(raffleID)
		return nil
	})
	if err != nil {
		return domain.Raffle{}, wrapRaffleError("raffles.setWinner", err)
	}
	return updated, nil
}

// Document types -------------------------------------------------------------

type raffleSlugDocument struct {
	RaffleID  string    `firestore:"raffleId"`
	ClaimedAt time.Time `firestore:"claimedAt"`
}

type raffleDocument struct {
	Title             string    `firestore:"title"`
	Slug              string    `firestore:"slug"`
	TicketPrice       int64     `firestore:"ticketPrice"`
	MaxEntriesPerUser int64     `firestore:"maxEntriesPerUser"`
	MaxTickets        int64     `firestore:"maxTickets"`
	ClosesAt          time.Time `firestore:"closesAt"`
	Status            string    `firestore:"status"`
	WinnerEntryID     string    `firestore:"winnerEntryId,omitempty"`
	WinnerEmail       string    `firestore:"winnerEmail,omitempty"`
	VariantOptions    []string  `firestore:"variantOptions,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func newRaffleDocument(r domain.Raffle) raffleDocument {
	return raffleDocument{
		Title:             strings.TrimSpace(r.Title),
		Slug:              normalizeSlug(r.Slug),
		TicketPrice:       r.TicketPrice,
		MaxEntriesPerUser: r.MaxEntriesPerUser,
		MaxTickets:        r.MaxTickets,
		ClosesAt:          r.ClosesAt.UTC(),
		Status:            string(r.Status),
		WinnerEntryID:     r.WinnerEntryID,
		WinnerEmail:       r.WinnerEmail,
		VariantOptions:    r.VariantOptions,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func (d raffleDocument) toDomain(id string) domain.Raffle {
	return domain.Raffle{
		ID:                id,
		Title:             d.Title,
		Slug:              d.Slug,
		TicketPrice:       d.TicketPrice,
		MaxEntriesPerUser: d.MaxEntriesPerUser,
		MaxTickets:        d.MaxTickets,
		ClosesAt:          d.ClosesAt,
		Status:            domain.RaffleStatus(d.Status),
		WinnerEntryID:     d.WinnerEntryID,
		WinnerEmail:       d.WinnerEmail,
		VariantOptions:    d.VariantOptions,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
