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

const entriesCollection = "entries"

// EntryRepository persists raffle entries. Webhook-created entries use the
// payment reference as their document identity, which makes redeliveries a
// natural no-op.
type EntryRepository struct {
	provider *pfirestore.Provider
	entries  *pfirestore.BaseRepository[entryDocument]
}

// NewEntryRepository constructs a Firestore-backed entry repository.
func NewEntryRepository(provider *pfirestore.Provider) (*EntryRepository, error) {
	if provider == nil {
		return nil, errors.New("entry repository requires firestore provider")
	}
	return &EntryRepository{
		provider: provider,
		entries:  pfirestore.NewBaseRepository[entryDocument](provider, entriesCollection, nil, nil),
	}, nil
}

// CreateFromPayment inserts the entry keyed by its payment reference. When the
// document already exists the stored entry is returned with created=false.
func (r *EntryRepository) CreateFromPayment(ctx context.Context, entry domain.Entry) (domain.Entry, bool, error) {
	if r == nil || r.entries == nil {
		return domain.Entry{}, false, errors.New("entry repository not initialised")
	}
	paymentRef := strings.TrimSpace(entry.PaymentRef)
	if paymentRef == "" {
		return domain.Entry{}, false, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "entry create: payment reference is required", nil)
	}
	entry.ID = paymentRef

	ref, err := r.entries.DocumentRef(ctx, paymentRef)
	if err != nil {
		return domain.Entry{}, false, wrapRaffleError("entries.createFromPayment", err)
	}

	doc := newEntryDocument(entry)
	if _, err := ref.Create(ctx, doc); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return domain.Entry{}, false, wrapRaffleError("entries.createFromPayment", err)
		}
		existing, getErr := r.entries.Get(ctx, paymentRef)
		if getErr != nil {
			return domain.Entry{}, false, wrapRaffleError("entries.createFromPayment", getErr)
		}
		return existing.Data.toDomain(existing.ID), false, nil
	}
	return doc.toDomain(paymentRef), true, nil
}

// Insert stores a manually created entry under its own identifier.
func (r *EntryRepository) Insert(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	if r == nil || r.entries == nil {
		return domain.Entry{}, errors.New("entry repository not initialised")
	}
	entryID := strings.TrimSpace(entry.ID)
	if entryID == "" {
		return domain.Entry{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "entry insert: id is required", nil)
	}

	ref, err := r.entries.DocumentRef(ctx, entryID)
	if err != nil {
		return domain.Entry{}, wrapRaffleError("entries.insert", err)
	}
	doc := newEntryDocument(entry)
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Entry{}, wrapRaffleError("entries.insert", err)
	}
	return doc.toDomain(entryID), nil
}

func (r *EntryRepository) Delete(ctx context.Context, entryID string) error {
	if r == nil || r.entries == nil {
		return errors.New("entry repository not initialised")
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return repositories.NewRaffleError(repositories.RaffleErrorUnknown, "entry delete: id is required", nil)
	}

	if _, err := r.FindByID(ctx, entryID); err != nil {
		return err
	}
	if err := r.entries.Delete(ctx, entryID); err != nil {
		return wrapRaffleError("entries.delete", err)
	}
	return nil
}

func (r *EntryRepository) FindByID(ctx context.Context, entryID string) (domain.Entry, error) {
	if r == nil || r.entries == nil {
		return domain.Entry{}, errors.New("entry repository not initialised")
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return domain.Entry{}, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "entry lookup: id is required", nil)
	}

	doc, err := r.entries.Get(ctx, entryID)
	if err != nil {
		if isNotFound(err) {
			return domain.Entry{}, repositories.NewRaffleError(repositories.RaffleErrorEntryNotFound, fmt.Sprintf("entry %s not found", entryID), err)
		}
		return domain.Entry{}, wrapRaffleError("entries.get", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *EntryRepository) ListByRaffle(ctx context.Context, raffleID string, limit int) ([]domain.Entry, error) {
	if r == nil || r.entries == nil {
		return nil, errors.New("entry repository not initialised")
	}
	raffleID = strings.TrimSpace(raffleID)
	if raffleID == "" {
		return nil, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "entry list: raffle id is required", nil)
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("raffleId", "==", raffleID).OrderBy("createdAt", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, wrapRaffleError("entries.listByRaffle", err)
	}

	entries := make([]domain.Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.Data.toDomain(doc.ID))
	}
	return entries, nil
}

// SumTicketsForBuyer totals the tickets a buyer already holds in a raffle.
func (r *EntryRepository) SumTicketsForBuyer(ctx context.Context, raffleID, email string) (int, error) {
	if r == nil || r.entries == nil {
		return 0, errors.New("entry repository not initialised")
	}
	raffleID = strings.TrimSpace(raffleID)
	email = strings.ToLower(strings.TrimSpace(email))
	if raffleID == "" || email == "" {
		return 0, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "ticket sum: raffle id and email are required", nil)
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("raffleId", "==", raffleID).Where("email", "==", email)
	})
	if err != nil {
		return 0, wrapRaffleError("entries.sumTickets", err)
	}

	total := 0
	for _, doc := range docs {
		total += int(doc.Data.TicketCount)
	}
	return total, nil
}

// SumTickets totals every ticket sold in a raffle.
func (r *EntryRepository) SumTickets(ctx context.Context, raffleID string) (int, error) {
	if r == nil || r.entries == nil {
		return 0, errors.New("entry repository not initialised")
	}
	raffleID = strings.TrimSpace(raffleID)
	if raffleID == "" {
		return 0, repositories.NewRaffleError(repositories.RaffleErrorUnknown, "ticket sum: raffle id is required", nil)
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("raffleId", "==", raffleID)
	})
	if err != nil {
		return 0, wrapRaffleError("entries.sumTickets", err)
	}

	total := 0
	for _, doc := range docs {
		total += int(doc.Data.TicketCount)
	}
	return total, nil
}

// Document types -------------------------------------------------------------

type entryDocument struct {
	RaffleID    string    `firestore:"raffleId"`
	Email       string    `firestore:"email"`
	TicketCount int64     `firestore:"ticketCount"`
	Variant     string    `firestore:"variant,omitempty"`
	PaymentRef  string    `firestore:"paymentRef,omitempty"`
	Source      string    `firestore:"source"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func newEntryDocument(e domain.Entry) entryDocument {
	return entryDocument{
		RaffleID:    e.RaffleID,
		Email:       strings.ToLower(strings.TrimSpace(e.Email)),
		TicketCount: e.TicketCount,
		Variant:     e.Variant,
		PaymentRef:  e.PaymentRef,
		Source:      string(e.Source),
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func (d entryDocument) toDomain(id string) domain.Entry {
	return domain.Entry{
		ID:          id,
		RaffleID:    d.RaffleID,
		Email:       d.Email,
		TicketCount: d.TicketCount,
		Variant:     d.Variant,
		PaymentRef:  d.PaymentRef,
		Source:      domain.EntrySource(d.Source),
		CreatedAt:   d.CreatedAt,
	}
}

func wrapRaffleError(op string, err error) error {
	if err == nil {
		return nil
	}
	var raffleErr *repositories.RaffleError
	if errors.As(err, &raffleErr) {
		if raffleErr.Op == "" {
			raffleErr.Op = op
		}
		return raffleErr
	}
	return pfirestore.WrapError(op, err)
}
