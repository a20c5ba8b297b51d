package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/foxglove-goods/api/internal/platform/firestore"
	"github.com/foxglove-goods/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider  *pfirestore.Provider
	products  *ProductRepository
	orders    *OrderRepository
	raffles   *RaffleRepository
	entries   *EntryRepository
	discounts *DiscountRepository
	health    repositories.HealthRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	raffles, err := NewRaffleRepository(provider)
	if err != nil {
		return nil, err
	}
	entries, err := NewEntryRepository(provider)
	if err != nil {
		return nil, err
	}
	discounts, err := NewDiscountRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		products:  products,
		orders:    orders,
		raffles:   raffles,
		entries:   entries,
		discounts: discounts,
		health:    health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository   { return r.products }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Raffles() repositories.RaffleRepository     { return r.raffles }
func (r *Registry) Entries() repositories.EntryRepository      { return r.entries }
func (r *Registry) Discounts() repositories.DiscountRepository { return r.discounts }
func (r *Registry) Health() repositories.HealthRepository      { return r.health }
