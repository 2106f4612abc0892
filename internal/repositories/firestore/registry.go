package firestore

import (
	"context"
	"errors"

	"google.golang.org/api/iterator"

	pfirestore "github.com/Roohan-gm/shopblizz-backend/internal/platform/firestore"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

// Registry bundles the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	products *ProductRepository
	users    *UserRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the Firestore repositories sharing provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, orders: orders, products: products, users: users}, nil
}

func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Users() repositories.UserRepository       { return r.users }

// Ping reads at most one product to confirm the database is reachable.
func (r *Registry) Ping(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	iter := client.Collection(productsCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError("firestore.ping", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
