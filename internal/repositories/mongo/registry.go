package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

// Registry bundles the MongoDB repositories behind repositories.Registry.
type Registry struct {
	db       *mongo.Database
	orders   *OrderRepository
	products *ProductRepository
	users    *UserRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories and ensures their indexes exist.
func NewRegistry(ctx context.Context, db *mongo.Database) (*Registry, error) {
	reg := &Registry{
		db:       db,
		orders:   NewOrderRepository(db),
		products: NewProductRepository(db),
		users:    NewUserRepository(db),
	}
	if err := reg.orders.CreateIndexes(ctx); err != nil {
		return nil, err
	}
	if err := reg.products.CreateIndexes(ctx); err != nil {
		return nil, err
	}
	if err := reg.users.CreateIndexes(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Users() repositories.UserRepository       { return r.users }

func (r *Registry) Ping(ctx context.Context) error {
	return wrap("mongo.ping", r.db.Client().Ping(ctx, readpref.Primary()))
}

func (r *Registry) Close(ctx context.Context) error {
	return r.db.Client().Disconnect(ctx)
}
