package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

var (
	// ErrOrderNumberTaken is wrapped by Insert when another order already holds the order number.
	ErrOrderNumberTaken = errors.New("repositories: order number already taken")
	// ErrProductNameTaken is wrapped when a non-deleted product already uses the name.
	ErrProductNameTaken = errors.New("repositories: product name already taken")
	// ErrUserExists is wrapped when the uid is already registered or another profile holds
	// the username or email.
	ErrUserExists = errors.New("repositories: user already exists")
)

// RepositoryError categorises storage failures for the service layer.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// Registry groups the repositories of one storage driver.
type Registry interface {
	Orders() OrderRepository
	Products() ProductRepository
	Users() UserRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// OrderListFilter narrows order listings. Empty fields do not filter.
// FullName matches as a case-insensitive substring, Email matches exactly.
type OrderListFilter struct {
	FullName string
	Email    string
	Status   domain.OrderStatus
	Page     domain.PageRequest
}

// OrderMutation edits an order inside a read-modify-write cycle. Returning an error aborts
// the write and is passed through to the caller unchanged.
type OrderMutation func(order *domain.Order) error

// OrderRepository persists orders. Orders are never hard-deleted.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	Mutate(ctx context.Context, orderID string, mutate OrderMutation) (domain.Order, error)
}

// ProductListFilter narrows product listings. Soft-deleted and unavailable products are
// excluded unless explicitly included.
type ProductListFilter struct {
	Query              string
	Category           domain.Category
	IncludeDeleted     bool
	IncludeUnavailable bool
	Page               domain.PageRequest
}

// ProductMutation edits a product inside a read-modify-write cycle.
type ProductMutation func(product *domain.Product) error

// ProductRepository persists catalog products. Name uniqueness among non-deleted products is
// enforced by Insert and Mutate.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.Page[domain.Product], error)
	Mutate(ctx context.Context, productID string, mutate ProductMutation) (domain.Product, error)
	ListPurgeable(ctx context.Context, deletedBefore time.Time, limit int) ([]domain.Product, error)
	// Delete hard-deletes a product that is still soft-deleted with DeletedAt before
	// deletedBefore. A missing or no longer eligible product is reported as not found.
	Delete(ctx context.Context, productID string, deletedBefore time.Time) error
}

// UserMutation edits a profile inside a read-modify-write cycle.
type UserMutation func(profile *domain.UserProfile) error

// UserRepository persists profiles keyed by Firebase uid. Username and email are unique across
// profiles; Insert and Mutate report a clash as a conflict wrapping ErrUserExists.
type UserRepository interface {
	Insert(ctx context.Context, profile domain.UserProfile) error
	FindByUID(ctx context.Context, uid string) (domain.UserProfile, error)
	Mutate(ctx context.Context, uid string, mutate UserMutation) (domain.UserProfile, error)
}

// HealthRepository checks backing services for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
