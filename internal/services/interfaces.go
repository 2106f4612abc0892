package services

import (
	"context"
	"io"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

// OrderService exposes order creation, lookup and lifecycle operations.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.OrderView, error)
	FindByCustomer(ctx context.Context, query CustomerQuery, page domain.PageRequest) (domain.Page[domain.Order], error)
	FindByStatus(ctx context.Context, status string, page domain.PageRequest) (domain.Page[domain.Order], error)
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, status string) (domain.Order, error)
	Cancel(ctx context.Context, orderID string) (domain.Order, error)
	Update(ctx context.Context, orderID string, patch OrderPatch) (domain.Order, error)
}

// CatalogService manages products and their lifecycle.
type CatalogService interface {
	Create(ctx context.Context, cmd CreateProductCommand) (domain.Product, error)
	Get(ctx context.Context, productID string) (domain.Product, error)
	Search(ctx context.Context, filter ProductFilter) (domain.Page[domain.Product], error)
	ListAvailable(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Product], error)
	ListByCategory(ctx context.Context, category string, page domain.PageRequest) (domain.Page[domain.Product], error)
	AdminList(ctx context.Context, filter AdminProductFilter) (domain.Page[domain.Product], error)
	Categories() []domain.Category
	Update(ctx context.Context, productID string, patch ProductPatch) (domain.Product, error)
	ReplaceImage(ctx context.Context, productID string, upload MediaUpload) (domain.Product, error)
	ToggleAvailability(ctx context.Context, productID string) (domain.Product, error)
	UpdateStock(ctx context.Context, productID string, quantity int) (domain.Product, error)
	SoftDelete(ctx context.Context, productID string) (domain.Product, error)
	Restore(ctx context.Context, productID string) (domain.Product, error)
}

// UserService manages the profile attached to a Firebase account.
type UserService interface {
	Register(ctx context.Context, cmd RegisterUserCommand) (domain.UserProfile, error)
	Current(ctx context.Context, uid string) (domain.UserProfile, error)
	UpdateAccount(ctx context.Context, uid string, patch AccountPatch) (domain.UserProfile, error)
	UpdateAvatar(ctx context.Context, uid string, upload MediaUpload) (domain.UserProfile, error)
}

// SystemService reports readiness and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.HealthReport, error)
}

// MediaUpload is an image submitted with a product.
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaStore hosts product images and user avatars.
type MediaStore interface {
	Store(ctx context.Context, upload MediaUpload) (domain.MediaAsset, error)
	Release(ctx context.Context, assetID string) error
}

// Notifier informs customers and operators about order activity. Implementations are
// invoked fire-and-forget and their failures never reach the caller of an order operation.
type Notifier interface {
	NotifyCustomer(ctx context.Context, notice OrderNotice) error
	NotifyOperations(ctx context.Context, notice OrderNotice) error
}

// ProductSnapshotCache caches the product projection joined onto order views.
type ProductSnapshotCache interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]domain.ProductSnapshot, error)
	SetMany(ctx context.Context, snapshots []domain.ProductSnapshot) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// CreateOrderCommand is the checkout payload. Monetary totals are never accepted from the caller.
type CreateOrderCommand struct {
	Customer       domain.Customer
	ShippingMethod string
	Items          []domain.OrderItem
}

// CustomerQuery selects orders by customer. At least one field is required.
type CustomerQuery struct {
	FullName string
	Email    string
}

// OrderPatch carries operator edits. The derived and identity fields are present only so that
// attempts to change them can be rejected explicitly.
type OrderPatch struct {
	TrackingCode *string
	TotalAmount  *int64
	ShippingCost *int64
	OrderNo      *string
}

// CreateProductCommand creates a catalog entry. Image is mandatory.
type CreateProductCommand struct {
	Name          string
	Description   string
	Category      string
	Price         int64
	StockQuantity int
	Image         MediaUpload
}

// ProductPatch is a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Name          *string
	Description   *string
	Category      *string
	Price         *int64
	StockQuantity *int
	IsAvailable   *bool
}

// ProductFilter drives public catalog search.
type ProductFilter struct {
	Query    string
	Category string
	Page     domain.PageRequest
}

// AdminProductFilter drives the operator product listing.
type AdminProductFilter struct {
	Query           string
	Category        string
	ShowDeleted     bool
	ShowUnavailable bool
	Page            domain.PageRequest
}

// RegisterUserCommand creates the profile of an authenticated account. Avatar is mandatory.
// Admin reflects the caller's verified role claim and is never taken from the request body.
type RegisterUserCommand struct {
	UID      string
	Username string
	Email    string
	Admin    bool
	Avatar   MediaUpload
}

// AccountPatch is a partial profile update. Nil fields are left unchanged.
type AccountPatch struct {
	Username *string
	Email    *string
}
