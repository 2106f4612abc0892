package domain

import (
	"regexp"
	"time"
)

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses returns the ordered list of known statuses.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// Valid reports whether the status belongs to the fixed enum.
func (s OrderStatus) Valid() bool {
	for _, candidate := range orderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ShippingMethod identifies the delivery speed chosen at checkout.
type ShippingMethod string

const (
	ShippingMethodStandard ShippingMethod = "standard"
	ShippingMethodFast     ShippingMethod = "fast"
)

// PaymentMethod identifies how the customer pays. Only cash on delivery is supported.
type PaymentMethod string

const PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"

// Category is a catalog grouping drawn from the configured category list.
type Category string

// DefaultCategories lists the categories the catalog ships with.
var DefaultCategories = []Category{
	"mobile batteries",
	"beauty cosmetics",
	"team sports",
	"fashion and wearables",
	"18+",
}

// OrderNumberPattern matches customer facing order numbers.
var OrderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`)

// MediaAsset references an image hosted by the media store.
type MediaAsset struct {
	URL     string
	AssetID string
}

// Product is a catalog entry.
type Product struct {
	ID            string
	Name          string
	Description   string
	Category      Category
	Price         int64
	StockQuantity int
	Image         MediaAsset
	IsAvailable   bool
	IsDeleted     bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot returns the denormalised fields displayed alongside orders.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		IsAvailable: p.IsAvailable,
	}
}

// ProductSnapshot is the read-side projection of a product joined onto order views.
type ProductSnapshot struct {
	ID          string
	Name        string
	Price       int64
	Image       MediaAsset
	Category    Category
	IsAvailable bool
}

// Customer holds the contact and delivery details captured at checkout.
type Customer struct {
	FullName string
	Email    string
	Phone    string
	Address  string
}

// OrderItem is a single line of an order. ProductID is a back-reference only.
type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Order is a persisted customer order.
type Order struct {
	ID             string
	OrderNo        string
	Status         OrderStatus
	Customer       Customer
	PaymentMethod  PaymentMethod
	ShippingMethod ShippingMethod
	ShippingCost   int64
	TotalAmount    int64
	Items          []OrderItem
	TrackingCode   string
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductIDs returns the distinct product ids referenced by the order items in order of appearance.
func (o Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID == "" {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// OrderView joins an order with the current snapshots of the products it references.
// Products missing from the catalog are simply absent from the map.
type OrderView struct {
	Order    Order
	Products map[string]ProductSnapshot
}
