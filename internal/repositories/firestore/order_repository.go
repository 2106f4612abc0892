package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	pfirestore "github.com/Roohan-gm/shopblizz-backend/internal/platform/firestore"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	ordersCollection       = "orders"
	orderNumbersCollection = "orderNumbers"

	// Checkout retries a taken number itself, so one insert attempt stays well inside the request budget.
	orderInsertTimeout = 5 * time.Second
)

// OrderRepository stores orders in the orders collection. Order number uniqueness is held by
// a reservation document per number in orderNumbers, created in the same transaction.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	numbers  *pfirestore.BaseRepository[orderNumberDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil),
		numbers:  pfirestore.NewBaseRepository[orderNumberDocument](provider, orderNumbersCollection, nil),
	}, nil
}

// Insert writes a new order. An order number held by another order yields a conflict wrapping
// repositories.ErrOrderNumberTaken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if strings.TrimSpace(order.OrderNo) == "" {
		return errors.New("order repository: order number is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		numberRef, err := r.numbers.DocumentRef(ctx, order.OrderNo)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}

		if _, err := tx.Get(numberRef); err == nil {
			return pfirestore.Conflict("orders.insert", fmt.Errorf("%w: %s", repositories.ErrOrderNumberTaken, order.OrderNo))
		} else if !pfirestore.IsNotFoundStatus(err) {
			return err
		}

		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		return tx.Create(numberRef, orderNumberDocument{OrderID: order.ID, CreatedAt: order.CreatedAt.UTC()})
	}, pfirestore.WithTxTimeout(orderInsertTimeout))
	if pfirestore.IsAlreadyExists(err) {
		// Lost a race with a concurrent insert of the same number between read and commit.
		return pfirestore.Conflict("orders.insert", fmt.Errorf("%w: %s", repositories.ErrOrderNumberTaken, order.OrderNo))
	}
	return pfirestore.WrapError("orders.insert", err)
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first. Email and status filters run in Firestore. A full name
// filter requires a substring match that Firestore cannot index, so the filtered candidate
// set is scanned and paginated in memory.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	page := filter.Page.Normalize()
	build := func(q firestore.Query) firestore.Query {
		if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
			q = q.Where("customer.email", "==", email)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}

	needle := strings.ToLower(strings.TrimSpace(filter.FullName))
	if needle == "" {
		docs, total, err := r.orders.Page(ctx, build, page.Offset(), page.Limit)
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}
		return domain.Page[domain.Order]{Items: ordersFromDocs(docs), Info: domain.NewPageInfo(page, total)}, nil
	}

	docs, err := r.orders.Query(ctx, build)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	matched := make([]pfirestore.Document[orderDocument], 0, len(docs))
	for _, doc := range docs {
		if strings.Contains(doc.Data.CustomerNameLower, needle) {
			matched = append(matched, doc)
		}
	}
	return domain.Page[domain.Order]{
		Items: ordersFromDocs(sliceWindow(matched, page)),
		Info:  domain.NewPageInfo(page, int64(len(matched))),
	}, nil
}

// Mutate applies mutate to the stored order inside a transaction and persists the result.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, mutate repositories.OrderMutation) (domain.Order, error) {
	if mutate == nil {
		return domain.Order{}, errors.New("order repository: mutation is required")
	}
	var (
		updated   domain.Order
		mutateErr error
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		doc, err := r.orders.Decode(snap)
		if err != nil {
			return err
		}

		order := doc.Data.toDomain(doc.ID)
		if mutateErr = mutate(&order); mutateErr != nil {
			return mutateErr
		}
		order.ID = doc.ID
		order.OrderNo = doc.Data.OrderNo
		order.CreatedAt = doc.Data.CreatedAt
		updated = order
		return tx.Set(ref, newOrderDocument(order))
	})
	if mutateErr != nil {
		return domain.Order{}, mutateErr
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mutate", err)
	}
	return updated, nil
}

type orderNumberDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type orderDocument struct {
	OrderNo           string              `firestore:"orderNo"`
	Status            string              `firestore:"status"`
	Customer          customerDocument    `firestore:"customer"`
	CustomerNameLower string              `firestore:"customerNameLower"`
	PaymentMethod     string              `firestore:"paymentMethod"`
	ShippingMethod    string              `firestore:"shippingMethod"`
	ShippingCost      int64               `firestore:"shippingCost"`
	TotalAmount       int64               `firestore:"totalAmount"`
	Items             []orderItemDocument `firestore:"items"`
	TrackingCode      string              `firestore:"trackingCode,omitempty"`
	DeliveredAt       *time.Time          `firestore:"deliveredAt,omitempty"`
	CreatedAt         time.Time           `firestore:"createdAt"`
	UpdatedAt         time.Time           `firestore:"updatedAt"`
}

type customerDocument struct {
	FullName string `firestore:"fullName"`
	Email    string `firestore:"email"`
	Phone    string `firestore:"phone"`
	Address  string `firestore:"address"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return orderDocument{
		OrderNo: order.OrderNo,
		Status:  string(order.Status),
		Customer: customerDocument{
			FullName: order.Customer.FullName,
			Email:    strings.ToLower(order.Customer.Email),
			Phone:    order.Customer.Phone,
			Address:  order.Customer.Address,
		},
		CustomerNameLower: strings.ToLower(order.Customer.FullName),
		PaymentMethod:     string(order.PaymentMethod),
		ShippingMethod:    string(order.ShippingMethod),
		ShippingCost:      order.ShippingCost,
		TotalAmount:       order.TotalAmount,
		Items:             items,
		TrackingCode:      order.TrackingCode,
		DeliveredAt:       utcPtr(order.DeliveredAt),
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return domain.Order{
		ID:      id,
		OrderNo: d.OrderNo,
		Status:  domain.OrderStatus(d.Status),
		Customer: domain.Customer{
			FullName: d.Customer.FullName,
			Email:    d.Customer.Email,
			Phone:    d.Customer.Phone,
			Address:  d.Customer.Address,
		},
		PaymentMethod:  domain.PaymentMethod(d.PaymentMethod),
		ShippingMethod: domain.ShippingMethod(d.ShippingMethod),
		ShippingCost:   d.ShippingCost,
		TotalAmount:    d.TotalAmount,
		Items:          items,
		TrackingCode:   d.TrackingCode,
		DeliveredAt:    utcPtr(d.DeliveredAt),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func ordersFromDocs(docs []pfirestore.Document[orderDocument]) []domain.Order {
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out
}
