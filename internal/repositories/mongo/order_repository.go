package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	ordersCollection = "orders"
	orderNumberIndex = "orderNo_unique"
	maxMutateRetries = 5
)

var errConcurrentUpdate = errors.New("mongo: document modified concurrently")

// OrderRepository stores orders in MongoDB. A unique index on orderNo guards order numbers.
type OrderRepository struct {
	collection *mongo.Collection
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository binds the repository to the orders collection of db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{collection: db.Collection(ordersCollection)}
}

// CreateIndexes installs the order number uniqueness and listing indexes.
func (r *OrderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNo", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(orderNumberIndex),
		},
		{Keys: bson.D{{Key: "customer.email", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo: create order indexes: %w", err)
	}
	return nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.collection.InsertOne(ctx, newOrderRecord(order))
	if isDuplicateKeyOn(err, orderNumberIndex) {
		return conflict("orders.insert", fmt.Errorf("%w: %s", repositories.ErrOrderNumberTaken, order.OrderNo))
	}
	return wrap("orders.insert", err)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var record orderRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, notFound("orders.find", fmt.Errorf("order %s not found", orderID))
	}
	if err != nil {
		return domain.Order{}, wrap("orders.find", err)
	}
	return record.toDomain(), nil
}

// List returns orders newest first. FullName is matched as a case-insensitive substring.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	page := filter.Page.Normalize()
	query := bson.M{}
	if name := strings.TrimSpace(filter.FullName); name != "" {
		query["customer.fullName"] = bson.M{"$regex": regexp.QuoteMeta(name), "$options": "i"}
	}
	if email := strings.ToLower(strings.TrimSpace(filter.Email)); email != "" {
		query["customer.email"] = email
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Order]{}, wrap("orders.count", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return domain.Page[domain.Order]{}, wrap("orders.list", err)
	}
	var records []orderRecord
	if err := cursor.All(ctx, &records); err != nil {
		return domain.Page[domain.Order]{}, wrap("orders.list", err)
	}

	items := make([]domain.Order, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return domain.Page[domain.Order]{Items: items, Info: domain.NewPageInfo(page, total)}, nil
}

// Mutate performs an optimistic read-modify-write guarded by the record version.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, mutate repositories.OrderMutation) (domain.Order, error) {
	if mutate == nil {
		return domain.Order{}, errors.New("order repository: mutation is required")
	}
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		var record orderRecord
		err := r.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&record)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Order{}, notFound("orders.mutate", fmt.Errorf("order %s not found", orderID))
		}
		if err != nil {
			return domain.Order{}, wrap("orders.mutate", err)
		}

		order := record.toDomain()
		if err := mutate(&order); err != nil {
			return domain.Order{}, err
		}
		order.ID = record.ID
		order.OrderNo = record.OrderNo
		order.CreatedAt = record.CreatedAt

		next := newOrderRecord(order)
		next.Version = record.Version + 1
		result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": orderID, "version": record.Version}, next)
		if err != nil {
			return domain.Order{}, wrap("orders.mutate", err)
		}
		if result.MatchedCount == 1 {
			return order, nil
		}
	}
	return domain.Order{}, conflict("orders.mutate", errConcurrentUpdate)
}

type orderRecord struct {
	ID             string            `bson:"_id"`
	OrderNo        string            `bson:"orderNo"`
	Status         string            `bson:"status"`
	Customer       customerRecord    `bson:"customer"`
	PaymentMethod  string            `bson:"paymentMethod"`
	ShippingMethod string            `bson:"shippingMethod"`
	ShippingCost   int64             `bson:"shippingCost"`
	TotalAmount    int64             `bson:"totalAmount"`
	Items          []orderItemRecord `bson:"items"`
	TrackingCode   string            `bson:"trackingCode,omitempty"`
	DeliveredAt    *time.Time        `bson:"deliveredAt,omitempty"`
	CreatedAt      time.Time         `bson:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt"`
	Version        int64             `bson:"version"`
}

type customerRecord struct {
	FullName string `bson:"fullName"`
	Email    string `bson:"email"`
	Phone    string `bson:"phone"`
	Address  string `bson:"address"`
}

type orderItemRecord struct {
	ProductID string `bson:"productId"`
	Quantity  int    `bson:"quantity"`
	UnitPrice int64  `bson:"unitPrice"`
}

func newOrderRecord(order domain.Order) orderRecord {
	items := make([]orderItemRecord, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemRecord(item))
	}
	return orderRecord{
		ID:      order.ID,
		OrderNo: order.OrderNo,
		Status:  string(order.Status),
		Customer: customerRecord{
			FullName: order.Customer.FullName,
			Email:    strings.ToLower(order.Customer.Email),
			Phone:    order.Customer.Phone,
			Address:  order.Customer.Address,
		},
		PaymentMethod:  string(order.PaymentMethod),
		ShippingMethod: string(order.ShippingMethod),
		ShippingCost:   order.ShippingCost,
		TotalAmount:    order.TotalAmount,
		Items:          items,
		TrackingCode:   order.TrackingCode,
		DeliveredAt:    utcPtr(order.DeliveredAt),
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
}

func (r orderRecord) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem(item))
	}
	return domain.Order{
		ID:             r.ID,
		OrderNo:        r.OrderNo,
		Status:         domain.OrderStatus(r.Status),
		Customer:       domain.Customer(r.Customer),
		PaymentMethod:  domain.PaymentMethod(r.PaymentMethod),
		ShippingMethod: domain.ShippingMethod(r.ShippingMethod),
		ShippingCost:   r.ShippingCost,
		TotalAmount:    r.TotalAmount,
		Items:          items,
		TrackingCode:   r.TrackingCode,
		DeliveredAt:    utcPtr(r.DeliveredAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
