package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	defaultOrderNumberAttempts = 3

	maxCustomerNameLength    = 2000
	maxCustomerAddressLength = 2000
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phonePattern = regexp.MustCompile(`^\+92\d{10,12}$`)
)

// OrderServiceDeps bundles the collaborators of the order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Pricing  *PricingEngine
	Notifier Notifier
	Cache    ProductSnapshotCache
	Clock    func() time.Time
	IDGen    func() string
	Logger   func(context.Context, string, map[string]any)
	// NumberAttempts bounds order number generation. Defaults to 3.
	NumberAttempts int
}

type orderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	pricing  *PricingEngine
	notifier Notifier
	cache    ProductSnapshotCache
	states   OrderStateMachine
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
	attempts int
	policy   *bluemonday.Policy
	lookups  singleflight.Group // collapses concurrent cache misses for the same products
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires the order service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	attempts := deps.NumberAttempts
	if attempts <= 0 {
		attempts = defaultOrderNumberAttempts
	}
	return &orderService{
		orders:   deps.Orders,
		products: deps.Products,
		pricing:  deps.Pricing,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		logger:   logger,
		attempts: attempts,
		policy:   bluemonday.StrictPolicy(),
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	customer, err := s.normalizeCustomer(cmd.Customer)
	if err != nil {
		return domain.Order{}, err
	}
	method := domain.ShippingMethod(strings.ToLower(strings.TrimSpace(cmd.ShippingMethod)))
	items := make([]domain.OrderItem, len(cmd.Items))
	for i, item := range cmd.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			return domain.Order{}, invalid(fmt.Sprintf("items[%d].product", i), "product is required")
		}
		items[i] = item
	}

	priced, err := s.pricing.Price(OrderDraft{Items: items, ShippingMethod: method})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.ensureProductsExist(ctx, items); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:             s.newID(),
		Status:         domain.OrderStatusPending,
		Customer:       customer,
		PaymentMethod:  domain.PaymentMethodCashOnDelivery,
		ShippingMethod: method,
		ShippingCost:   priced.ShippingCost,
		TotalAmount:    priced.TotalAmount,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		number, err := s.pricing.NextOrderNumber()
		if err != nil {
			return domain.Order{}, err
		}
		order.OrderNo = number

		err = s.orders.Insert(ctx, order)
		if err == nil {
			s.logger(ctx, orderEventCreated, map[string]any{
				"orderId":  order.ID,
				"orderNo":  order.OrderNo,
				"total":    order.TotalAmount,
				"attempts": attempt,
			})
			s.notify(ctx, orderEventCreated, order)
			return order, nil
		}
		if !errors.Is(err, repositories.ErrOrderNumberTaken) {
			return domain.Order{}, mapRepositoryError(err)
		}
		s.logger(ctx, "order.number.collision", map[string]any{
			"orderNo": number,
			"attempt": attempt,
		})
	}
	return domain.Order{}, fmt.Errorf("%w: %d attempts collided", ErrNumberGenerationExhausted, s.attempts)
}

func (s *orderService) Get(ctx context.Context, orderID string) (domain.OrderView, error) {
	orderID, err := parseEntityID(orderID, "order")
	if err != nil {
		return domain.OrderView{}, err
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.OrderView{}, mapRepositoryError(err)
	}
	return domain.OrderView{
		Order:    order,
		Products: s.resolveProducts(ctx, order.ProductIDs()),
	}, nil
}

func (s *orderService) FindByCustomer(ctx context.Context, query CustomerQuery, page domain.PageRequest) (domain.Page[domain.Order], error) {
	name := strings.TrimSpace(query.FullName)
	email := strings.ToLower(strings.TrimSpace(query.Email))
	if name == "" && email == "" {
		return domain.Page[domain.Order]{}, invalid("customer", "fullName or email is required")
	}
	return s.list(ctx, repositories.OrderListFilter{FullName: name, Email: email, Page: page})
}

func (s *orderService) FindByStatus(ctx context.Context, raw string, page domain.PageRequest) (domain.Page[domain.Order], error) {
	status, err := s.states.ParseStatus(raw)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return s.list(ctx, repositories.OrderListFilter{Status: status, Page: page})
}

func (s *orderService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Order], error) {
	return s.list(ctx, repositories.OrderListFilter{Page: page})
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID string, raw string) (domain.Order, error) {
	orderID, err := parseEntityID(orderID, "order")
	if err != nil {
		return domain.Order{}, err
	}
	target, err := s.states.ParseStatus(raw)
	if err != nil {
		return domain.Order{}, err
	}

	var previous domain.OrderStatus
	var changed bool
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		previous = order.Status
		var applyErr error
		changed, applyErr = s.states.ApplyStatus(order, target, s.now())
		return applyErr
	})
	if err != nil {
		return domain.Order{}, mapRepositoryError(err)
	}
	if changed {
		s.logger(ctx, orderEventStatusChanged, map[string]any{
			"orderId": order.ID,
			"from":    string(previous),
			"to":      string(order.Status),
		})
		s.notify(ctx, orderEventStatusChanged, order)
	}
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	orderID, err := parseEntityID(orderID, "order")
	if err != nil {
		return domain.Order{}, err
	}
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		return s.states.Cancel(order, s.now())
	})
	if err != nil {
		return domain.Order{}, mapRepositoryError(err)
	}
	s.logger(ctx, orderEventCancelled, map[string]any{"orderId": order.ID})
	s.notify(ctx, orderEventCancelled, order)
	return order, nil
}

func (s *orderService) Update(ctx context.Context, orderID string, patch OrderPatch) (domain.Order, error) {
	switch {
	case patch.TotalAmount != nil:
		return domain.Order{}, invalid("totalAmount", "total amount cannot be modified after creation")
	case patch.ShippingCost != nil:
		return domain.Order{}, invalid("shippingCost", "shipping cost cannot be modified after creation")
	case patch.OrderNo != nil:
		return domain.Order{}, invalid("orderNo", "order number cannot be modified after creation")
	}
	orderID, err := parseEntityID(orderID, "order")
	if err != nil {
		return domain.Order{}, err
	}
	if patch.TrackingCode == nil {
		order, err := s.orders.FindByID(ctx, orderID)
		return order, mapRepositoryError(err)
	}
	tracking := plainText(s.policy, *patch.TrackingCode)
	if utf8.RuneCountInString(tracking) > maxCustomerNameLength {
		return domain.Order{}, invalid("trackingCode", "must be at most %d characters", maxCustomerNameLength)
	}
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		order.TrackingCode = tracking
		order.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Order{}, mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) list(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	filter.Page = filter.Page.Normalize()
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.Order]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) normalizeCustomer(in domain.Customer) (domain.Customer, error) {
	out := domain.Customer{
		FullName: plainText(s.policy, in.FullName),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  plainText(s.policy, in.Address),
	}
	switch n := utf8.RuneCountInString(out.FullName); {
	case n == 0:
		return domain.Customer{}, invalid("customer.fullName", "full name is required")
	case n > maxCustomerNameLength:
		return domain.Customer{}, invalid("customer.fullName", "must be at most %d characters", maxCustomerNameLength)
	}
	if !emailPattern.MatchString(out.Email) {
		return domain.Customer{}, invalid("customer.email", "please provide a valid email address")
	}
	if !phonePattern.MatchString(out.Phone) {
		return domain.Customer{}, invalid("customer.phone", "phone must start with +92 followed by 10 to 12 digits")
	}
	switch n := utf8.RuneCountInString(out.Address); {
	case n == 0:
		return domain.Customer{}, invalid("customer.address", "address is required")
	case n > maxCustomerAddressLength:
		return domain.Customer{}, invalid("customer.address", "must be at most %d characters", maxCustomerAddressLength)
	}
	return out, nil
}

// ensureProductsExist rejects items that reference products missing from the catalog or
// soft-deleted. Unit prices stay as submitted.
func (s *orderService) ensureProductsExist(ctx context.Context, items []domain.OrderItem) error {
	if s.products == nil {
		return nil
	}
	ids := domain.Order{Items: items}.ProductIDs()
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return mapRepositoryError(err)
	}
	live := make(map[string]bool, len(products))
	for _, product := range products {
		live[product.ID] = !product.IsDeleted
	}
	for i, item := range items {
		if !live[item.ProductID] {
			return invalid(fmt.Sprintf("items[%d].product", i), "product %s does not exist", item.ProductID)
		}
	}
	return nil
}

// resolveProducts joins product snapshots onto an order. Lookup failures degrade to absent
// entries.
func (s *orderService) resolveProducts(ctx context.Context, ids []string) map[string]domain.ProductSnapshot {
	resolved := make(map[string]domain.ProductSnapshot, len(ids))
	if len(ids) == 0 || s.products == nil {
		return resolved
	}

	missing := ids
	if s.cache != nil {
		cached, err := s.cache.GetMany(ctx, ids)
		if err != nil {
			s.logger(ctx, "order.products.cache_failed", map[string]any{"error": err})
		}
		missing = missing[:0:0]
		for _, id := range ids {
			if snapshot, ok := cached[id]; ok {
				resolved[id] = snapshot
				continue
			}
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return resolved
	}

	value, err, _ := s.lookups.Do(strings.Join(missing, ","), func() (any, error) {
		return s.products.FindByIDs(ctx, missing)
	})
	if err != nil {
		s.logger(ctx, "order.products.lookup_failed", map[string]any{"error": err})
		return resolved
	}
	products, _ := value.([]domain.Product)
	fresh := make([]domain.ProductSnapshot, 0, len(products))
	for _, product := range products {
		snapshot := product.Snapshot()
		resolved[product.ID] = snapshot
		fresh = append(fresh, snapshot)
	}
	if s.cache != nil && len(fresh) > 0 {
		if err := s.cache.SetMany(ctx, fresh); err != nil {
			s.logger(ctx, "order.products.cache_failed", map[string]any{"error": err})
		}
	}
	return resolved
}

func (s *orderService) notify(ctx context.Context, event string, order domain.Order) {
	if s.notifier == nil {
		return
	}
	notice := NewOrderNotice(event, order, s.now())
	if err := s.notifier.NotifyCustomer(ctx, notice); err != nil {
		s.logger(ctx, "order.notify.customer_failed", map[string]any{"orderId": order.ID, "error": err})
	}
	if err := s.notifier.NotifyOperations(ctx, notice); err != nil {
		s.logger(ctx, "order.notify.operations_failed", map[string]any{"orderId": order.ID, "error": err})
	}
}

// parseEntityID validates a ULID identifier. Malformed ids cannot exist, so they are reported
// as not found.
func parseEntityID(raw, kind string) (string, error) {
	id := strings.TrimSpace(raw)
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", fmt.Errorf("%w: %s %q", ErrNotFound, kind, raw)
	}
	return id, nil
}
