package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

const (
	orderNumberPrefix      = "ORD"
	orderNumberRandomBytes = 4
)

// PricingEngineDeps configures the pricing and numbering engine.
type PricingEngineDeps struct {
	Rates  domain.ShippingRates
	Clock  func() time.Time
	Random io.Reader
}

// OrderDraft is the part of a checkout the engine prices.
type OrderDraft struct {
	Items          []domain.OrderItem
	ShippingMethod domain.ShippingMethod
}

// PricingEngine derives shipping cost, order totals and order numbers.
type PricingEngine struct {
	rates  domain.ShippingRates
	clock  func() time.Time
	random io.Reader
}

// NewPricingEngine constructs the engine. Nil collaborators fall back to the default rate table,
// the wall clock and crypto/rand.
func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	rates := deps.Rates
	if len(rates) == 0 {
		rates = domain.DefaultShippingRates()
	}
	for method, cost := range rates {
		if cost < 0 {
			return nil, fmt.Errorf("pricing engine: negative rate for %q", method)
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	random := deps.Random
	if random == nil {
		random = rand.Reader
	}
	return &PricingEngine{
		rates:  rates.Clone(),
		clock:  clock,
		random: random,
	}, nil
}

// ShippingCost looks the method up in the rate table.
func (e *PricingEngine) ShippingCost(method domain.ShippingMethod) (int64, error) {
	cost, ok := e.rates.Lookup(method)
	if !ok {
		return 0, invalid("shippingMethod", "%q is not a supported shipping method", method)
	}
	return cost, nil
}

// Price computes the monetary fields of a new order from its items and shipping method.
func (e *PricingEngine) Price(draft OrderDraft) (domain.PricedOrder, error) {
	if len(draft.Items) == 0 {
		return domain.PricedOrder{}, invalid("items", "order must contain at least one item")
	}
	shipping, err := e.ShippingCost(draft.ShippingMethod)
	if err != nil {
		return domain.PricedOrder{}, err
	}

	var subtotal int64
	for i, item := range draft.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.Quantity < 1 {
			return domain.PricedOrder{}, invalid(field+".quantity", "quantity must be at least 1")
		}
		if item.UnitPrice < 0 {
			return domain.PricedOrder{}, invalid(field+".unitPrice", "unit price must not be negative")
		}
		line, ok := mulInt64(int64(item.Quantity), item.UnitPrice)
		if !ok {
			return domain.PricedOrder{}, invalid(field, "line amount overflows")
		}
		subtotal, ok = addInt64(subtotal, line)
		if !ok {
			return domain.PricedOrder{}, invalid("items", "order amount overflows")
		}
	}

	total, ok := addInt64(subtotal, shipping)
	if !ok {
		return domain.PricedOrder{}, invalid("items", "order amount overflows")
	}
	return domain.PricedOrder{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		TotalAmount:  total,
	}, nil
}

// NextOrderNumber returns a fresh ORD-YYYYMMDD-XXXXXXXX number. Uniqueness is enforced by
// the store, not here.
func (e *PricingEngine) NextOrderNumber() (string, error) {
	buf := make([]byte, orderNumberRandomBytes)
	if _, err := io.ReadFull(e.random, buf); err != nil {
		return "", fmt.Errorf("%w: read order number entropy: %w", ErrDependencyFailure, err)
	}
	date := e.clock().UTC().Format("20060102")
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, date, strings.ToUpper(hex.EncodeToString(buf))), nil
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func addInt64(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}
