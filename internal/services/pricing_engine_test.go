package services

import (
	"errors"
	"math"
	"testing"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

func newTestPricingEngine(t *testing.T, random *fixedReader) *PricingEngine {
	t.Helper()
	deps := PricingEngineDeps{Clock: fixedClock()}
	if random != nil {
		deps.Random = random
	}
	engine, err := NewPricingEngine(deps)
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}
	return engine
}

func TestPricingEngineShippingCost(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	cases := map[domain.ShippingMethod]int64{
		domain.ShippingMethodStandard: 100,
		domain.ShippingMethodFast:     200,
	}
	for method, want := range cases {
		got, err := engine.ShippingCost(method)
		if err != nil {
			t.Fatalf("shipping cost %s: %v", method, err)
		}
		if got != want {
			t.Fatalf("shipping cost %s: want %d got %d", method, want, got)
		}
	}

	if _, err := engine.ShippingCost("overnight"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown method, got %v", err)
	}
}

func TestPricingEnginePrice(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	priced, err := engine.Price(OrderDraft{
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: 500},
			{ProductID: "p2", Quantity: 1, UnitPrice: 0},
			{ProductID: "p3", Quantity: 3, UnitPrice: 33},
		},
		ShippingMethod: domain.ShippingMethodStandard,
	})
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if priced.Subtotal != 1099 || priced.ShippingCost != 100 || priced.TotalAmount != 1199 {
		t.Fatalf("unexpected pricing %+v", priced)
	}
}

func TestPricingEnginePriceValidation(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	tests := []struct {
		name  string
		draft OrderDraft
		field string
	}{
		{
			name:  "no items",
			draft: OrderDraft{ShippingMethod: domain.ShippingMethodFast},
			field: "items",
		},
		{
			name: "zero quantity",
			draft: OrderDraft{
				Items:          []domain.OrderItem{{ProductID: "p1", Quantity: 0, UnitPrice: 10}},
				ShippingMethod: domain.ShippingMethodFast,
			},
			field: "items[0].quantity",
		},
		{
			name: "negative price",
			draft: OrderDraft{
				Items:          []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}, {ProductID: "p2", Quantity: 1, UnitPrice: -1}},
				ShippingMethod: domain.ShippingMethodFast,
			},
			field: "items[1].unitPrice",
		},
		{
			name: "unknown shipping",
			draft: OrderDraft{
				Items:          []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
				ShippingMethod: "drone",
			},
			field: "shippingMethod",
		},
		{
			name: "line overflow",
			draft: OrderDraft{
				Items:          []domain.OrderItem{{ProductID: "p1", Quantity: 2, UnitPrice: math.MaxInt64/2 + 1}},
				ShippingMethod: domain.ShippingMethodFast,
			},
			field: "items[0]",
		},
		{
			name: "total overflow",
			draft: OrderDraft{
				Items:          []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: math.MaxInt64 - 10}},
				ShippingMethod: domain.ShippingMethodFast,
			},
			field: "items",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Price(tc.draft)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if validationErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, validationErr.Field)
			}
		})
	}
}

func TestPricingEngineCustomRates(t *testing.T) {
	engine, err := NewPricingEngine(PricingEngineDeps{Rates: domain.ShippingRates{"standard": 150}})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}
	if _, err := engine.ShippingCost(domain.ShippingMethodFast); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected fast to be unknown with custom table, got %v", err)
	}

	if _, err := NewPricingEngine(PricingEngineDeps{Rates: domain.ShippingRates{"standard": -1}}); err == nil {
		t.Fatal("expected negative rate to be rejected")
	}
}

func TestPricingEngineNextOrderNumber(t *testing.T) {
	engine := newTestPricingEngine(t, &fixedReader{chunks: [][]byte{{0xde, 0xad, 0xbe, 0xef}}})

	number, err := engine.NextOrderNumber()
	if err != nil {
		t.Fatalf("next order number: %v", err)
	}
	if number != "ORD-20240515-DEADBEEF" {
		t.Fatalf("unexpected order number %s", number)
	}
	if !domain.OrderNumberPattern.MatchString(number) {
		t.Fatalf("order number %s does not match pattern", number)
	}
}

func TestPricingEngineNextOrderNumberUsesCryptoRandByDefault(t *testing.T) {
	engine := newTestPricingEngine(t, nil)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number, err := engine.NextOrderNumber()
		if err != nil {
			t.Fatalf("next order number: %v", err)
		}
		if !domain.OrderNumberPattern.MatchString(number) {
			t.Fatalf("order number %s does not match pattern", number)
		}
		seen[number] = true
	}
	if len(seen) < 45 {
		t.Fatalf("expected mostly distinct numbers, got %d", len(seen))
	}
}

func TestPricingEngineNextOrderNumberEntropyFailure(t *testing.T) {
	engine := newTestPricingEngine(t, &fixedReader{})

	if _, err := engine.NextOrderNumber(); !errors.Is(err, ErrDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
}
