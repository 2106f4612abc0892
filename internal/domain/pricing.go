package domain

import "sort"

// ShippingRates maps each shipping method to its flat cost in minor units.
type ShippingRates map[ShippingMethod]int64

// DefaultShippingRates is the rate table used when configuration does not override it.
func DefaultShippingRates() ShippingRates {
	return ShippingRates{
		ShippingMethodStandard: 100,
		ShippingMethodFast:     200,
	}
}

// Lookup returns the cost for the method and whether the method is known.
func (r ShippingRates) Lookup(method ShippingMethod) (int64, bool) {
	cost, ok := r[method]
	return cost, ok
}

// Methods returns the configured methods sorted by name.
func (r ShippingRates) Methods() []ShippingMethod {
	methods := make([]ShippingMethod, 0, len(r))
	for method := range r {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// Clone returns an independent copy of the table.
func (r ShippingRates) Clone() ShippingRates {
	out := make(ShippingRates, len(r))
	for method, cost := range r {
		out[method] = cost
	}
	return out
}

// PricedOrder carries the server-derived monetary fields of a new order.
type PricedOrder struct {
	Subtotal     int64
	ShippingCost int64
	TotalAmount  int64
}
