package services

import (
	"strings"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status_changed"
	orderEventCancelled     = "order.cancelled"
)

var cancellableStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:   true,
	domain.OrderStatusConfirmed: true,
	domain.OrderStatusShipped:   true,
}

// OrderStateMachine applies lifecycle changes to orders in memory. Persistence is the caller's job.
type OrderStateMachine struct{}

// ParseStatus normalises and validates a raw status value.
func (OrderStateMachine) ParseStatus(raw string) (domain.OrderStatus, error) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", invalid("status", "%q is not a valid order status", raw)
	}
	return status, nil
}

// ApplyStatus overwrites the status with any value of the enum. Operators may move orders
// backwards. DeliveredAt is stamped on the first transition to delivered and kept afterwards.
func (OrderStateMachine) ApplyStatus(order *domain.Order, target domain.OrderStatus, now time.Time) (bool, error) {
	if !target.Valid() {
		return false, invalid("status", "%q is not a valid order status", target)
	}
	changed := order.Status != target
	order.Status = target
	order.UpdatedAt = now.UTC()
	if target == domain.OrderStatusDelivered && order.DeliveredAt == nil {
		delivered := now.UTC()
		order.DeliveredAt = &delivered
	}
	return changed, nil
}

// Cancel moves a pending, confirmed or shipped order to cancelled.
func (OrderStateMachine) Cancel(order *domain.Order, now time.Time) error {
	if !cancellableStatuses[order.Status] {
		return invalidTransition("cannot cancel order with status %q", order.Status)
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now.UTC()
	return nil
}
