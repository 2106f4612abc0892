package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

func TestOrderStateMachineParseStatus(t *testing.T) {
	var machine OrderStateMachine

	status, err := machine.ParseStatus("  Shipped ")
	if err != nil || status != domain.OrderStatusShipped {
		t.Fatalf("expected shipped, got %q (%v)", status, err)
	}
	if _, err := machine.ParseStatus("lost"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrderStateMachineApplyStatusIsPermissive(t *testing.T) {
	var machine OrderStateMachine
	order := domain.Order{Status: domain.OrderStatusDelivered}

	changed, err := machine.ApplyStatus(&order, domain.OrderStatusPending, time.Now())
	if err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if !changed || order.Status != domain.OrderStatusPending {
		t.Fatalf("expected backwards override to pending, got %s", order.Status)
	}

	changed, err = machine.ApplyStatus(&order, domain.OrderStatusPending, time.Now())
	if err != nil || changed {
		t.Fatalf("expected no change for same status, changed=%v err=%v", changed, err)
	}

	if _, err := machine.ApplyStatus(&order, "returned", time.Now()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestOrderStateMachineDeliveredAtSetOnce(t *testing.T) {
	var machine OrderStateMachine
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)
	order := domain.Order{Status: domain.OrderStatusShipped}

	if _, err := machine.ApplyStatus(&order, domain.OrderStatusDelivered, first); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if order.DeliveredAt == nil || !order.DeliveredAt.Equal(first) {
		t.Fatalf("expected deliveredAt %s, got %v", first, order.DeliveredAt)
	}

	if _, err := machine.ApplyStatus(&order, domain.OrderStatusShipped, second); err != nil {
		t.Fatalf("move back: %v", err)
	}
	if _, err := machine.ApplyStatus(&order, domain.OrderStatusDelivered, second); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if !order.DeliveredAt.Equal(first) {
		t.Fatalf("expected deliveredAt to stay %s, got %s", first, order.DeliveredAt)
	}
}

func TestOrderStateMachineCancel(t *testing.T) {
	var machine OrderStateMachine
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, status := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusShipped} {
		order := domain.Order{Status: status}
		if err := machine.Cancel(&order, now); err != nil {
			t.Fatalf("cancel from %s: %v", status, err)
		}
		if order.Status != domain.OrderStatusCancelled || !order.UpdatedAt.Equal(now) {
			t.Fatalf("expected cancelled order, got %+v", order)
		}
	}

	for _, status := range []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
		order := domain.Order{Status: status}
		err := machine.Cancel(&order, now)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition from %s, got %v", status, err)
		}
		if !strings.Contains(err.Error(), `cannot cancel order with status "`+string(status)+`"`) {
			t.Fatalf("expected message naming status, got %q", err.Error())
		}
		if order.Status != status {
			t.Fatalf("status must be unchanged, got %s", order.Status)
		}
	}
}
