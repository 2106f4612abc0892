package services

import (
	"context"
	"sync"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

const defaultNotifyTimeout = 10 * time.Second

// OrderNotice is the payload delivered to customers and operators.
type OrderNotice struct {
	Event         string             `json:"event"`
	OrderID       string             `json:"orderId"`
	OrderNo       string             `json:"orderNo"`
	Status        domain.OrderStatus `json:"status"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	TotalAmount   int64              `json:"totalAmount"`
	ItemCount     int                `json:"itemCount"`
	OccurredAt    time.Time          `json:"occurredAt"`
}

// NewOrderNotice builds the notice for an order event.
func NewOrderNotice(event string, order domain.Order, at time.Time) OrderNotice {
	return OrderNotice{
		Event:         event,
		OrderID:       order.ID,
		OrderNo:       order.OrderNo,
		Status:        order.Status,
		CustomerName:  order.Customer.FullName,
		CustomerEmail: order.Customer.Email,
		TotalAmount:   order.TotalAmount,
		ItemCount:     len(order.Items),
		OccurredAt:    at.UTC(),
	}
}

// AsyncNotifierDeps configures AsyncNotifier.
type AsyncNotifierDeps struct {
	Next    Notifier
	Timeout time.Duration
	Logger  func(context.Context, string, map[string]any)
}

// AsyncNotifier detaches delivery from the caller. Every call returns nil immediately and
// failures of the wrapped notifier are only logged.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
	logger  func(context.Context, string, map[string]any)
	wg      sync.WaitGroup
}

var _ Notifier = (*AsyncNotifier)(nil)

// NewAsyncNotifier wraps next. A nil next yields a notifier that drops every notice.
func NewAsyncNotifier(deps AsyncNotifierDeps) *AsyncNotifier {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &AsyncNotifier{next: deps.Next, timeout: timeout, logger: logger}
}

func (n *AsyncNotifier) NotifyCustomer(ctx context.Context, notice OrderNotice) error {
	n.dispatch(ctx, "customer", notice, func(ctx context.Context) error {
		return n.next.NotifyCustomer(ctx, notice)
	})
	return nil
}

func (n *AsyncNotifier) NotifyOperations(ctx context.Context, notice OrderNotice) error {
	n.dispatch(ctx, "operations", notice, func(ctx context.Context) error {
		return n.next.NotifyOperations(ctx, notice)
	})
	return nil
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (n *AsyncNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) dispatch(ctx context.Context, audience string, notice OrderNotice, send func(context.Context) error) {
	if n.next == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		if err := send(sendCtx); err != nil {
			n.logger(detached, "notify.failed", map[string]any{
				"audience": audience,
				"notice":   notice.Event,
				"orderId":  notice.OrderID,
				"error":    err,
			})
		}
	}()
}
