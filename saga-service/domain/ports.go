package domain

import (
	"context"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
)

// SagaEngine is the orchestration surface the service drives.
type SagaEngine interface {
	Start(ctx context.Context, correlationID string, data saga.Data) (*saga.Instance, error)
	Advance(ctx context.Context, id models.ID) (*saga.Instance, error)
	Compensate(ctx context.Context, id models.ID) (*saga.Instance, error)
	Fail(ctx context.Context, id models.ID, reason string) (*saga.Instance, error)
	GetStatus(ctx context.Context, id models.ID) (*saga.Instance, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*saga.Instance, error)
	ListByStatus(ctx context.Context, status saga.Status) ([]*saga.Instance, error)
}

var _ SagaEngine = (*saga.Engine)(nil)

// OrderClient owns the order record.
type OrderClient interface {
	CreateOrder(ctx context.Context, order Order) error
	CancelOrder(ctx context.Context, orderID string) error
}

// InventoryClient reserves and releases stock.
type InventoryClient interface {
	Reserve(ctx context.Context, orderID string, items []OrderItem) (reservationID string, err error)
	Release(ctx context.Context, reservationID string) error
}

// PaymentClient charges and refunds customers.
type PaymentClient interface {
	Charge(ctx context.Context, orderID, customerID string, amount models.Money) (paymentID string, err error)
	Refund(ctx context.Context, paymentID string) error
}

// ShippingClient schedules and cancels shipments.
type ShippingClient interface {
	Schedule(ctx context.Context, orderID string, items []OrderItem) (shipmentID string, err error)
	Cancel(ctx context.Context, shipmentID string) error
}

// NotificationClient sends customer notifications.
type NotificationClient interface {
	Notify(ctx context.Context, customerID, orderID string, kind NotificationKind) error
}

type NotificationKind string

const (
	NotificationOrderConfirmed NotificationKind = "order_confirmed"
	NotificationOrderCancelled NotificationKind = "order_cancelled"
)
