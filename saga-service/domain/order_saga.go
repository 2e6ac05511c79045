package domain

import (
	"context"
	"time"

	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

const OrderFulfillmentSaga = "order_fulfillment"

// Step names in execution order.
const (
	StepCreateOrder      = "create_order"
	StepReserveInventory = "reserve_inventory"
	StepProcessPayment   = "process_payment"
	StepShipOrder        = "ship_order"
	StepNotifyCustomer   = "notify_customer"
)

// OrderSagaClients groups the collaborators the order saga calls.
type OrderSagaClients struct {
	Orders        OrderClient
	Inventory     InventoryClient
	Payments      PaymentClient
	Shipping      ShippingClient
	Notifications NotificationClient
}

// StepTimeouts overrides the engine default per step name.
type StepTimeouts map[string]time.Duration

// NewOrderFulfillmentDefinition wires the five order steps to clients.
func NewOrderFulfillmentDefinition(clients OrderSagaClients, timeouts StepTimeouts) (*saga.Definition, error) {
	steps := []saga.Step{
		{Name: StepCreateOrder, Handler: &createOrderStep{orders: clients.Orders}},
		{Name: StepReserveInventory, Handler: &reserveInventoryStep{inventory: clients.Inventory}},
		{Name: StepProcessPayment, Handler: &processPaymentStep{payments: clients.Payments}},
		{Name: StepShipOrder, Handler: &shipOrderStep{shipping: clients.Shipping}},
		{Name: StepNotifyCustomer, Handler: &notifyCustomerStep{notifications: clients.Notifications}},
	}

	for i := range steps {
		steps[i].Timeout = timeouts[steps[i].Name]
	}

	return saga.NewDefinition(OrderFulfillmentSaga, steps...)
}

type createOrderStep struct {
	orders OrderClient
}

func (s *createOrderStep) Execute(ctx context.Context, data saga.Data) (saga.Data, error) {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return nil, err
	}
	if err := s.orders.CreateOrder(ctx, order.Order()); err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}
	return saga.Data{"order_status": "created"}, nil
}

func (s *createOrderStep) Compensate(ctx context.Context, data saga.Data) error {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return err
	}
	if err := s.orders.CancelOrder(ctx, order.OrderID); err != nil && !errors.Is(err, ErrOrderNotFound) {
		return errors.Wrap(err, "failed to cancel order")
	}
	return nil
}

type reserveInventoryStep struct {
	inventory InventoryClient
}

func (s *reserveInventoryStep) Execute(ctx context.Context, data saga.Data) (saga.Data, error) {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return nil, err
	}
	reservationID, err := s.inventory.Reserve(ctx, order.OrderID, order.Items)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reserve inventory")
	}
	return saga.Data{"reservation_id": reservationID}, nil
}

func (s *reserveInventoryStep) Compensate(ctx context.Context, data saga.Data) error {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return err
	}
	if order.ReservationID == "" {
		return nil
	}
	return errors.Wrap(s.inventory.Release(ctx, order.ReservationID), "failed to release inventory")
}

type processPaymentStep struct {
	payments PaymentClient
}

func (s *processPaymentStep) Execute(ctx context.Context, data saga.Data) (saga.Data, error) {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return nil, err
	}
	paymentID, err := s.payments.Charge(ctx, order.OrderID, order.CustomerID, order.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to charge customer")
	}
	return saga.Data{"payment_id": paymentID}, nil
}

func (s *processPaymentStep) Compensate(ctx context.Context, data saga.Data) error {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return err
	}
	if order.PaymentID == "" {
		return nil
	}
	return errors.Wrap(s.payments.Refund(ctx, order.PaymentID), "failed to refund payment")
}

type shipOrderStep struct {
	shipping ShippingClient
}

func (s *shipOrderStep) Execute(ctx context.Context, data saga.Data) (saga.Data, error) {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return nil, err
	}
	shipmentID, err := s.shipping.Schedule(ctx, order.OrderID, order.Items)
	if err != nil {
		return nil, errors.Wrap(err, "failed to schedule shipment")
	}
	return saga.Data{"shipment_id": shipmentID}, nil
}

func (s *shipOrderStep) Compensate(ctx context.Context, data saga.Data) error {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return err
	}
	if order.ShipmentID == "" {
		return nil
	}
	return errors.Wrap(s.shipping.Cancel(ctx, order.ShipmentID), "failed to cancel shipment")
}

type notifyCustomerStep struct {
	notifications NotificationClient
}

func (s *notifyCustomerStep) Execute(ctx context.Context, data saga.Data) (saga.Data, error) {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return nil, err
	}
	if err := s.notifications.Notify(ctx, order.CustomerID, order.OrderID, NotificationOrderConfirmed); err != nil {
		return nil, errors.Wrap(err, "failed to notify customer")
	}
	return saga.Data{"customer_notified": true}, nil
}

// Compensate tells the customer the confirmed order was withdrawn.
func (s *notifyCustomerStep) Compensate(ctx context.Context, data saga.Data) error {
	order, err := ParseOrderSagaData(data)
	if err != nil {
		return err
	}
	return errors.Wrap(
		s.notifications.Notify(ctx, order.CustomerID, order.OrderID, NotificationOrderCancelled),
		"failed to notify customer",
	)
}
