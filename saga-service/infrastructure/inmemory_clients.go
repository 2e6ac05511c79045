package infrastructure

import (
	"context"
	"sync"

	"github.com/draftea/saga-orchestrator/saga-service/domain"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// The clients below stand in for the order, inventory, payment, shipping and
// notification services. Every call is idempotent per order so a step that
// ran but could not be persisted can run again safely.

var (
	_ domain.OrderClient        = (*InMemoryOrderClient)(nil)
	_ domain.InventoryClient    = (*InMemoryInventoryClient)(nil)
	_ domain.PaymentClient      = (*InMemoryPaymentClient)(nil)
	_ domain.ShippingClient     = (*InMemoryShippingClient)(nil)
	_ domain.NotificationClient = (*LoggingNotificationClient)(nil)
)

type OrderState string

const (
	OrderStateCreated   OrderState = "created"
	OrderStateCancelled OrderState = "cancelled"
)

type storedOrder struct {
	order domain.Order
	state OrderState
}

type InMemoryOrderClient struct {
	orders *xsync.MapOf[string, storedOrder]
}

func NewInMemoryOrderClient() *InMemoryOrderClient {
	return &InMemoryOrderClient{orders: xsync.NewMapOf[string, storedOrder]()}
}

func (c *InMemoryOrderClient) CreateOrder(_ context.Context, order domain.Order) error {
	if order.ID == "" {
		return errors.New("order id is required")
	}
	c.orders.LoadOrStore(order.ID, storedOrder{order: order, state: OrderStateCreated})
	return nil
}

func (c *InMemoryOrderClient) CancelOrder(_ context.Context, orderID string) error {
	var found bool
	c.orders.Compute(orderID, func(o storedOrder, loaded bool) (storedOrder, bool) {
		found = loaded
		if !loaded {
			return o, true
		}
		o.state = OrderStateCancelled
		return o, false
	})
	if !found {
		return errors.Wrapf(domain.ErrOrderNotFound, "order %s", orderID)
	}
	return nil
}

// State reports the order state, or "" for unknown orders.
func (c *InMemoryOrderClient) State(orderID string) OrderState {
	o, ok := c.orders.Load(orderID)
	if !ok {
		return ""
	}
	return o.state
}

type reservation struct {
	orderID string
	items   []domain.OrderItem
}

// InMemoryInventoryClient keeps stock per SKU. Unknown SKUs have no stock.
type InMemoryInventoryClient struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[string]reservation
	byOrder      map[string]string
}

func NewInMemoryInventoryClient(stock map[string]int) *InMemoryInventoryClient {
	initial := make(map[string]int, len(stock))
	for sku, qty := range stock {
		initial[sku] = qty
	}
	return &InMemoryInventoryClient{
		stock:        initial,
		reservations: make(map[string]reservation),
		byOrder:      make(map[string]string),
	}
}

func (c *InMemoryInventoryClient) Reserve(_ context.Context, orderID string, items []domain.OrderItem) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.byOrder[orderID]; ok {
		return id, nil
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return "", errors.Errorf("invalid quantity %d for sku %s", item.Quantity, item.SKU)
		}
		if c.stock[item.SKU] < item.Quantity {
			return "", errors.Wrapf(domain.ErrInsufficientStock, "sku %s: want %d, have %d",
				item.SKU, item.Quantity, c.stock[item.SKU])
		}
	}
	for _, item := range items {
		c.stock[item.SKU] -= item.Quantity
	}

	id := models.GenerateUUID().String()
	c.reservations[id] = reservation{orderID: orderID, items: items}
	c.byOrder[orderID] = id
	return id, nil
}

// Release returns reserved stock. Unknown reservations are already released.
func (c *InMemoryInventoryClient) Release(_ context.Context, reservationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.reservations[reservationID]
	if !ok {
		return nil
	}
	for _, item := range res.items {
		c.stock[item.SKU] += item.Quantity
	}
	delete(c.reservations, reservationID)
	delete(c.byOrder, res.orderID)
	return nil
}

func (c *InMemoryInventoryClient) Stock(sku string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stock[sku]
}

type PaymentState string

const (
	PaymentStateCaptured PaymentState = "captured"
	PaymentStateRefunded PaymentState = "refunded"
)

type storedPayment struct {
	orderID string
	amount  models.Money
	state   PaymentState
}

// InMemoryPaymentClient declines charges above a per-charge limit. A zero
// limit accepts any positive amount.
type InMemoryPaymentClient struct {
	limit    int64
	payments *xsync.MapOf[string, storedPayment]
	byOrder  *xsync.MapOf[string, string]
}

func NewInMemoryPaymentClient(limit int64) *InMemoryPaymentClient {
	return &InMemoryPaymentClient{
		limit:    limit,
		payments: xsync.NewMapOf[string, storedPayment](),
		byOrder:  xsync.NewMapOf[string, string](),
	}
}

func (c *InMemoryPaymentClient) Charge(_ context.Context, orderID, customerID string, amount models.Money) (string, error) {
	if !amount.IsPositive() {
		return "", errors.Wrapf(domain.ErrPaymentDeclined, "invalid amount %d", amount.Amount)
	}
	if c.limit > 0 && amount.Amount > c.limit {
		return "", errors.Wrapf(domain.ErrPaymentDeclined, "customer %s: amount %d %s over limit",
			customerID, amount.Amount, amount.Currency)
	}

	id, _ := c.byOrder.LoadOrCompute(orderID, func() string {
		paymentID := models.GenerateUUID().String()
		c.payments.Store(paymentID, storedPayment{orderID: orderID, amount: amount, state: PaymentStateCaptured})
		return paymentID
	})
	return id, nil
}

func (c *InMemoryPaymentClient) Refund(_ context.Context, paymentID string) error {
	var found bool
	c.payments.Compute(paymentID, func(p storedPayment, loaded bool) (storedPayment, bool) {
		found = loaded
		if !loaded {
			return p, true
		}
		p.state = PaymentStateRefunded
		return p, false
	})
	if !found {
		return errors.Errorf("payment %s not found", paymentID)
	}
	return nil
}

func (c *InMemoryPaymentClient) State(paymentID string) PaymentState {
	p, ok := c.payments.Load(paymentID)
	if !ok {
		return ""
	}
	return p.state
}

type InMemoryShippingClient struct {
	shipments *xsync.MapOf[string, bool]
	byOrder   *xsync.MapOf[string, string]
}

func NewInMemoryShippingClient() *InMemoryShippingClient {
	return &InMemoryShippingClient{
		shipments: xsync.NewMapOf[string, bool](),
		byOrder:   xsync.NewMapOf[string, string](),
	}
}

func (c *InMemoryShippingClient) Schedule(_ context.Context, orderID string, items []domain.OrderItem) (string, error) {
	if len(items) == 0 {
		return "", errors.Errorf("order %s has nothing to ship", orderID)
	}
	id, _ := c.byOrder.LoadOrCompute(orderID, func() string {
		shipmentID := models.GenerateUUID().String()
		c.shipments.Store(shipmentID, true)
		return shipmentID
	})
	return id, nil
}

func (c *InMemoryShippingClient) Cancel(_ context.Context, shipmentID string) error {
	c.shipments.Store(shipmentID, false)
	return nil
}

// Scheduled reports whether the shipment is active.
func (c *InMemoryShippingClient) Scheduled(shipmentID string) bool {
	active, _ := c.shipments.Load(shipmentID)
	return active
}

type SentNotification struct {
	CustomerID string
	OrderID    string
	Kind       domain.NotificationKind
}

// LoggingNotificationClient logs notifications instead of delivering them.
type LoggingNotificationClient struct {
	log  *logger.Logger
	mu   sync.Mutex
	sent []SentNotification
}

func NewLoggingNotificationClient(log *logger.Logger) *LoggingNotificationClient {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingNotificationClient{log: log}
}

func (c *LoggingNotificationClient) Notify(_ context.Context, customerID, orderID string, kind domain.NotificationKind) error {
	c.mu.Lock()
	c.sent = append(c.sent, SentNotification{CustomerID: customerID, OrderID: orderID, Kind: kind})
	c.mu.Unlock()

	c.log.Info("customer notified", "customer_id", customerID, "order_id", orderID, "kind", kind)
	return nil
}

func (c *LoggingNotificationClient) Sent() []SentNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	sent := make([]SentNotification, len(c.sent))
	copy(sent, c.sent)
	return sent
}
