package domain

import (
	"encoding/json"

	"github.com/draftea/saga-orchestrator/shared/models"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/pkg/errors"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrOrderNotFound     = errors.New("order not found")
)

// OrderItem is one line of an order.
type OrderItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Order is what the order service is asked to create.
type Order struct {
	ID         string       `json:"order_id"`
	CustomerID string       `json:"customer_id"`
	Amount     models.Money `json:"amount"`
	Items      []OrderItem  `json:"items"`
}

// OrderSagaData is the typed view of the data carried by an order
// fulfillment saga. Identifiers produced by steps are filled in as the saga
// advances and consumed by the matching compensations.
type OrderSagaData struct {
	OrderID       string       `json:"order_id"`
	CustomerID    string       `json:"customer_id"`
	Amount        models.Money `json:"amount"`
	Items         []OrderItem  `json:"items"`
	ReservationID string       `json:"reservation_id,omitempty"`
	PaymentID     string       `json:"payment_id,omitempty"`
	ShipmentID    string       `json:"shipment_id,omitempty"`
}

// NewOrderSagaData builds the initial saga data for an order.
func NewOrderSagaData(order Order) OrderSagaData {
	return OrderSagaData{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Amount:     order.Amount,
		Items:      order.Items,
	}
}

func (d OrderSagaData) Order() Order {
	return Order{
		ID:         d.OrderID,
		CustomerID: d.CustomerID,
		Amount:     d.Amount,
		Items:      d.Items,
	}
}

// ToData converts to the generic saga payload. Values go through JSON so
// they look the same as after a round trip through storage.
func (d OrderSagaData) ToData() (saga.Data, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal order saga data")
	}
	data, err := saga.UnmarshalData(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal order saga data")
	}
	return data, nil
}

// ParseOrderSagaData reads the typed view back from a saga payload.
func ParseOrderSagaData(data saga.Data) (OrderSagaData, error) {
	var parsed OrderSagaData
	raw, err := json.Marshal(data)
	if err != nil {
		return parsed, errors.Wrap(err, "failed to marshal saga data")
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, errors.Wrap(err, "failed to parse order saga data")
	}
	if parsed.OrderID == "" {
		return parsed, errors.New("saga data has no order_id")
	}
	return parsed, nil
}
