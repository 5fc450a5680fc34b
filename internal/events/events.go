package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event types
const (
	OrderPlaced               = "order.placed"
	OrderStatusChanged        = "order.status_changed"
	OrderPaymentStatusChanged = "order.payment_status_changed"
	WalletTransactionRecorded = "wallet.transaction_recorded"
)

// Event is the envelope written to the broker after a transaction commits.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
	Timestamp   time.Time       `json:"timestamp"`
}

// New wraps payload in an envelope.
func New(eventType, aggregateID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateID: aggregateID,
		Data:        data,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

type OrderPlacedPayload struct {
	OrderID             string            `json:"orderId"`
	UserID              string            `json:"userId"`
	Items               []model.OrderItem `json:"items"`
	TotalAmount         decimal.Decimal   `json:"totalAmount"`
	WalletTransactionID string            `json:"walletTransactionId"`
}

type OrderStatusChangedPayload struct {
	OrderID       string              `json:"orderId"`
	UserID        string              `json:"userId"`
	From          model.OrderStatus   `json:"from"`
	To            model.OrderStatus   `json:"to"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
}

type PaymentStatusChangedPayload struct {
	OrderID string              `json:"orderId"`
	UserID  string              `json:"userId"`
	From    model.PaymentStatus `json:"from"`
	To      model.PaymentStatus `json:"to"`
}

type WalletTransactionPayload struct {
	TransactionID string                `json:"transactionId"`
	UserID        string                `json:"userId"`
	Type          model.TransactionType `json:"type"`
	Amount        decimal.Decimal       `json:"amount"`
	BalanceAfter  decimal.Decimal       `json:"balanceAfter"`
	Description   string                `json:"description"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, e Event) error

// Subscriber feeds events from a broker to a handler until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Emit builds and publishes an event. Failures are logged and never returned:
// the state change that produced the event has already committed.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, eventType, aggregateID string, payload any) {
	if p == nil {
		return
	}
	e, err := New(eventType, aggregateID, payload)
	if err != nil {
		logger.Error("encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Warn("publish event failed",
			zap.String("type", eventType),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}
}
