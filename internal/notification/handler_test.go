package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ec-wallet-shop/internal/email"
	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store/mocks"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Mailer = (*email.Service)(nil)

type confirmation struct {
	to, orderID string
	total       decimal.Decimal
	items       []model.OrderItem
}

type statusUpdate struct {
	to, orderID string
	status      model.OrderStatus
	total       decimal.Decimal
	refunded    bool
}

type fakeMailer struct {
	confirmations []confirmation
	updates       []statusUpdate
	err           error
}

func (m *fakeMailer) SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []model.OrderItem) error {
	m.confirmations = append(m.confirmations, confirmation{to, orderID, total, items})
	return m.err
}

func (m *fakeMailer) SendStatusUpdate(to, orderID string, status model.OrderStatus, total decimal.Decimal, refunded bool) error {
	m.updates = append(m.updates, statusUpdate{to, orderID, status, total, refunded})
	return m.err
}

func newTestHandler(t *testing.T) (*Handler, *fakeMailer, *mocks.MemoryStore) {
	t.Helper()
	memStore := mocks.NewMemoryStore()
	require.NoError(t, memStore.CreateUser(context.Background(), &model.User{
		ID: "user-1", Email: "buyer@example.com", Name: "Buyer", Role: model.RoleCustomer,
	}))
	mailer := &fakeMailer{}
	return NewHandler(mailer, memStore, nil), mailer, memStore
}

func mustEvent(t *testing.T, eventType, aggregateID string, payload any) events.Event {
	t.Helper()
	e, err := events.New(eventType, aggregateID, payload)
	require.NoError(t, err)
	return e
}

// ============================================
// Order placed
// ============================================

func TestHandleEvent_OrderPlaced(t *testing.T) {
	h, mailer, _ := newTestHandler(t)
	items := []model.OrderItem{{ProductID: "p-1", ProductName: "Mug", Quantity: 2,
		UnitPrice: decimal.NewFromInt(5), TotalPrice: decimal.NewFromInt(10)}}
	e := mustEvent(t, events.OrderPlaced, "order-1", events.OrderPlacedPayload{
		OrderID: "order-1", UserID: "user-1", Items: items, TotalAmount: decimal.NewFromInt(10),
	})

	require.NoError(t, h.HandleEvent(context.Background(), e))

	require.Len(t, mailer.confirmations, 1)
	got := mailer.confirmations[0]
	assert.Equal(t, "buyer@example.com", got.to)
	assert.Equal(t, "order-1", got.orderID)
	assert.True(t, got.total.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "Mug", got.items[0].ProductName)
}

func TestHandleEvent_UnknownUserIsSkipped(t *testing.T) {
	h, mailer, _ := newTestHandler(t)
	e := mustEvent(t, events.OrderPlaced, "order-1", events.OrderPlacedPayload{OrderID: "order-1", UserID: "ghost"})

	require.NoError(t, h.HandleEvent(context.Background(), e))
	assert.Empty(t, mailer.confirmations)
}

func TestHandleEvent_StorageErrorIsReturned(t *testing.T) {
	h, mailer, memStore := newTestHandler(t)
	memStore.FailOn("GetUser", errors.New("db down"))
	e := mustEvent(t, events.OrderPlaced, "order-1", events.OrderPlacedPayload{OrderID: "order-1", UserID: "user-1"})

	err := h.HandleEvent(context.Background(), e)

	assert.EqualError(t, err, "db down")
	assert.Empty(t, mailer.confirmations)
}

func TestHandleEvent_SendErrorIsReturned(t *testing.T) {
	h, mailer, _ := newTestHandler(t)
	mailer.err = errors.New("smtp unavailable")
	e := mustEvent(t, events.OrderPlaced, "order-1", events.OrderPlacedPayload{OrderID: "order-1", UserID: "user-1"})

	assert.ErrorIs(t, h.HandleEvent(context.Background(), e), mailer.err)
}

func TestHandleEvent_BadPayload(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := events.Event{Type: events.OrderPlaced, Data: []byte(`{"orderId": 12}`)}

	err := h.HandleEvent(context.Background(), e)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode order.placed")
}

// ============================================
// Status changes
// ============================================

func TestHandleEvent_StatusChanged(t *testing.T) {
	tests := []struct {
		name     string
		to       model.OrderStatus
		payment  model.PaymentStatus
		notify   bool
		refunded bool
	}{
		{"confirmed is silent", model.OrderConfirmed, model.PaymentPaid, false, false},
		{"processing is silent", model.OrderProcessing, model.PaymentPaid, false, false},
		{"shipped", model.OrderShipped, model.PaymentPaid, true, false},
		{"delivered", model.OrderDelivered, model.PaymentPaid, true, false},
		{"cancelled with refund", model.OrderCancelled, model.PaymentRefunded, true, true},
		{"cancelled unpaid", model.OrderCancelled, model.PaymentPending, true, false},
		{"refunded", model.OrderRefunded, model.PaymentRefunded, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mailer, _ := newTestHandler(t)
			e := mustEvent(t, events.OrderStatusChanged, "order-1", events.OrderStatusChangedPayload{
				OrderID: "order-1", UserID: "user-1", From: model.OrderPending, To: tt.to,
				PaymentStatus: tt.payment, TotalAmount: decimal.NewFromInt(30),
			})

			require.NoError(t, h.HandleEvent(context.Background(), e))

			if !tt.notify {
				assert.Empty(t, mailer.updates)
				return
			}
			require.Len(t, mailer.updates, 1)
			assert.Equal(t, tt.to, mailer.updates[0].status)
			assert.Equal(t, tt.refunded, mailer.updates[0].refunded)
			assert.Equal(t, "buyer@example.com", mailer.updates[0].to)
		})
	}
}

func TestHandleEvent_IgnoresOtherEvents(t *testing.T) {
	h, mailer, _ := newTestHandler(t)
	e := mustEvent(t, events.WalletTransactionRecorded, "txn-1", events.WalletTransactionPayload{UserID: "user-1"})

	require.NoError(t, h.HandleEvent(context.Background(), e))
	assert.Empty(t, mailer.confirmations)
	assert.Empty(t, mailer.updates)
}
