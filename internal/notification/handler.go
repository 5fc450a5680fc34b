package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer sends customer emails.
type Mailer interface {
	SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []model.OrderItem) error
	SendStatusUpdate(to, orderID string, status model.OrderStatus, total decimal.Decimal, refunded bool) error
}

// UserLookup resolves the recipient of an order email.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// notifiedStatuses are the order statuses customers hear about.
var notifiedStatuses = map[model.OrderStatus]bool{
	model.OrderShipped:   true,
	model.OrderDelivered: true,
	model.OrderCancelled: true,
	model.OrderRefunded:  true,
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	users  UserLookup
	logger *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, users UserLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mailer: mailer, users: users, logger: logger}
}

// HandleEvent is an events.Handler. Events it does not care about are ignored.
func (h *Handler) HandleEvent(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.OrderPlaced:
		return h.handleOrderPlaced(ctx, e)
	case events.OrderStatusChanged:
		return h.handleStatusChanged(ctx, e)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, e events.Event) error {
	var p events.OrderPlacedPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	h.logger.Info("processing order placed", zap.String("order_id", p.OrderID), zap.String("user_id", p.UserID))

	to, ok, err := h.recipient(ctx, p.UserID)
	if !ok {
		return err
	}

	if err := h.mailer.SendOrderConfirmation(to, p.OrderID, p.TotalAmount, p.Items); err != nil {
		h.logger.Error("send order confirmation", zap.String("order_id", p.OrderID), zap.Error(err))
		return err
	}
	h.logger.Info("order confirmation sent", zap.String("order_id", p.OrderID), zap.String("to", to))
	return nil
}

func (h *Handler) handleStatusChanged(ctx context.Context, e events.Event) error {
	var p events.OrderStatusChangedPayload
	if err := e.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	if !notifiedStatuses[p.To] {
		return nil
	}

	to, ok, err := h.recipient(ctx, p.UserID)
	if !ok {
		return err
	}

	refunded := p.PaymentStatus == model.PaymentRefunded
	if err := h.mailer.SendStatusUpdate(to, p.OrderID, p.To, p.TotalAmount, refunded); err != nil {
		h.logger.Error("send status update",
			zap.String("order_id", p.OrderID),
			zap.String("status", string(p.To)),
			zap.Error(err))
		return err
	}
	h.logger.Info("status update sent",
		zap.String("order_id", p.OrderID),
		zap.String("status", string(p.To)),
		zap.String("to", to))
	return nil
}

// recipient returns the user's email. A deleted user is skipped rather than
// retried; storage failures are returned so the broker can redeliver.
func (h *Handler) recipient(ctx context.Context, userID string) (string, bool, error) {
	u, err := h.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		h.logger.Warn("user not found, skipping notification", zap.String("user_id", userID))
		return "", false, nil
	}
	if err != nil {
		h.logger.Error("load user", zap.String("user_id", userID), zap.Error(err))
		return "", false, err
	}
	return u.Email, true, nil
}
