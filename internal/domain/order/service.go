package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/domain/product"
	"github.com/example/ec-wallet-shop/internal/domain/wallet"
	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxShippingAddressLength = 500
	maxNotesLength           = 1000
)

var (
	ErrOrderNotFound     = store.ErrOrderNotFound
	ErrUserNotFound      = store.ErrUserNotFound
	ErrProductNotFound   = store.ErrProductNotFound
	ErrInsufficientStock = store.ErrInsufficientStock
	ErrInsufficientFunds = store.ErrInsufficientFunds

	ErrProductInactive      = apperror.New(apperror.ErrInactive, "product is not available")
	ErrIllegalTransition    = apperror.New(apperror.ErrIllegalTransition, "illegal status transition")
	ErrEmptyOrder           = apperror.New(apperror.ErrValidation, "order must contain at least one item")
	ErrInvalidQuantity      = apperror.New(apperror.ErrValidation, "quantity must be at least 1")
	ErrMissingProductID     = apperror.New(apperror.ErrValidation, "product id is required")
	ErrMissingAddress       = apperror.New(apperror.ErrValidation, "shipping address is required")
	ErrMissingPaymentMethod = apperror.New(apperror.ErrValidation, "payment method is required")
	ErrFieldTooLong         = apperror.New(apperror.ErrValidation, "field is too long")
	ErrInvalidStatus        = apperror.New(apperror.ErrValidation, "invalid order status")
	ErrInvalidPaymentStatus = apperror.New(apperror.ErrValidation, "invalid payment status")
)

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateInput struct {
	UserID          string        `json:"userId"`
	Items           []ItemRequest `json:"items"`
	ShippingAddress string        `json:"shippingAddress"`
	PaymentMethod   string        `json:"paymentMethod"`
	Notes           string        `json:"notes"`
}

func (in *CreateInput) validate() error {
	if len(in.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return ErrMissingProductID
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
	}
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	if in.ShippingAddress == "" {
		return ErrMissingAddress
	}
	if len(in.ShippingAddress) > maxShippingAddressLength {
		return fmt.Errorf("%w: shipping address exceeds %d characters", ErrFieldTooLong, maxShippingAddressLength)
	}
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	if in.PaymentMethod == "" {
		return ErrMissingPaymentMethod
	}
	in.Notes = strings.TrimSpace(in.Notes)
	if len(in.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrFieldTooLong, maxNotesLength)
	}
	return nil
}

// Service runs the order workflow. Every mutation happens inside a single
// store transaction spanning the wallet, stock and order rows; events are
// published only after commit.
type Service struct {
	store     store.Store
	wallet    *wallet.Service
	products  *product.Service
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(s store.Store, w *wallet.Service, p *product.Service, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: s, wallet: w, products: p, publisher: publisher, logger: logger}
}

// Create validates the requested items against live stock and prices, pays
// from the wallet, reserves stock and persists the order. Nothing is written
// unless every step succeeds.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	var created *model.Order
	var payment *wallet.Result

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetUser(ctx, in.UserID); err != nil {
			return err
		}

		items, total, err := snapshotItems(ctx, tx, in.Items)
		if err != nil {
			return err
		}

		if total.IsPositive() {
			payment, err = s.wallet.Bind(tx).Deduct(ctx, in.UserID, total, "Payment for order "+orderID)
			if err != nil {
				return err
			}
		}

		products := s.products.Bind(tx)
		for _, item := range inLockOrder(items) {
			if _, err := products.UpdateStock(ctx, item.ProductID, -item.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return fmt.Errorf("%w: %s", ErrInsufficientStock, item.ProductName)
				}
				return err
			}
		}

		notes := in.Notes
		if payment != nil {
			paidBy := "Paid by wallet transaction " + payment.Transaction.ID
			if notes != "" {
				notes += "\n" + paidBy
			} else {
				notes = paidBy
			}
		}

		now := time.Now().UTC()
		created = &model.Order{
			ID:              orderID,
			UserID:          in.UserID,
			Items:           items,
			TotalAmount:     total,
			Status:          model.OrderPending,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   model.PaymentPaid,
			Notes:           notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateOrder(ctx, created)
	})
	if err != nil {
		s.logger.Info("order rejected", zap.String("user_id", in.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("total", created.TotalAmount.String()))

	payload := events.OrderPlacedPayload{
		OrderID:     created.ID,
		UserID:      created.UserID,
		Items:       created.Items,
		TotalAmount: created.TotalAmount,
	}
	if payment != nil {
		payload.WalletTransactionID = payment.Transaction.ID
		s.wallet.Announce(ctx, payment.Transaction)
	}
	events.Emit(ctx, s.publisher, s.logger, events.OrderPlaced, created.ID, payload)
	return created, nil
}

// snapshotItems resolves every requested product and captures name and
// price as of now. Products are read, and row-locked inside a database
// transaction, in product id order so that concurrent orders over the same
// products always lock in the same order. Items keep the caller's order.
func snapshotItems(ctx context.Context, tx store.Store, requested []ItemRequest) ([]model.OrderItem, decimal.Decimal, error) {
	wanted := make(map[string]int, len(requested))
	for _, req := range requested {
		wanted[req.ProductID] += req.Quantity
	}
	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resolved := make(map[string]*model.Product, len(ids))
	for _, id := range ids {
		p, err := tx.GetProduct(ctx, id)
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !p.IsActive {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrProductInactive, p.Name)
		}
		if p.Stock < wanted[id] {
			return nil, decimal.Zero, fmt.Errorf("%w: %s (requested %d, available %d)",
				ErrInsufficientStock, p.Name, wanted[id], p.Stock)
		}
		resolved[id] = p
	}

	items := make([]model.OrderItem, 0, len(requested))
	total := decimal.Zero
	for _, req := range requested {
		p := resolved[req.ProductID]
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    req.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

// inLockOrder returns a copy of items sorted by product id, the order in
// which product rows are locked.
func inLockOrder(items []model.OrderItem) []model.OrderItem {
	sorted := append([]model.OrderItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, ErrInvalidPaymentStatus
	}
	return s.store.ListOrders(ctx, filter)
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, model.OrderFilter{UserID: userID})
}

func (s *Service) ListByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.store.ListOrders(ctx, model.OrderFilter{Status: status})
}

// UpdateStatus moves the order through the status state machine.
// Cancelling returns every item to stock and refunds a paid order; refunding
// a delivered order credits its total back to the wallet.
func (s *Service) UpdateStatus(ctx context.Context, id string, next model.OrderStatus) (*model.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	var previous, updated *model.Order
	var refund *wallet.Result

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return wrapNotFound(err, id)
		}
		if !CanTransition(o.Status, next) {
			return transitionError(o.Status, next)
		}
		previous = o

		paymentStatus := o.PaymentStatus
		switch next {
		case model.OrderCancelled:
			if err := s.restoreStock(ctx, tx, o); err != nil {
				return err
			}
			if paymentStatus == model.PaymentPaid {
				refund, err = s.refund(ctx, tx, o, "Refund for cancelled order "+o.ID)
				if err != nil {
					return err
				}
			}
		case model.OrderRefunded:
			if paymentStatus == model.PaymentPaid {
				refund, err = s.refund(ctx, tx, o, "Refund for order "+o.ID)
				if err != nil {
					return err
				}
			}
		}
		// A free order has nothing to give back and stays paid.
		if refund != nil {
			paymentStatus = model.PaymentRefunded
		}

		updated, err = tx.UpdateOrderStatus(ctx, id, next, paymentStatus)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", id),
		zap.String("from", string(previous.Status)),
		zap.String("to", string(next)))

	if refund != nil {
		s.wallet.Announce(ctx, refund.Transaction)
	}
	events.Emit(ctx, s.publisher, s.logger, events.OrderStatusChanged, id, events.OrderStatusChangedPayload{
		OrderID:       id,
		UserID:        updated.UserID,
		From:          previous.Status,
		To:            next,
		PaymentStatus: updated.PaymentStatus,
		TotalAmount:   updated.TotalAmount,
	})
	if updated.PaymentStatus != previous.PaymentStatus {
		s.emitPaymentChanged(ctx, updated, previous.PaymentStatus)
	}
	return updated, nil
}

// Cancel is UpdateStatus(id, cancelled).
func (s *Service) Cancel(ctx context.Context, id string) (*model.Order, error) {
	return s.UpdateStatus(ctx, id, model.OrderCancelled)
}

func (s *Service) restoreStock(ctx context.Context, tx store.Store, o *model.Order) error {
	products := s.products.Bind(tx)
	for _, item := range inLockOrder(o.Items) {
		_, err := products.UpdateStock(ctx, item.ProductID, item.Quantity)
		if errors.Is(err, store.ErrProductNotFound) {
			s.logger.Warn("skipping stock restore for deleted product",
				zap.String("order_id", o.ID),
				zap.String("product_id", item.ProductID))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refund(ctx context.Context, tx store.Store, o *model.Order, description string) (*wallet.Result, error) {
	if !o.TotalAmount.IsPositive() {
		return nil, nil
	}
	return s.wallet.Bind(tx).Credit(ctx, o.UserID, o.TotalAmount, description)
}

// UpdatePaymentStatus overwrites the payment status. It is an administrative
// override and moves no money.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}

	var previous model.PaymentStatus
	var updated *model.Order
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return wrapNotFound(err, id)
		}
		previous = o.PaymentStatus
		updated, err = tx.UpdatePaymentStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	if previous != status {
		s.emitPaymentChanged(ctx, updated, previous)
	}
	return updated, nil
}

func (s *Service) emitPaymentChanged(ctx context.Context, o *model.Order, from model.PaymentStatus) {
	events.Emit(ctx, s.publisher, s.logger, events.OrderPaymentStatusChanged, o.ID, events.PaymentStatusChangedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		From:    from,
		To:      o.PaymentStatus,
	})
}

// Delete hard-deletes an order without touching stock or the wallet.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return wrapNotFound(err, id)
	}
	s.logger.Info("order deleted", zap.String("order_id", id))
	return nil
}

func wrapNotFound(err error, id string) error {
	if errors.Is(err, store.ErrOrderNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return err
}
