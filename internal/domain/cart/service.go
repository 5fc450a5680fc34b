package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/domain/order"
	"github.com/example/ec-wallet-shop/internal/domain/product"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart       = apperror.New(apperror.ErrValidation, "cart is empty")
	ErrInvalidQuantity = apperror.New(apperror.ErrValidation, "quantity must be at least 1")
	ErrItemNotInCart   = apperror.New(apperror.ErrNotFound, "item is not in the cart")
)

// Store persists cart contents as product id to quantity.
type Store interface {
	Items(ctx context.Context, userID string) (map[string]int, error)
	SetItem(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// Line is a cart entry priced at the current product price.
type Line struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Available   bool            `json:"available"`
}

type Cart struct {
	UserID string          `json:"userId"`
	Items  []Line          `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type CheckoutInput struct {
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
	Notes           string `json:"notes"`
}

type Service struct {
	store    Store
	products *product.Service
	orders   *order.Service
	logger   *zap.Logger
}

func NewService(s Store, products *product.Service, orders *order.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, products: products, orders: orders, logger: logger}
}

// AddItem adds quantity units of a product on top of what is already in the
// cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	total := items[productID] + quantity
	if err := s.checkAvailable(ctx, productID, total); err != nil {
		return nil, err
	}
	if err := s.store.SetItem(ctx, userID, productID, total); err != nil {
		return nil, apperror.Storage(err)
	}
	return s.View(ctx, userID)
}

// UpdateItem sets the quantity of a product already in the cart. Zero
// removes it.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	if _, ok := items[productID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	if err := s.checkAvailable(ctx, productID, quantity); err != nil {
		return nil, err
	}
	if err := s.store.SetItem(ctx, userID, productID, quantity); err != nil {
		return nil, apperror.Storage(err)
	}
	return s.View(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	if err := s.store.RemoveItem(ctx, userID, productID); err != nil {
		return nil, apperror.Storage(err)
	}
	return s.View(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return apperror.Storage(s.store.Clear(ctx, userID))
}

// View prices the cart with live product data. Lines whose product was
// deleted or deactivated are marked unavailable and left out of the total.
func (s *Service) View(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, apperror.Storage(err)
	}

	c := &Cart{UserID: userID, Items: make([]Line, 0, len(items)), Total: decimal.Zero}
	for _, productID := range sortedIDs(items) {
		line := Line{ProductID: productID, Quantity: items[productID]}
		p, err := s.products.Get(ctx, productID)
		switch {
		case errors.Is(err, product.ErrProductNotFound):
		case err != nil:
			return nil, err
		default:
			line.ProductName = p.Name
			line.UnitPrice = p.Price
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			line.Available = p.IsActive
		}
		if line.Available {
			c.Total = c.Total.Add(line.LineTotal)
		}
		c.Items = append(c.Items, line)
	}
	return c, nil
}

// Checkout places an order for the cart contents and empties the cart. The
// order workflow re-validates stock and prices, so a stale cart fails the
// same way a direct order would.
func (s *Service) Checkout(ctx context.Context, userID string, in CheckoutInput) (*model.Order, error) {
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	requests := make([]order.ItemRequest, 0, len(items))
	for _, productID := range sortedIDs(items) {
		requests = append(requests, order.ItemRequest{ProductID: productID, Quantity: items[productID]})
	}

	o, err := s.orders.Create(ctx, order.CreateInput{
		UserID:          userID,
		Items:           requests,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Clear(ctx, userID); err != nil {
		s.logger.Warn("failed to clear cart after checkout",
			zap.String("user_id", userID),
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
	return o, nil
}

func (s *Service) checkAvailable(ctx context.Context, productID string, quantity int) error {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return fmt.Errorf("%w: %s", order.ErrProductInactive, p.Name)
	}
	if p.Stock < quantity {
		return fmt.Errorf("%w: %s (requested %d, available %d)", order.ErrInsufficientStock, p.Name, quantity, p.Stock)
	}
	return nil
}

func sortedIDs(items map[string]int) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
