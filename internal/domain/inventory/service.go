package inventory

import (
	"context"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/domain/product"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultLowStockThreshold = 10

var (
	ErrInvalidQuantity   = apperror.New(apperror.ErrValidation, "quantity must not be negative")
	ErrInsufficientStock = product.ErrInsufficientStock
)

// Report aggregates stock figures over the whole catalog.
type Report struct {
	TotalProducts   int             `json:"totalProducts"`
	TotalStock      int             `json:"totalStock"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	LowStockItems   []model.Product `json:"lowStockItems"`
	OutOfStockItems []model.Product `json:"outOfStockItems"`
}

type Service struct {
	store     store.Store
	products  *product.Service
	threshold int
	logger    *zap.Logger
	group     singleflight.Group
}

func NewService(s store.Store, products *product.Service, lowStockThreshold int, logger *zap.Logger) *Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, products: products, threshold: lowStockThreshold, logger: logger}
}

// Report computes the inventory report. Concurrent callers share one
// catalog scan. The scan is detached from the caller that started it, so a
// cancelled request only abandons its own wait.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	scanCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("report", func() (any, error) {
		all, err := s.store.ListProducts(scanCtx, model.ProductFilter{})
		if err != nil {
			return nil, err
		}
		return buildReport(all, s.threshold), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Report), nil
	}
}

func buildReport(all []model.Product, threshold int) *Report {
	r := &Report{
		TotalProducts:   len(all),
		TotalValue:      decimal.Zero,
		LowStockItems:   []model.Product{},
		OutOfStockItems: []model.Product{},
	}
	for _, p := range all {
		r.TotalStock += p.Stock
		r.TotalValue = r.TotalValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
		switch {
		case p.Stock == 0:
			r.OutOfStockItems = append(r.OutOfStockItems, p)
		case p.Stock <= threshold:
			r.LowStockItems = append(r.LowStockItems, p)
		}
	}
	return r
}

// LowStock lists products with 0 < stock <= threshold. A non-positive
// threshold uses the configured default.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}
	all, err := s.store.ListProducts(ctx, model.ProductFilter{})
	if err != nil {
		return nil, err
	}
	return buildReport(all, threshold).LowStockItems, nil
}

func (s *Service) OutOfStock(ctx context.Context) ([]model.Product, error) {
	all, err := s.store.ListProducts(ctx, model.ProductFilter{})
	if err != nil {
		return nil, err
	}
	return buildReport(all, s.threshold).OutOfStockItems, nil
}

// TotalValue returns the sum of price times stock.
func (s *Service) TotalValue(ctx context.Context) (decimal.Decimal, error) {
	r, err := s.Report(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return r.TotalValue, nil
}

func (s *Service) StockCount(ctx context.Context) (int, error) {
	r, err := s.Report(ctx)
	if err != nil {
		return 0, err
	}
	return r.TotalStock, nil
}

func (s *Service) AddStock(ctx context.Context, productID string, quantity int) (*model.Product, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return s.products.UpdateStock(ctx, productID, quantity)
}

func (s *Service) RemoveStock(ctx context.Context, productID string, quantity int) (*model.Product, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return s.products.UpdateStock(ctx, productID, -quantity)
}

// SetStock sets an absolute stock level through the delta primitive, with
// the product row locked for the read.
func (s *Service) SetStock(ctx context.Context, productID string, quantity int) (*model.Product, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	var updated *model.Product
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		products := s.products.Bind(tx)
		current, err := products.Get(ctx, productID)
		if err != nil {
			return err
		}
		updated, err = products.UpdateStock(ctx, productID, quantity-current.Stock)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock set", zap.String("product_id", productID), zap.Int("stock", quantity))
	return updated, nil
}
