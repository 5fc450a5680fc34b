package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound   = store.ErrProductNotFound
	ErrInsufficientStock = store.ErrInsufficientStock
	ErrInvalidName       = apperror.New(apperror.ErrValidation, "name is required")
	ErrInvalidPrice      = apperror.New(apperror.ErrValidation, "price must not be negative")
	ErrPricePrecision    = apperror.New(apperror.ErrValidation, "price must have at most two decimal places")
	ErrInvalidStock      = apperror.New(apperror.ErrValidation, "stock must not be negative")
)

type CreateInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  string          `json:"categoryId"`
	ImageURL    string          `json:"imageUrl"`
	IsActive    *bool           `json:"isActive"`
}

// UpdateInput carries optional changes. Nil fields are left as they are.
type UpdateInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	CategoryID  *string          `json:"categoryId"`
	ImageURL    *string          `json:"imageUrl"`
	IsActive    *bool            `json:"isActive"`
}

type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger}
}

// Bind returns a copy of the service operating inside tx.
func (s *Service) Bind(tx store.Store) *Service {
	return &Service{store: tx, logger: s.logger}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	if in.Stock < 0 {
		return nil, ErrInvalidStock
	}

	now := time.Now().UTC()
	p := &model.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ImageURL:    in.ImageURL,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	return s.store.ListProducts(ctx, filter)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Product, error) {
	var updated *model.Product
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return wrapNotFound(err, id)
		}

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrInvalidName
			}
			p.Name = name
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Price != nil {
			if err := checkPrice(*in.Price); err != nil {
				return err
			}
			p.Price = *in.Price
		}
		if in.CategoryID != nil {
			p.CategoryID = *in.CategoryID
		}
		if in.ImageURL != nil {
			p.ImageURL = *in.ImageURL
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		p.UpdatedAt = time.Now().UTC()

		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return wrapNotFound(err, id)
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// UpdateStock adds delta (which may be negative) to the product's stock. It
// is the only path through which stock changes.
func (s *Service) UpdateStock(ctx context.Context, id string, delta int) (*model.Product, error) {
	p, err := s.store.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	s.logger.Debug("stock adjusted",
		zap.String("product_id", id),
		zap.Int("delta", delta),
		zap.Int("stock", p.Stock))
	return p, nil
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if !model.FitsMoneyScale(price) {
		return ErrPricePrecision
	}
	return nil
}

func wrapNotFound(err error, id string) error {
	if errors.Is(err, store.ErrProductNotFound) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return err
}
