package category

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
)

var (
	ErrCategoryNotFound = store.ErrCategoryNotFound
	ErrInvalidName      = apperror.New(apperror.ErrValidation, "name is required")
)

type Input struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	IsActive    *bool   `json:"isActive"`
}

// Service handles category operations
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) Create(ctx context.Context, in Input) (*model.Category, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, ErrInvalidName
	}
	now := time.Now().UTC()
	c := &model.Category{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(*in.Name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(c, in)
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]model.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Category, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, ErrInvalidName
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	apply(c, in)
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, wrapNotFound(err, id)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return wrapNotFound(s.store.DeleteCategory(ctx, id), id)
}

func apply(c *model.Category, in Input) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ImageURL != nil {
		c.ImageURL = *in.ImageURL
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
}

func wrapNotFound(err error, id string) error {
	if errors.Is(err, store.ErrCategoryNotFound) {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}
	return err
}
