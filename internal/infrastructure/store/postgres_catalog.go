package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/model"
)

const productColumns = `id, name, description, price, stock, category_id, image_url, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	var categoryID, imageURL sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &categoryID, &imageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CategoryID = categoryID.String
	p.ImageURL = imageURL.String
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.Product) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, nullString(p.CategoryID), nullString(p.ImageURL), p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	return apperror.Storage(err)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`+s.lockClause(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != "" {
		conditions = append(conditions, "category_id = "+arg(filter.CategoryID))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "price <= "+arg(*filter.MaxPrice))
	}
	if filter.IsActive != nil {
		conditions = append(conditions, "is_active = "+arg(*filter.IsActive))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conditions = append(conditions, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperror.Storage(err)
		}
		products = append(products, *p)
	}
	return products, apperror.Storage(rows.Err())
}

// UpdateProduct writes the descriptive fields. Stock is left untouched.
func (s *PostgresStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3, category_id = $4, image_url = $5, is_active = $6, updated_at = $7
		 WHERE id = $8`,
		p.Name, p.Description, p.Price, nullString(p.CategoryID), nullString(p.ImageURL), p.IsActive, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return apperror.Storage(err)
	}
	return checkAffected(res, ErrProductNotFound)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return apperror.Storage(err)
	}
	return checkAffected(res, ErrProductNotFound)
}

// AdjustStock applies delta in one conditional statement so two concurrent
// orders can never oversell the same units.
func (s *PostgresStore) AdjustStock(ctx context.Context, id string, delta int) (*model.Product, error) {
	p, err := scanProduct(s.q.QueryRowContext(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3 AND stock + $1 >= 0 RETURNING `+productColumns,
		delta, time.Now().UTC(), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		found, existsErr := s.exists(ctx, "products", id)
		if existsErr != nil {
			return nil, existsErr
		}
		if !found {
			return nil, ErrProductNotFound
		}
		return nil, ErrInsufficientStock
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return p, nil
}

const categoryColumns = `id, name, description, image_url, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	var imageURL sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &imageURL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ImageURL = imageURL.String
	return &c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c *model.Category) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Description, nullString(c.ImageURL), c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	return apperror.Storage(err)
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	c, err := scanCategory(s.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return c, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, apperror.Storage(err)
		}
		categories = append(categories, *c)
	}
	return categories, apperror.Storage(rows.Err())
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, c *model.Category) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE categories SET name = $1, description = $2, image_url = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		c.Name, c.Description, nullString(c.ImageURL), c.IsActive, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return apperror.Storage(err)
	}
	return checkAffected(res, ErrCategoryNotFound)
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return apperror.Storage(err)
	}
	return checkAffected(res, ErrCategoryNotFound)
}
