package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/model"
)

const orderColumns = `id, user_id, items, total_amount, status, shipping_address, payment_method, payment_status, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var itemsJSON []byte
	if err := row.Scan(&o.ID, &o.UserID, &itemsJSON, &o.TotalAmount, &o.Status, &o.ShippingAddress,
		&o.PaymentMethod, &o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	return &o, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, itemsJSON, o.TotalAmount, o.Status, o.ShippingAddress,
		o.PaymentMethod, o.PaymentStatus, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	return apperror.Storage(err)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(s.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+s.lockClause(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = "+arg(filter.UserID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, "payment_status = "+arg(filter.PaymentStatus))
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "created_at >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "created_at <= "+arg(*filter.EndDate))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperror.Storage(err)
		}
		orders = append(orders, *o)
	}
	return orders, apperror.Storage(rows.Err())
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, payment model.PaymentStatus) (*model.Order, error) {
	o, err := scanOrder(s.q.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, updated_at = $3 WHERE id = $4 RETURNING `+orderColumns,
		status, payment, time.Now().UTC(), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return o, nil
}

func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus) (*model.Order, error) {
	o, err := scanOrder(s.q.QueryRowContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3 RETURNING `+orderColumns,
		payment, time.Now().UTC(), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return o, nil
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return apperror.Storage(err)
	}
	return checkAffected(res, ErrOrderNotFound)
}
