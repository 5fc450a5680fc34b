package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
)

const userColumns = `id, email, password_hash, name, role, balance, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Balance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.Balance, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return apperror.Storage(err)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperror.Storage(err)
		}
		users = append(users, *u)
	}
	return users, apperror.Storage(rows.Err())
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) (*model.User, error) {
	updated, err := scanUser(s.q.QueryRowContext(ctx,
		`UPDATE users SET name = $1, role = $2, updated_at = $3 WHERE id = $4 RETURNING `+userColumns,
		u.Name, u.Role, u.UpdatedAt, u.ID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return updated, nil
}

// DeleteUser relies on the orders foreign key to refuse accounts with
// order history; wallet transactions cascade.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return ErrUserHasOrders
	}
	if err != nil {
		return apperror.Storage(err)
	}
	return checkAffected(res, ErrUserNotFound)
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.q.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, apperror.Storage(err)
	}
	return balance, nil
}

func (s *PostgresStore) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var after decimal.Decimal
	err := s.q.QueryRowContext(ctx,
		`UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance`,
		amount, userID,
	).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, apperror.Storage(err)
	}
	return after.Sub(amount), after, nil
}

// DebitBalance subtracts amount only if the balance covers it, so concurrent
// debits can never drive the balance negative.
func (s *PostgresStore) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var after decimal.Decimal
	err := s.q.QueryRowContext(ctx,
		`UPDATE users SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1 RETURNING balance`,
		amount, userID,
	).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		found, existsErr := s.exists(ctx, "users", userID)
		if existsErr != nil {
			return decimal.Zero, decimal.Zero, existsErr
		}
		if !found {
			return decimal.Zero, decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, decimal.Zero, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, apperror.Storage(err)
	}
	return after.Add(amount), after, nil
}

func (s *PostgresStore) InitializeBalance(ctx context.Context, userID string) error {
	found, err := s.exists(ctx, "users", userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE users SET balance = 0 WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM wallet_transactions WHERE user_id = $1)`,
		userID,
	)
	return apperror.Storage(err)
}

func (s *PostgresStore) AppendWalletTransaction(ctx context.Context, t *model.WalletTransaction) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, user_id, type, amount, balance_before, balance_after, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter, t.Description, t.CreatedAt,
	)
	return apperror.Storage(err)
}

func (s *PostgresStore) ListWalletTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, type, amount, balance_before, balance_after, description, created_at
		 FROM wallet_transactions WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	defer rows.Close()

	txs := []model.WalletTransaction{}
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, apperror.Storage(err)
		}
		txs = append(txs, t)
	}
	return txs, apperror.Storage(rows.Err())
}
