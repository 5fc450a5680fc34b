package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, nil), mock
}

// ============================================
// Ledger
// ============================================

func TestDebitBalance_Success(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET balance = balance - $1")).
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("60.00"))

	before, after, err := s.DebitBalance(context.Background(), "user-1", decimal.RequireFromString("40"))
	require.NoError(t, err)
	assert.True(t, before.Equal(decimal.RequireFromString("100")))
	assert.True(t, after.Equal(decimal.RequireFromString("60")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitBalance_InsufficientFunds(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET balance = balance - $1")).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	_, _, err := s.DebitBalance(context.Background(), "user-1", decimal.RequireFromString("500"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitBalance_UnknownUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET balance = balance - $1")).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	_, _, err := s.DebitBalance(context.Background(), "ghost", decimal.RequireFromString("5"))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreditBalance_ReturnsBeforeAndAfter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET balance = balance + $1")).
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("150.00"))

	before, after, err := s.CreditBalance(context.Background(), "user-1", decimal.RequireFromString("50"))
	require.NoError(t, err)
	assert.Equal(t, "100", before.String())
	assert.Equal(t, "150", after.String())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateUser(context.Background(), &model.User{ID: "u", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestGetBalance_StorageError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance FROM users")).
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetBalance(context.Background(), "user-1")
	assert.ErrorIs(t, err, apperror.ErrStorage)
}

func userRow(id, name string, role model.Role) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "role", "balance", "created_at", "updated_at"}).
		AddRow(id, id+"@example.com", "hash", name, string(role), "25.00", now, now)
}

func TestListUsers(t *testing.T) {
	s, mock := newMockStore(t)

	rows := userRow("user-1", "Ann", model.RoleCustomer)
	rows.AddRow("user-2", "user-2@example.com", "hash", "Bob", "admin", "0.00", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at, id")).WillReturnRows(rows)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ann", users[0].Name)
	assert.Equal(t, model.RoleAdmin, users[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_WritesNameAndRoleOnly(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET name = $1, role = $2, updated_at = $3 WHERE id = $4 RETURNING")).
		WithArgs("Ann Lee", "admin", now, "user-1").
		WillReturnRows(userRow("user-1", "Ann Lee", model.RoleAdmin))

	u, err := s.UpdateUser(context.Background(), &model.User{
		ID: "user-1", Name: "Ann Lee", Role: model.RoleAdmin, UpdatedAt: now,
		Balance: decimal.NewFromInt(1_000_000),
	})
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(decimal.NewFromInt(25)), u.Balance.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_Unknown(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET name")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.UpdateUser(context.Background(), &model.User{ID: "ghost"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "deleted",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
					WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "unknown",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: ErrUserNotFound,
		},
		{
			name: "has orders",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).WillReturnError(&pq.Error{Code: "23503"})
			},
			wantErr: ErrUserHasOrders,
		},
		{
			name: "storage",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).WillReturnError(errors.New("connection reset"))
			},
			wantErr: apperror.ErrStorage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setup(mock)

			err := s.DeleteUser(context.Background(), "user-1")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ============================================
// Stock
// ============================================

func productRow(stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "description", "price", "stock", "category_id", "image_url", "is_active", "created_at", "updated_at"}).
		AddRow("prod-1", "Widget", "", "20.00", stock, nil, nil, true, now, now)
}

func TestAdjustStock_Decrement(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET stock = stock + $1")).
		WithArgs(-3, sqlmock.AnyArg(), "prod-1").
		WillReturnRows(productRow(7))

	p, err := s.AdjustStock(context.Background(), "prod-1", -3)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
	assert.Empty(t, p.CategoryID)
}

func TestAdjustStock_WouldGoNegative(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products SET stock = stock + $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM products WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err := s.AdjustStock(context.Background(), "prod-1", -50)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Transactions
// ============================================

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WithArgs("order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(tx Store) error {
		return tx.DeleteOrder(context.Background(), "order-1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(tx Store) error {
		return tx.DeleteOrder(context.Background(), "missing")
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(tx Store) error {
		return tx.WithinTx(context.Background(), func(inner Store) error {
			assert.Same(t, tx, inner)
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrder_LocksInsideTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(tx Store) error {
		_, err := tx.GetOrder(context.Background(), "order-1")
		return err
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
