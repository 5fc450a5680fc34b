package store

import (
	"context"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound      = apperror.New(apperror.ErrNotFound, "user not found")
	ErrProductNotFound   = apperror.New(apperror.ErrNotFound, "product not found")
	ErrOrderNotFound     = apperror.New(apperror.ErrNotFound, "order not found")
	ErrCategoryNotFound  = apperror.New(apperror.ErrNotFound, "category not found")
	ErrEmailTaken        = apperror.New(apperror.ErrConflict, "email already registered")
	ErrUserHasOrders     = apperror.New(apperror.ErrConflict, "user has orders and cannot be deleted")
	ErrInsufficientFunds = apperror.New(apperror.ErrInsufficientFunds, "insufficient funds")
	ErrInsufficientStock = apperror.New(apperror.ErrInsufficientStock, "insufficient stock")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ListUsers returns every account, oldest first.
	ListUsers(ctx context.Context) ([]model.User, error)
	// UpdateUser writes the name and role of u and returns the stored row.
	// Email, password and balance are never written here.
	UpdateUser(ctx context.Context, u *model.User) (*model.User, error)
	// DeleteUser removes the account and its ledger. It fails with
	// ErrUserHasOrders while orders reference the user.
	DeleteUser(ctx context.Context, id string) error
}

// LedgerStore owns user balances and the append-only wallet transaction log.
// Credit and Debit are single atomic statements and return the balance
// before and after the change.
type LedgerStore interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (before, after decimal.Decimal, err error)
	// DebitBalance fails with ErrInsufficientFunds when the balance is below amount.
	DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (before, after decimal.Decimal, err error)
	// InitializeBalance zeroes the balance of a user without ledger history.
	InitializeBalance(ctx context.Context, userID string) error
	AppendWalletTransaction(ctx context.Context, t *model.WalletTransaction) error
	// ListWalletTransactions returns the user's entries, newest first.
	ListWalletTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error)
}

// ProductStore persists the catalog. AdjustStock is the only path that
// writes stock.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *model.Product) error
	// GetProduct locks the row when called inside a transaction.
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// AdjustStock adds delta to the stock, failing with ErrInsufficientStock
	// if the result would be negative.
	AdjustStock(ctx context.Context, id string, delta int) (*model.Product, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, c *model.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// OrderStore persists orders. Item snapshots are written once by CreateOrder;
// afterwards only the status fields change.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	// GetOrder locks the row when called inside a transaction.
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, payment model.PaymentStatus) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// Store is the transactional relational store used by every domain service.
type Store interface {
	UserStore
	LedgerStore
	ProductStore
	CategoryStore
	OrderStore

	// WithinTx runs fn inside a transaction. Returning an error rolls back
	// every write made through tx. Calling WithinTx on a transactional
	// store joins the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
