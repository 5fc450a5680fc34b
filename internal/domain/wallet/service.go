package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultTopUpDescription = "Wallet Top-up"

// DefaultMaxTopUp is the per-request top-up ceiling.
var DefaultMaxTopUp = decimal.NewFromInt(1_000_000)

var (
	ErrInvalidAmount     = apperror.New(apperror.ErrValidation, "amount must be greater than zero")
	ErrAmountTooLarge    = apperror.New(apperror.ErrValidation, "amount exceeds the top-up limit")
	ErrAmountPrecision   = fmt.Errorf("%w: at most two decimal places are allowed", ErrInvalidAmount)
	ErrInsufficientFunds = store.ErrInsufficientFunds
	ErrUserNotFound      = store.ErrUserNotFound
)

// Result is the outcome of a balance mutation.
type Result struct {
	Balance     decimal.Decimal          `json:"balance"`
	Transaction *model.WalletTransaction `json:"transaction"`
}

// Info is a wallet overview.
type Info struct {
	UserID       string                    `json:"userId"`
	Balance      decimal.Decimal           `json:"balance"`
	Transactions []model.WalletTransaction `json:"transactions"`
}

type Service struct {
	store     store.Store
	publisher events.Publisher
	logger    *zap.Logger
	maxTopUp  decimal.Decimal
}

func NewService(s store.Store, publisher events.Publisher, maxTopUp decimal.Decimal, logger *zap.Logger) *Service {
	if !maxTopUp.IsPositive() {
		maxTopUp = DefaultMaxTopUp
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, publisher: publisher, logger: logger, maxTopUp: maxTopUp}
}

// Bind returns a copy of the service operating inside tx. The copy does not
// publish events; the caller announces them after commit.
func (s *Service) Bind(tx store.Store) *Service {
	return &Service{store: tx, logger: s.logger, maxTopUp: s.maxTopUp}
}

// GetBalance returns 0 for users without a recorded balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	balance, err := s.store.GetBalance(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return decimal.Zero, nil
	}
	return balance, err
}

func (s *Service) TopUp(ctx context.Context, userID string, amount decimal.Decimal, description string) (*Result, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(s.maxTopUp) {
		return nil, fmt.Errorf("%w: maximum is %s", ErrAmountTooLarge, s.maxTopUp.StringFixed(2))
	}
	if description == "" {
		description = DefaultTopUpDescription
	}
	return s.Credit(ctx, userID, amount, description)
}

// Credit adds amount to the balance without the top-up ceiling. It is used
// for refunds and bonuses.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*Result, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	return s.record(ctx, userID, model.TransactionCredit, amount, description)
}

func (s *Service) Deduct(ctx context.Context, userID string, amount decimal.Decimal, description string) (*Result, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	return s.record(ctx, userID, model.TransactionDebit, amount, description)
}

// checkAmount rejects non-positive amounts and amounts the ledger columns
// would round.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !model.FitsMoneyScale(amount) {
		return ErrAmountPrecision
	}
	return nil
}

// record moves the balance and appends the matching ledger entry in one
// transaction.
func (s *Service) record(ctx context.Context, userID string, typ model.TransactionType, amount decimal.Decimal, description string) (*Result, error) {
	var result *Result
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		var before, after decimal.Decimal
		var err error
		if typ == model.TransactionCredit {
			before, after, err = tx.CreditBalance(ctx, userID, amount)
		} else {
			before, after, err = tx.DebitBalance(ctx, userID, amount)
		}
		if errors.Is(err, store.ErrInsufficientFunds) {
			available, balErr := tx.GetBalance(ctx, userID)
			if balErr != nil {
				return balErr
			}
			return fmt.Errorf("%w: required %s, available %s",
				ErrInsufficientFunds, amount.StringFixed(2), available.StringFixed(2))
		}
		if err != nil {
			return err
		}

		t := &model.WalletTransaction{
			ID:            uuid.New().String(),
			UserID:        userID,
			Type:          typ,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Description:   description,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.AppendWalletTransaction(ctx, t); err != nil {
			return err
		}
		result = &Result{Balance: after, Transaction: t}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet transaction recorded",
		zap.String("user_id", userID),
		zap.String("type", string(typ)),
		zap.String("amount", amount.String()),
		zap.String("balance", result.Balance.String()))
	s.Announce(ctx, result.Transaction)
	return result, nil
}

// Announce publishes wallet.transaction_recorded for t.
func (s *Service) Announce(ctx context.Context, t *model.WalletTransaction) {
	if s.publisher == nil || t == nil {
		return
	}
	events.Emit(ctx, s.publisher, s.logger, events.WalletTransactionRecorded, t.UserID, events.WalletTransactionPayload{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
	})
}

// History returns the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	return s.store.ListWalletTransactions(ctx, userID)
}

func (s *Service) GetWalletInfo(ctx context.Context, userID string) (*Info, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Info{UserID: userID, Balance: balance, Transactions: history}, nil
}

// InitializeBalance zeroes a new user's balance. Calling it again is a no-op.
func (s *Service) InitializeBalance(ctx context.Context, userID string) error {
	return s.store.InitializeBalance(ctx, userID)
}
