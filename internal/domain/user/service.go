package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/auth"
	"github.com/example/ec-wallet-shop/internal/domain/wallet"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const signupBonusDescription = "Signup bonus"

var (
	ErrUserNotFound       = store.ErrUserNotFound
	ErrEmailTaken         = store.ErrEmailTaken
	ErrInvalidEmail       = apperror.New(apperror.ErrValidation, "a valid email is required")
	ErrInvalidName        = apperror.New(apperror.ErrValidation, "name is required")
	ErrInvalidCredentials = apperror.New(apperror.ErrUnauthorized, "invalid email or password")
	ErrInvalidRole        = apperror.New(apperror.ErrValidation, "role must be customer or admin")
	ErrUserHasOrders      = store.ErrUserHasOrders
)

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// UpdateInput carries the fields an administrator may change. Nil fields are
// left as they are. Balances only move through the wallet.
type UpdateInput struct {
	Name *string     `json:"name"`
	Role *model.Role `json:"role"`
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	User        *model.User `json:"user"`
}

// Service handles registration and authentication.
type Service struct {
	store       store.Store
	wallet      *wallet.Service
	tokens      *auth.JWTService
	signupBonus decimal.Decimal
	logger      *zap.Logger
}

func NewService(s store.Store, w *wallet.Service, tokens *auth.JWTService, signupBonus decimal.Decimal, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, wallet: w, tokens: tokens, signupBonus: signupBonus, logger: logger}
}

// Register creates a customer account with an initialized wallet.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	return s.RegisterWithRole(ctx, in, model.RoleCustomer)
}

func (s *Service) RegisterWithRole(ctx context.Context, in RegisterInput, role model.Role) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, ErrInvalidEmail
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		Balance:      decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var bonus *wallet.Result
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		if err := tx.InitializeBalance(ctx, u.ID); err != nil {
			return err
		}
		if !s.signupBonus.IsPositive() {
			return nil
		}
		bonus, err = s.wallet.Bind(tx).Credit(ctx, u.ID, s.signupBonus, signupBonusDescription)
		return err
	})
	if err != nil {
		return nil, err
	}

	if bonus != nil {
		u.Balance = bonus.Balance
		s.wallet.Announce(ctx, bonus.Transaction)
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(role)))
	return u, nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return &Session{AccessToken: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns every account, oldest first.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.User, error) {
	var updated *model.User
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrInvalidName
			}
			u.Name = name
		}
		if in.Role != nil {
			if *in.Role != model.RoleCustomer && *in.Role != model.RoleAdmin {
				return ErrInvalidRole
			}
			u.Role = *in.Role
		}
		u.UpdatedAt = time.Now().UTC()
		updated, err = tx.UpdateUser(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated", zap.String("user_id", id), zap.String("role", string(updated.Role)))
	return updated, nil
}

// Delete removes an account and its wallet history. Accounts that have
// placed orders are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}
