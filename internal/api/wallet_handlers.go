package api

import (
	"net/http"

	"github.com/example/ec-wallet-shop/internal/api/middleware"
	"github.com/example/ec-wallet-shop/internal/domain/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandlers struct {
	responder
	walletService *wallet.Service
}

func NewWalletHandlers(walletService *wallet.Service, logger *zap.Logger) *WalletHandlers {
	return &WalletHandlers{responder: newResponder(logger), walletService: walletService}
}

type topUpRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// GetWallet returns balance and full history.
func (h *WalletHandlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	info, err := h.walletService.GetWalletInfo(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *WalletHandlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.walletService.GetBalance(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (h *WalletHandlers) TopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.walletService.TopUp(r.Context(), middleware.GetUserID(r.Context()), req.Amount, req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *WalletHandlers) GetTransactions(w http.ResponseWriter, r *http.Request) {
	history, err := h.walletService.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}
