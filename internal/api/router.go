package api

import (
	"net/http"
	"time"

	"github.com/example/ec-wallet-shop/internal/api/middleware"
	"github.com/example/ec-wallet-shop/internal/auth"
	"github.com/example/ec-wallet-shop/internal/logger"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// RouterConfig holds every handler group the router mounts.
type RouterConfig struct {
	AuthHandlers      *AuthHandlers
	WalletHandlers    *WalletHandlers
	OrderHandlers     *OrderHandlers
	ProductHandlers   *ProductHandlers
	CategoryHandlers  *CategoryHandlers
	InventoryHandlers *InventoryHandlers
	CartHandlers      *CartHandlers
	JWTService        *auth.JWTService
	Logger            *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware(cfg.Logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSONError(w, "Route not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	})

	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			h := cfg.AuthHandlers
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(requireAuth).Get("/me", h.Me)
			r.With(requireAuth).Get("/profile", h.Me)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, adminOnly)
				r.Get("/users", h.ListUsers)
				r.Put("/users/{id}", h.UpdateUser)
				r.Delete("/users/{id}", h.DeleteUser)
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			h := cfg.WalletHandlers
			r.Use(requireAuth)
			r.Get("/", h.GetWallet)
			r.Get("/balance", h.GetBalance)
			r.Post("/top-up", h.TopUp)
			r.Get("/transactions", h.GetTransactions)
		})

		r.Route("/orders", func(r chi.Router) {
			h := cfg.OrderHandlers
			r.Use(requireAuth)
			r.Get("/my-orders", h.GetMyOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/cancel", h.CancelOrder)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", h.ListOrders)
				r.Get("/status/{status}", h.ListOrdersByStatus)
				r.Put("/{id}/status", h.UpdateStatus)
				r.Put("/{id}/payment", h.UpdatePaymentStatus)
				r.Delete("/{id}", h.DeleteOrder)
			})
		})

		r.Route("/products", func(r chi.Router) {
			h := cfg.ProductHandlers
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, adminOnly)
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Put("/{id}/stock", h.UpdateStock)
				r.Delete("/{id}", h.DeleteProduct)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			h := cfg.CategoryHandlers
			r.Get("/", h.ListCategories)
			r.Get("/{id}", h.GetCategory)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, adminOnly)
				r.Post("/", h.CreateCategory)
				r.Put("/{id}", h.UpdateCategory)
				r.Delete("/{id}", h.DeleteCategory)
			})
		})

		r.Route("/inventory", func(r chi.Router) {
			h := cfg.InventoryHandlers
			r.Use(requireAuth, adminOnly)
			r.Get("/report", h.Report)
			r.Get("/low-stock", h.LowStock)
			r.Get("/out-of-stock", h.OutOfStock)
			r.Get("/value", h.TotalValue)
			r.Get("/count", h.StockCount)
			r.Post("/{id}/add", h.AddStock)
			r.Post("/{id}/remove", h.RemoveStock)
			r.Put("/{id}/set", h.SetStock)
		})

		r.Route("/cart", func(r chi.Router) {
			h := cfg.CartHandlers
			r.Use(requireAuth)
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{productId}", h.UpdateItem)
			r.Delete("/items/{productId}", h.RemoveItem)
			r.Delete("/", h.ClearCart)
			r.Post("/checkout", h.Checkout)
		})
	})

	return r
}
