package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"github.com/example/ec-wallet-shop/internal/domain/product"
	"github.com/example/ec-wallet-shop/internal/domain/wallet"
	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store/mocks"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	service   *Service
	store     *mocks.MemoryStore
	wallet    *wallet.Service
	publisher *mocks.MockPublisher
}

func newTestOrderService() *testEnv {
	memStore := mocks.NewMemoryStore()
	publisher := mocks.NewMockPublisher()
	walletSvc := wallet.NewService(memStore, publisher, decimal.Zero, nil)
	productSvc := product.NewService(memStore, nil)
	return &testEnv{
		service:   NewService(memStore, walletSvc, productSvc, publisher, nil),
		store:     memStore,
		wallet:    walletSvc,
		publisher: publisher,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *testEnv) seedUser(t *testing.T, id string, balance string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, e.store.CreateUser(ctx, &model.User{
		ID: id, Email: id + "@example.com", Name: id, Role: model.RoleCustomer,
		CreatedAt: now, UpdatedAt: now,
	}))
	if b := dec(balance); b.IsPositive() {
		_, err := e.wallet.TopUp(ctx, id, b, "")
		require.NoError(t, err)
	}
}

func (e *testEnv) seedProduct(t *testing.T, id, name, price string, stock int, active bool) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.store.CreateProduct(context.Background(), &model.Product{
		ID: id, Name: name, Price: dec(price), Stock: stock, IsActive: active,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func (e *testEnv) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := e.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (e *testEnv) balanceOf(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := e.wallet.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func orderInput(userID string, items ...ItemRequest) CreateInput {
	return CreateInput{
		UserID:          userID,
		Items:           items,
		ShippingAddress: "1 Market St",
		PaymentMethod:   "wallet",
	}
}

// placeOrder creates an order and walks it to the given status.
func (e *testEnv) placeOrder(t *testing.T, userID string, to ...model.OrderStatus) *model.Order {
	t.Helper()
	ctx := context.Background()
	o, err := e.service.Create(ctx, orderInput(userID, ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	for _, s := range to {
		o, err = e.service.UpdateStatus(ctx, o.ID, s)
		require.NoError(t, err)
	}
	return o
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100.00")
	env.seedProduct(t, "p1", "Mug", "12.50", 10, true)
	env.seedProduct(t, "p2", "Pen", "1.25", 5, true)

	o, err := env.service.Create(ctx, orderInput("u1",
		ItemRequest{ProductID: "p1", Quantity: 2},
		ItemRequest{ProductID: "p2", Quantity: 4},
	))

	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	assert.True(t, o.TotalAmount.Equal(dec("30.00")), "total %s", o.TotalAmount)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Mug", o.Items[0].ProductName)
	assert.True(t, o.Items[0].UnitPrice.Equal(dec("12.50")))
	assert.True(t, o.Items[0].TotalPrice.Equal(dec("25.00")))
	assert.Contains(t, o.Notes, "Paid by wallet transaction ")

	assert.True(t, env.balanceOf(t, "u1").Equal(dec("70.00")))
	assert.Equal(t, 8, env.stockOf(t, "p1"))
	assert.Equal(t, 1, env.stockOf(t, "p2"))

	history, err := env.wallet.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.TransactionDebit, history[0].Type)
	assert.Equal(t, "Payment for order "+o.ID, history[0].Description)

	stored, err := env.service.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)

	placed := env.publisher.OfType(events.OrderPlaced)
	require.Len(t, placed, 1)
	var payload events.OrderPlacedPayload
	require.NoError(t, placed[0].Decode(&payload))
	assert.Equal(t, o.ID, payload.OrderID)
	assert.Equal(t, history[0].ID, payload.WalletTransactionID)
}

func TestService_Create_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)

	o, err := env.service.Create(ctx, orderInput("u1", ItemRequest{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	p, err := env.store.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.Price = dec("99")
	require.NoError(t, env.store.UpdateProduct(ctx, p))

	stored, err := env.service.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].UnitPrice.Equal(dec("10")))
	assert.True(t, stored.TotalAmount.Equal(dec("10")))
}

func TestService_Create_KeepsUserNotes(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	in := orderInput("u1", ItemRequest{ProductID: "p1", Quantity: 1})
	in.Notes = "  leave at door "

	o, err := env.service.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Regexp(t, `^leave at door\nPaid by wallet transaction \S+$`, o.Notes)
}

func TestService_Create_Validation(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	item := ItemRequest{ProductID: "p1", Quantity: 1}

	long := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'x'
		}
		return string(b)
	}

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
		want   error
	}{
		{"no items", func(in *CreateInput) { in.Items = nil }, ErrEmptyOrder},
		{"zero quantity", func(in *CreateInput) { in.Items = []ItemRequest{{ProductID: "p1", Quantity: 0}} }, ErrInvalidQuantity},
		{"negative quantity", func(in *CreateInput) { in.Items = []ItemRequest{{ProductID: "p1", Quantity: -3}} }, ErrInvalidQuantity},
		{"blank product id", func(in *CreateInput) { in.Items = []ItemRequest{{ProductID: " ", Quantity: 1}} }, ErrMissingProductID},
		{"blank address", func(in *CreateInput) { in.ShippingAddress = "   " }, ErrMissingAddress},
		{"long address", func(in *CreateInput) { in.ShippingAddress = long(501) }, ErrFieldTooLong},
		{"blank payment method", func(in *CreateInput) { in.PaymentMethod = "" }, ErrMissingPaymentMethod},
		{"long notes", func(in *CreateInput) { in.Notes = long(1001) }, ErrFieldTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := orderInput("u1", item)
			tt.mutate(&in)

			_, err := env.service.Create(context.Background(), in)

			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
	assert.Equal(t, 10, env.stockOf(t, "p1"))
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("100")))
}

func TestService_Create_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		items    []ItemRequest
		wantErr  error
		wantKind error
		wantMsg  string
	}{
		{
			name:     "unknown product",
			balance:  "100",
			items:    []ItemRequest{{ProductID: "ghost", Quantity: 1}},
			wantErr:  ErrProductNotFound,
			wantKind: apperror.ErrNotFound,
			wantMsg:  "ghost",
		},
		{
			name:     "inactive product",
			balance:  "100",
			items:    []ItemRequest{{ProductID: "off", Quantity: 1}},
			wantErr:  ErrProductInactive,
			wantKind: apperror.ErrInactive,
			wantMsg:  "Retired",
		},
		{
			name:     "not enough stock",
			balance:  "1000",
			items:    []ItemRequest{{ProductID: "p1", Quantity: 11}},
			wantErr:  ErrInsufficientStock,
			wantKind: apperror.ErrInsufficientStock,
			wantMsg:  "Mug",
		},
		{
			name:     "not enough money",
			balance:  "15",
			items:    []ItemRequest{{ProductID: "p1", Quantity: 2}},
			wantErr:  ErrInsufficientFunds,
			wantKind: apperror.ErrInsufficientFunds,
			wantMsg:  "required 20.00, available 15.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestOrderService()
			ctx := context.Background()
			env.seedUser(t, "u1", tt.balance)
			env.seedProduct(t, "p1", "Mug", "10", 10, true)
			env.seedProduct(t, "off", "Retired", "10", 10, false)

			_, err := env.service.Create(ctx, orderInput("u1", tt.items...))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Contains(t, err.Error(), tt.wantMsg)

			assert.Equal(t, 10, env.stockOf(t, "p1"))
			assert.True(t, env.balanceOf(t, "u1").Equal(dec(tt.balance)))
			orders, err := env.service.ListByUser(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, orders)
			assert.Empty(t, env.publisher.OfType(events.OrderPlaced))
		})
	}
}

func TestService_Create_UnknownUser(t *testing.T) {
	env := newTestOrderService()
	env.seedProduct(t, "p1", "Mug", "10", 10, true)

	_, err := env.service.Create(context.Background(), orderInput("ghost", ItemRequest{ProductID: "p1", Quantity: 1}))

	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 10, env.stockOf(t, "p1"))
}

func TestService_Create_DuplicateLinesExceedingStock(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "1000")
	env.seedProduct(t, "p1", "Mug", "10", 5, true)

	_, err := env.service.Create(context.Background(), orderInput("u1",
		ItemRequest{ProductID: "p1", Quantity: 3},
		ItemRequest{ProductID: "p1", Quantity: 3},
	))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "requested 6, available 5")
	assert.Equal(t, 5, env.stockOf(t, "p1"))
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("1000")))
}

func TestService_Create_LocksProductsInIDOrder(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "1000")
	for _, id := range []string{"b", "c", "a"} {
		env.seedProduct(t, id, "Item "+id, "1", 10, true)
	}
	env.store.ResetCalls()

	o, err := env.service.Create(ctx, orderInput("u1",
		ItemRequest{ProductID: "c", Quantity: 1},
		ItemRequest{ProductID: "a", Quantity: 2},
		ItemRequest{ProductID: "b", Quantity: 1},
		ItemRequest{ProductID: "a", Quantity: 1},
	))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, env.store.Calls("GetProduct"))
	assert.Equal(t, []string{"a", "a", "b", "c"}, env.store.Calls("AdjustStock"))
	var kept []string
	for _, item := range o.Items {
		kept = append(kept, item.ProductID)
	}
	assert.Equal(t, []string{"c", "a", "b", "a"}, kept, "items keep the caller's order")

	env.store.ResetCalls()
	_, err = env.service.Cancel(ctx, o.ID)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b", "c"}, env.store.Calls("AdjustStock"))
	assert.Equal(t, 10, env.stockOf(t, "a"))
}

func TestService_Create_RollsBackWhenOrderInsertFails(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	env.store.FailOn("CreateOrder", apperror.Storage(errors.New("disk full")))

	_, err := env.service.Create(ctx, orderInput("u1", ItemRequest{ProductID: "p1", Quantity: 3}))

	assert.ErrorIs(t, err, apperror.ErrStorage)
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("100")))
	assert.Equal(t, 10, env.stockOf(t, "p1"))
	history, err := env.wallet.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the seed top-up remains")
	assert.Empty(t, env.publisher.OfType(events.OrderPlaced))
}

func TestService_Create_FreeOrderSkipsWallet(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "0")
	env.seedProduct(t, "gift", "Sticker", "0", 3, true)

	o, err := env.service.Create(ctx, orderInput("u1", ItemRequest{ProductID: "gift", Quantity: 1}))

	require.NoError(t, err)
	assert.True(t, o.TotalAmount.IsZero())
	assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	history, err := env.wallet.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_Create_ConcurrentOrdersNeverOversell(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedProduct(t, "p1", "Mug", "10", 5, true)
	const buyers = 12
	for i := 0; i < buyers; i++ {
		env.seedUser(t, fmt.Sprintf("u%d", i), "10")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.service.Create(ctx, orderInput(fmt.Sprintf("u%d", i), ItemRequest{ProductID: "p1", Quantity: 1}))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, env.stockOf(t, "p1"))
}

func TestService_Create_ConcurrentOrdersNeverOverdraw(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "30")
	env.seedProduct(t, "p1", "Mug", "10", 100, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.service.Create(ctx, orderInput("u1", ItemRequest{ProductID: "p1", Quantity: 1}))
		}()
	}
	wg.Wait()

	assert.True(t, env.balanceOf(t, "u1").IsZero())
	assert.Equal(t, 97, env.stockOf(t, "p1"))
	orders, err := env.service.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

// ============================================
// State Machine Tests
// ============================================

var allStatuses = []model.OrderStatus{
	model.OrderPending, model.OrderConfirmed, model.OrderProcessing, model.OrderShipped,
	model.OrderDelivered, model.OrderCancelled, model.OrderRefunded,
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]model.OrderStatus]bool{
		{model.OrderPending, model.OrderConfirmed}:    true,
		{model.OrderPending, model.OrderCancelled}:    true,
		{model.OrderConfirmed, model.OrderProcessing}: true,
		{model.OrderConfirmed, model.OrderCancelled}:  true,
		{model.OrderProcessing, model.OrderShipped}:   true,
		{model.OrderProcessing, model.OrderCancelled}: true,
		{model.OrderShipped, model.OrderDelivered}:    true,
		{model.OrderShipped, model.OrderCancelled}:    true,
		{model.OrderDelivered, model.OrderRefunded}:   true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]model.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, IsTerminal(model.OrderCancelled))
	assert.True(t, IsTerminal(model.OrderRefunded))
	assert.False(t, IsTerminal(model.OrderDelivered))
}

// pathTo lists the transitions that take a fresh order to s.
func pathTo(s model.OrderStatus) []model.OrderStatus {
	forward := []model.OrderStatus{model.OrderConfirmed, model.OrderProcessing, model.OrderShipped, model.OrderDelivered}
	switch s {
	case model.OrderPending:
		return nil
	case model.OrderCancelled:
		return []model.OrderStatus{model.OrderCancelled}
	case model.OrderRefunded:
		return append(forward, model.OrderRefunded)
	}
	for i, f := range forward {
		if f == s {
			return forward[:i+1]
		}
	}
	return nil
}

func TestService_UpdateStatus_RejectsEveryIllegalPair(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				continue
			}
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				env := newTestOrderService()
				env.seedUser(t, "u1", "100")
				env.seedProduct(t, "p1", "Mug", "10", 10, true)
				o := env.placeOrder(t, "u1", pathTo(from)...)
				require.Equal(t, from, o.Status)
				balance := env.balanceOf(t, "u1")
				stock := env.stockOf(t, "p1")

				_, err := env.service.UpdateStatus(context.Background(), o.ID, to)

				assert.ErrorIs(t, err, ErrIllegalTransition)
				assert.ErrorIs(t, err, apperror.ErrIllegalTransition)
				stored, err := env.service.Get(context.Background(), o.ID)
				require.NoError(t, err)
				assert.Equal(t, from, stored.Status)
				assert.True(t, env.balanceOf(t, "u1").Equal(balance))
				assert.Equal(t, stock, env.stockOf(t, "p1"))
			})
		}
	}
}

func TestService_UpdateStatus_ForwardPath(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)

	o := env.placeOrder(t, "u1", model.OrderConfirmed, model.OrderProcessing, model.OrderShipped, model.OrderDelivered)

	assert.Equal(t, model.OrderDelivered, o.Status)
	assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("90")))
	assert.Len(t, env.publisher.OfType(events.OrderStatusChanged), 4)
}

func TestService_UpdateStatus_SkippingStepsIsIllegal(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1")

	_, err := env.service.UpdateStatus(context.Background(), o.ID, model.OrderShipped)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Contains(t, err.Error(), "cannot transition from pending to shipped")

	_, err = env.service.UpdateStatus(context.Background(), o.ID, model.OrderDelivered)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestService_UpdateStatus_InvalidInputs(t *testing.T) {
	env := newTestOrderService()

	_, err := env.service.UpdateStatus(context.Background(), "any", model.OrderStatus("lost"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.service.UpdateStatus(context.Background(), "missing", model.OrderConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// ============================================
// Cancel and Refund Tests
// ============================================

func TestService_Cancel_RestoresStockAndRefunds(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o, err := env.service.Create(ctx, orderInput("u1", ItemRequest{ProductID: "p1", Quantity: 3}))
	require.NoError(t, err)
	require.Equal(t, 7, env.stockOf(t, "p1"))

	cancelled, err := env.service.Cancel(ctx, o.ID)

	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 10, env.stockOf(t, "p1"))
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("100")))

	history, err := env.wallet.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.TransactionCredit, history[0].Type)
	assert.Contains(t, history[0].Description, o.ID)
	assert.Len(t, env.publisher.OfType(events.OrderPaymentStatusChanged), 1)

	_, err = env.service.Cancel(ctx, o.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, 10, env.stockOf(t, "p1"))
}

func TestService_Cancel_FromShipped(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1", model.OrderConfirmed, model.OrderProcessing, model.OrderShipped)

	cancelled, err := env.service.Cancel(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, 10, env.stockOf(t, "p1"))
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("100")))
}

func TestService_Cancel_SkipsDeletedProducts(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	env.seedProduct(t, "p2", "Pen", "5", 10, true)
	o, err := env.service.Create(ctx, orderInput("u1",
		ItemRequest{ProductID: "p1", Quantity: 1},
		ItemRequest{ProductID: "p2", Quantity: 2},
	))
	require.NoError(t, err)
	require.NoError(t, env.store.DeleteProduct(ctx, "p1"))

	cancelled, err := env.service.Cancel(ctx, o.ID)

	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, 10, env.stockOf(t, "p2"))
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("100")))
}

func TestService_Cancel_UnpaidOrderIsNotRefunded(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1")
	_, err := env.service.UpdatePaymentStatus(ctx, o.ID, model.PaymentFailed)
	require.NoError(t, err)

	cancelled, err := env.service.Cancel(ctx, o.ID)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, cancelled.PaymentStatus)
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("90")))
	assert.Equal(t, 10, env.stockOf(t, "p1"))
}

func TestService_Refund_DeliveredOrder(t *testing.T) {
	env := newTestOrderService()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1", model.OrderConfirmed, model.OrderProcessing, model.OrderShipped, model.OrderDelivered)

	refunded, err := env.service.UpdateStatus(context.Background(), o.ID, model.OrderRefunded)

	require.NoError(t, err)
	assert.Equal(t, model.OrderRefunded, refunded.Status)
	assert.Equal(t, model.PaymentRefunded, refunded.PaymentStatus)
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("100")))
	assert.Equal(t, 9, env.stockOf(t, "p1"), "refunds do not restock")
}

func TestService_FreeOrderStaysPaidWhenCancelledOrRefunded(t *testing.T) {
	for _, path := range [][]model.OrderStatus{
		{model.OrderCancelled},
		{model.OrderConfirmed, model.OrderProcessing, model.OrderShipped, model.OrderDelivered, model.OrderRefunded},
	} {
		final := path[len(path)-1]
		t.Run(string(final), func(t *testing.T) {
			env := newTestOrderService()
			ctx := context.Background()
			env.seedUser(t, "u1", "0")
			env.seedProduct(t, "p1", "Sticker", "0", 3, true)

			o := env.placeOrder(t, "u1", path...)

			assert.Equal(t, final, o.Status)
			assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
			history, err := env.wallet.History(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, history)
			assert.Empty(t, env.publisher.OfType(events.OrderPaymentStatusChanged))
		})
	}
}

func TestService_Cancel_RollsBackWhenStatusWriteFails(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1")
	env.store.FailOn("UpdateOrderStatus", apperror.Storage(errors.New("lost connection")))

	_, err := env.service.Cancel(ctx, o.ID)

	assert.ErrorIs(t, err, apperror.ErrStorage)
	assert.Equal(t, 9, env.stockOf(t, "p1"))
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("90")))
	env.store.FailOn("UpdateOrderStatus", nil)
	stored, err := env.service.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, stored.Status)
}

// ============================================
// Payment Status, Delete and Query Tests
// ============================================

func TestService_UpdatePaymentStatus(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1")

	updated, err := env.service.UpdatePaymentStatus(ctx, o.ID, model.PaymentPending)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, updated.PaymentStatus)
	assert.Equal(t, model.OrderPending, updated.Status)
	assert.True(t, env.balanceOf(t, "u1").Equal(dec("90")))

	_, err = env.service.UpdatePaymentStatus(ctx, o.ID, model.PaymentStatus("settled"))
	assert.ErrorIs(t, err, ErrInvalidPaymentStatus)

	_, err = env.service.UpdatePaymentStatus(ctx, "missing", model.PaymentPaid)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_Delete(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	o := env.placeOrder(t, "u1")

	require.NoError(t, env.service.Delete(ctx, o.ID))

	_, err := env.service.Get(ctx, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 9, env.stockOf(t, "p1"))
	assert.ErrorIs(t, env.service.Delete(ctx, o.ID), ErrOrderNotFound)
}

func TestService_Queries(t *testing.T) {
	env := newTestOrderService()
	ctx := context.Background()
	env.seedUser(t, "u1", "100")
	env.seedUser(t, "u2", "100")
	env.seedProduct(t, "p1", "Mug", "10", 10, true)
	first := env.placeOrder(t, "u1")
	env.placeOrder(t, "u1", model.OrderConfirmed)
	env.placeOrder(t, "u2")

	mine, err := env.service.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := env.service.ListByStatus(ctx, model.OrderPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	filtered, err := env.service.List(ctx, model.OrderFilter{UserID: "u1", Status: model.OrderPending})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	_, err = env.service.ListByUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.service.ListByStatus(ctx, model.OrderStatus("bogus"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
