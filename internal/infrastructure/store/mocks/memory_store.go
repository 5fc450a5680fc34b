package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
)

type memData struct {
	users      map[string]model.User
	ledger     []model.WalletTransaction
	products   map[string]model.Product
	categories map[string]model.Category
	orders     map[string]model.Order
	orderIDs   []string
}

func (d *memData) clone() *memData {
	c := &memData{
		users:      make(map[string]model.User, len(d.users)),
		ledger:     append([]model.WalletTransaction(nil), d.ledger...),
		products:   make(map[string]model.Product, len(d.products)),
		categories: make(map[string]model.Category, len(d.categories)),
		orders:     make(map[string]model.Order, len(d.orders)),
		orderIDs:   append([]string(nil), d.orderIDs...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

type memState struct {
	mu       sync.Mutex
	data     *memData
	failures map[string]error
	calls    map[string][]string
}

// MemoryStore is an in-memory store.Store for tests. Transactions hold the
// store lock for their whole duration and restore a snapshot on error.
type MemoryStore struct {
	state *memState
	inTx  bool

	// TxCount counts committed and rolled back top-level transactions.
	TxCount int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		data: &memData{
			users:      make(map[string]model.User),
			products:   make(map[string]model.Product),
			categories: make(map[string]model.Category),
			orders:     make(map[string]model.Order),
		},
		failures: make(map[string]error),
		calls:    make(map[string][]string),
	}}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (m *MemoryStore) FailOn(method string, err error) {
	defer m.lock()()
	if err == nil {
		delete(m.state.failures, method)
		return
	}
	m.state.failures[method] = err
}

// Calls returns the ids passed to method, in call order. Only GetProduct and
// AdjustStock are recorded.
func (m *MemoryStore) Calls(method string) []string {
	defer m.lock()()
	return append([]string(nil), m.state.calls[method]...)
}

// ResetCalls forgets recorded calls.
func (m *MemoryStore) ResetCalls() {
	defer m.lock()()
	m.state.calls = make(map[string][]string)
}

func (m *MemoryStore) record(method, id string) {
	m.state.calls[method] = append(m.state.calls[method], id)
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.state.mu.Lock()
	return m.state.mu.Unlock
}

func (m *MemoryStore) fail(method string) error {
	return m.state.failures[method]
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if m.inTx {
		return fn(m)
	}

	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	m.TxCount++

	snapshot := m.state.data.clone()
	tx := &MemoryStore{state: m.state, inTx: true}
	if err := fn(tx); err != nil {
		m.state.data = snapshot
		return err
	}
	return nil
}

// ============================================
// Users and ledger
// ============================================

func (m *MemoryStore) CreateUser(ctx context.Context, u *model.User) error {
	defer m.lock()()
	if err := m.fail("CreateUser"); err != nil {
		return err
	}
	for _, existing := range m.state.data.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrEmailTaken
		}
	}
	m.state.data.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	defer m.lock()()
	if err := m.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := m.state.data.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer m.lock()()
	for _, u := range m.state.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]model.User, error) {
	defer m.lock()()
	if err := m.fail("ListUsers"); err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(m.state.data.users))
	for _, u := range m.state.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *model.User) (*model.User, error) {
	defer m.lock()()
	if err := m.fail("UpdateUser"); err != nil {
		return nil, err
	}
	existing, ok := m.state.data.users[u.ID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	existing.Name = u.Name
	existing.Role = u.Role
	existing.UpdatedAt = u.UpdatedAt
	m.state.data.users[u.ID] = existing
	return &existing, nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	defer m.lock()()
	if err := m.fail("DeleteUser"); err != nil {
		return err
	}
	if _, ok := m.state.data.users[id]; !ok {
		return store.ErrUserNotFound
	}
	for _, o := range m.state.data.orders {
		if o.UserID == id {
			return store.ErrUserHasOrders
		}
	}
	ledger := m.state.data.ledger[:0:0]
	for _, t := range m.state.data.ledger {
		if t.UserID != id {
			ledger = append(ledger, t)
		}
	}
	m.state.data.ledger = ledger
	delete(m.state.data.users, id)
	return nil
}

func (m *MemoryStore) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	defer m.lock()()
	if err := m.fail("GetBalance"); err != nil {
		return decimal.Zero, err
	}
	u, ok := m.state.data.users[userID]
	if !ok {
		return decimal.Zero, store.ErrUserNotFound
	}
	return u.Balance, nil
}

func (m *MemoryStore) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	defer m.lock()()
	if err := m.fail("CreditBalance"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	u, ok := m.state.data.users[userID]
	if !ok {
		return decimal.Zero, decimal.Zero, store.ErrUserNotFound
	}
	before := u.Balance
	u.Balance = before.Add(amount)
	u.UpdatedAt = time.Now().UTC()
	m.state.data.users[userID] = u
	return before, u.Balance, nil
}

func (m *MemoryStore) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	defer m.lock()()
	if err := m.fail("DebitBalance"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	u, ok := m.state.data.users[userID]
	if !ok {
		return decimal.Zero, decimal.Zero, store.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return decimal.Zero, decimal.Zero, store.ErrInsufficientFunds
	}
	before := u.Balance
	u.Balance = before.Sub(amount)
	u.UpdatedAt = time.Now().UTC()
	m.state.data.users[userID] = u
	return before, u.Balance, nil
}

func (m *MemoryStore) InitializeBalance(ctx context.Context, userID string) error {
	defer m.lock()()
	u, ok := m.state.data.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	for _, t := range m.state.data.ledger {
		if t.UserID == userID {
			return nil
		}
	}
	u.Balance = decimal.Zero
	m.state.data.users[userID] = u
	return nil
}

func (m *MemoryStore) AppendWalletTransaction(ctx context.Context, t *model.WalletTransaction) error {
	defer m.lock()()
	if err := m.fail("AppendWalletTransaction"); err != nil {
		return err
	}
	m.state.data.ledger = append(m.state.data.ledger, *t)
	return nil
}

func (m *MemoryStore) ListWalletTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	defer m.lock()()
	txs := []model.WalletTransaction{}
	for i := len(m.state.data.ledger) - 1; i >= 0; i-- {
		if t := m.state.data.ledger[i]; t.UserID == userID {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

// ============================================
// Catalog
// ============================================

func (m *MemoryStore) CreateProduct(ctx context.Context, p *model.Product) error {
	defer m.lock()()
	if err := m.fail("CreateProduct"); err != nil {
		return err
	}
	m.state.data.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	defer m.lock()()
	m.record("GetProduct", id)
	if err := m.fail("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := m.state.data.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &p, nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	defer m.lock()()
	if err := m.fail("ListProducts"); err != nil {
		return nil, err
	}
	products := []model.Product{}
	search := strings.ToLower(filter.Search)
	for _, p := range m.state.data.products {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.IsActive != nil && p.IsActive != *filter.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	defer m.lock()()
	existing, ok := m.state.data.products[p.ID]
	if !ok {
		return store.ErrProductNotFound
	}
	updated := *p
	updated.Stock = existing.Stock
	updated.CreatedAt = existing.CreatedAt
	m.state.data.products[p.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	defer m.lock()()
	if _, ok := m.state.data.products[id]; !ok {
		return store.ErrProductNotFound
	}
	delete(m.state.data.products, id)
	return nil
}

func (m *MemoryStore) AdjustStock(ctx context.Context, id string, delta int) (*model.Product, error) {
	defer m.lock()()
	m.record("AdjustStock", id)
	if err := m.fail("AdjustStock"); err != nil {
		return nil, err
	}
	p, ok := m.state.data.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	m.state.data.products[id] = p
	return &p, nil
}

func (m *MemoryStore) CreateCategory(ctx context.Context, c *model.Category) error {
	defer m.lock()()
	m.state.data.categories[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	defer m.lock()()
	c, ok := m.state.data.categories[id]
	if !ok {
		return nil, store.ErrCategoryNotFound
	}
	return &c, nil
}

func (m *MemoryStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	defer m.lock()()
	categories := []model.Category{}
	for _, c := range m.state.data.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (m *MemoryStore) UpdateCategory(ctx context.Context, c *model.Category) error {
	defer m.lock()()
	existing, ok := m.state.data.categories[c.ID]
	if !ok {
		return store.ErrCategoryNotFound
	}
	updated := *c
	updated.CreatedAt = existing.CreatedAt
	m.state.data.categories[c.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteCategory(ctx context.Context, id string) error {
	defer m.lock()()
	if _, ok := m.state.data.categories[id]; !ok {
		return store.ErrCategoryNotFound
	}
	delete(m.state.data.categories, id)
	return nil
}

// ============================================
// Orders
// ============================================

func copyOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o
}

func (m *MemoryStore) CreateOrder(ctx context.Context, o *model.Order) error {
	defer m.lock()()
	if err := m.fail("CreateOrder"); err != nil {
		return err
	}
	m.state.data.orders[o.ID] = copyOrder(*o)
	m.state.data.orderIDs = append(m.state.data.orderIDs, o.ID)
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	defer m.lock()()
	if err := m.fail("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := m.state.data.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	defer m.lock()()
	if err := m.fail("ListOrders"); err != nil {
		return nil, err
	}
	orders := []model.Order{}
	for i := len(m.state.data.orderIDs) - 1; i >= 0; i-- {
		o, ok := m.state.data.orders[m.state.data.orderIDs[i]]
		if !ok {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.StartDate != nil && o.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && o.CreatedAt.After(*filter.EndDate) {
			continue
		}
		orders = append(orders, copyOrder(o))
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, payment model.PaymentStatus) (*model.Order, error) {
	defer m.lock()()
	if err := m.fail("UpdateOrderStatus"); err != nil {
		return nil, err
	}
	o, ok := m.state.data.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = time.Now().UTC()
	m.state.data.orders[id] = o
	o = copyOrder(o)
	return &o, nil
}

func (m *MemoryStore) UpdatePaymentStatus(ctx context.Context, id string, payment model.PaymentStatus) (*model.Order, error) {
	defer m.lock()()
	o, ok := m.state.data.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	o.PaymentStatus = payment
	o.UpdatedAt = time.Now().UTC()
	m.state.data.orders[id] = o
	o = copyOrder(o)
	return &o, nil
}

func (m *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	defer m.lock()()
	if _, ok := m.state.data.orders[id]; !ok {
		return store.ErrOrderNotFound
	}
	delete(m.state.data.orders, id)
	return nil
}

var _ store.Store = (*MemoryStore)(nil)
