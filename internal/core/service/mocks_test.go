package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/port"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory Store. RunInTx holds the store lock for the whole
// transaction and restores a snapshot when fn fails.
type memStore struct {
	mu sync.Mutex

	products  map[string]*domain.Product
	addresses map[string]domain.Address
	carts     map[string]*domain.Cart
	orders    map[string]*domain.Order
	numbers   map[string]bool
	history   map[string][]string
	users     map[string]domain.User

	failStep  string
	beforeTx  func()
	listErr   error
	bulkErr   error
	bulkCalls int
	updates   []domain.PriceUpdate
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[string]*domain.Product),
		addresses: make(map[string]domain.Address),
		carts:     make(map[string]*domain.Cart),
		orders:    make(map[string]*domain.Order),
		numbers:   make(map[string]bool),
		history:   make(map[string][]string),
		users:     make(map[string]domain.User),
	}
}

func (m *memStore) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = cloneProduct(&p)
}

func (m *memStore) addAddress(a domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[a.ID] = a
}

func (m *memStore) setCart(userID string, items ...domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = &domain.Cart{UserID: userID, Items: items}
}

func (m *memStore) stock(productID, variantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := domain.AvailableStock(m.products[productID], variantID)
	return n
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) cartLen(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		return len(c.Items)
	}
	return 0
}

func (m *memStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (m *memStore) ListActiveProducts(context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Product
	for _, p := range m.products {
		if p.Active {
			out = append(out, *cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) BulkUpdatePrices(_ context.Context, updates []domain.PriceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkCalls++
	if m.bulkErr != nil {
		return m.bulkErr
	}
	for _, u := range updates {
		if p, ok := m.products[u.ProductID]; ok {
			p.Price = u.Price
		}
	}
	m.updates = append(m.updates, updates...)
	return nil
}

func (m *memStore) GetAddressForUser(_ context.Context, addressID, userID string) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return &domain.Cart{UserID: userID}, nil
	}
	return cloneCart(c), nil
}

func (m *memStore) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = cloneCart(cart)
	return nil
}

func (m *memStore) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		if !u.Verified && u.CreatedAt.Before(cutoff) {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx port.OrderTx) error) error {
	if m.beforeTx != nil {
		m.beforeTx()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdatePayment(_ context.Context, u port.PaymentUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[u.OrderID]
	if !ok || o.Payment.Status != u.From {
		return false, nil
	}
	o.Payment = domain.PaymentDetails{
		Status:        u.To,
		AmountPaid:    u.AmountPaid,
		TransactionID: u.TransactionID,
		PaymentDate:   u.PaymentDate,
	}
	return true, nil
}

type memSnapshot struct {
	products map[string]*domain.Product
	carts    map[string]*domain.Cart
	orders   map[string]*domain.Order
	numbers  map[string]bool
	history  map[string][]string
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		products: make(map[string]*domain.Product, len(m.products)),
		carts:    make(map[string]*domain.Cart, len(m.carts)),
		orders:   make(map[string]*domain.Order, len(m.orders)),
		numbers:  make(map[string]bool, len(m.numbers)),
		history:  make(map[string][]string, len(m.history)),
	}
	for k, v := range m.products {
		s.products[k] = cloneProduct(v)
	}
	for k, v := range m.carts {
		s.carts[k] = cloneCart(v)
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.numbers {
		s.numbers[k] = v
	}
	for k, v := range m.history {
		s.history[k] = append([]string(nil), v...)
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.products = s.products
	m.carts = s.carts
	m.orders = s.orders
	m.numbers = s.numbers
	m.history = s.history
}

type memTx struct {
	m *memStore
}

func (t *memTx) InsertOrder(_ context.Context, order *domain.Order) error {
	if t.m.failStep == "insert" {
		return errInjected
	}
	if t.m.numbers[order.OrderNumber] {
		return port.ErrDuplicateOrderNumber
	}
	cp := *order
	t.m.orders[order.ID] = &cp
	t.m.numbers[order.OrderNumber] = true
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, dec domain.StockDecrement) error {
	if t.m.failStep == "decrement" {
		return errInjected
	}
	p, ok := t.m.products[dec.ProductID]
	if !ok {
		return port.ErrStockConflict
	}
	if dec.VariantID == "" {
		if p.Stock < dec.Quantity {
			return port.ErrStockConflict
		}
		p.Stock -= dec.Quantity
		return nil
	}
	v := p.Variant(dec.VariantID)
	if v == nil || v.Stock < dec.Quantity {
		return port.ErrStockConflict
	}
	v.Stock -= dec.Quantity
	return nil
}

func (t *memTx) ClearCart(_ context.Context, snapshot *domain.Cart) error {
	if t.m.failStep == "clear" {
		return errInjected
	}
	current, ok := t.m.carts[snapshot.UserID]
	if !ok || !snapshot.SameLines(current.Items) {
		return port.ErrCartChanged
	}
	t.m.carts[snapshot.UserID] = &domain.Cart{UserID: snapshot.UserID}
	return nil
}

func (t *memTx) AppendOrderToHistory(_ context.Context, userID, orderID string) error {
	if t.m.failStep == "append" {
		return errInjected
	}
	t.m.history[userID] = append(t.m.history[userID], orderID)
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Variants = append([]domain.Variant(nil), p.Variants...)
	return &cp
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{keys: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

// Mock RateProvider
type mockRateProvider struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	err   error
	calls int
	delay time.Duration
}

func (m *mockRateProvider) FetchRate(_ context.Context, symbol string) (decimal.Decimal, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return decimal.Zero, m.err
	}
	rate, ok := m.rates[symbol]
	if !ok {
		return decimal.Zero, errors.New("no rate for " + symbol)
	}
	return rate, nil
}

func (m *mockRateProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock Notifier
type mockNotifier struct {
	mu     sync.Mutex
	alerts []port.Alert
}

func (m *mockNotifier) Notify(_ context.Context, alert port.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func ptrStr(s string) *string {
	return &s
}
