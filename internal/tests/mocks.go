package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"reconcile/internal/domain"
	"reconcile/internal/redis"
	"reconcile/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.PaymentEvent

	// Counters for verification
	CreateCallCount      int32
	MarkMatchedCallCount int32

	// Error injection
	CreateError      error
	MarkMatchedError error
	ListError        error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		events: make(map[string]*domain.PaymentEvent),
	}
}

// AddEvent adds an event to the mock repository.
func (m *MockPaymentRepository) AddEvent(event *domain.PaymentEvent) {
	m.put(event)
}

func (m *MockPaymentRepository) put(event *domain.PaymentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *event
	m.events[event.TransactionID] = &copy
}

func (m *MockPaymentRepository) Create(ctx context.Context, event *domain.PaymentEvent) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.TransactionID]; exists {
		return repository.ErrDuplicate
	}
	copy := *event
	m.events[event.TransactionID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	event, ok := m.events[transactionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *event
	return &copy, nil
}

func (m *MockPaymentRepository) MarkMatched(ctx context.Context, transactionID, orderID string, method domain.MatchMethod, at time.Time) error {
	atomic.AddInt32(&m.MarkMatchedCallCount, 1)
	if m.MarkMatchedError != nil {
		return m.MarkMatchedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[transactionID]
	if !ok {
		return repository.ErrNotFound
	}
	if event.Matched {
		return repository.ErrConflict
	}
	// Mirrors the partial unique index on matched order ids.
	for _, e := range m.events {
		if e.Matched && e.OrderID == orderID {
			return repository.ErrConflict
		}
	}
	event.Matched = true
	event.OrderID = orderID
	event.MatchMethod = method
	event.MatchedAt = at
	return nil
}

func (m *MockPaymentRepository) List(ctx context.Context, filter repository.PaymentFilter) ([]*domain.PaymentEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.PaymentEvent, 0, len(m.events))
	for _, e := range m.events {
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Timestamp.Before(filter.To) {
			continue
		}
		if filter.Matched != nil && e.Matched != *filter.Matched {
			continue
		}
		copy := *e
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of stored events (for test assertions).
func (m *MockPaymentRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// GetEvent returns event for test assertions.
func (m *MockPaymentRepository) GetEvent(transactionID string) *domain.PaymentEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[transactionID]
	if !ok {
		return nil
	}
	copy := *e
	return &copy
}

// MatchedFor returns every matched event pointing at orderID.
func (m *MockPaymentRepository) MatchedFor(orderID string) []*domain.PaymentEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentEvent
	for _, e := range m.events {
		if e.Matched && e.OrderID == orderID {
			copy := *e
			out = append(out, &copy)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	// Counters for verification
	MarkPaidCallCount int32

	// Error injection
	MarkPaidError error

	// OnListPending runs before each ListPending read, outside the lock.
	OnListPending func()
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentStatusPending
	}
	m.put(order)
}

func (m *MockOrderRepository) put(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
}

func (m *MockOrderRepository) Upsert(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[order.ID]
	if !ok {
		copy := *order
		if copy.PaymentStatus == "" {
			copy.PaymentStatus = domain.PaymentStatusPending
		}
		m.orders[order.ID] = &copy
		return nil
	}
	existing.CustomerName = order.CustomerName
	existing.TableNumber = order.TableNumber
	existing.Items = order.Items
	if existing.Status != domain.OrderStatusCancelled {
		existing.Status = order.Status
	}
	existing.UpdatedAt = order.UpdatedAt
	if existing.PaymentStatus == domain.PaymentStatusPending {
		existing.Amount = order.Amount
	}
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) ListPending(ctx context.Context, filter repository.PendingFilter) ([]*domain.Order, error) {
	if m.OnListPending != nil {
		m.OnListPending()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if !o.IsPending() {
			continue
		}
		if !filter.From.IsZero() && o.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !o.CreatedAt.Before(filter.To) {
			continue
		}
		if filter.Amount != nil && !o.Amount.Equal(*filter.Amount) {
			continue
		}
		copy := *o
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MockOrderRepository) ListPaid(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if o.PaymentStatus != domain.PaymentStatusPaid {
			continue
		}
		if o.PaidAt.Before(from) || !o.PaidAt.Before(to) {
			continue
		}
		copy := *o
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PaidAt.After(result[j].PaidAt)
	})
	return result, nil
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, id string, method domain.PaymentMethod, transactionID string, at time.Time) error {
	atomic.AddInt32(&m.MarkPaidCallCount, 1)
	if m.MarkPaidError != nil {
		return m.MarkPaidError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || !order.IsPending() {
		return repository.ErrNotFound
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	order.PaymentMethod = method
	order.TransactionID = transactionID
	order.PaidAt = at
	order.UpdatedAt = at
	return nil
}

func (m *MockOrderRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || !order.IsPending() {
		return repository.ErrNotFound
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = at
	return nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status == domain.OrderStatusCancelled {
		return repository.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = at
	return nil
}

// GetOrder returns order for test assertions.
func (m *MockOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	copy := *o
	return &copy
}

// ──────────────────────────────────────────────
// MOCK TRANSACTION MANAGER
// ──────────────────────────────────────────────

// MockTxManager serializes transactions and undoes their writes on error.
type MockTxManager struct {
	mu       sync.Mutex
	payments *MockPaymentRepository
	orders   *MockOrderRepository

	// Counters
	CommitCount   int32
	RollbackCount int32
}

// NewMockTxManager creates a new mock transaction manager over the given repositories.
func NewMockTxManager(payments *MockPaymentRepository, orders *MockOrderRepository) *MockTxManager {
	return &MockTxManager{
		payments: payments,
		orders:   orders,
	}
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var undo []func()
	repos := repository.Repositories{
		Payments: &txPaymentRepository{MockPaymentRepository: m.payments, undo: &undo},
		Orders:   &txOrderRepository{MockOrderRepository: m.orders, undo: &undo},
	}

	if err := fn(ctx, repos); err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}

	atomic.AddInt32(&m.CommitCount, 1)
	return nil
}

// txPaymentRepository records how to undo each successful write.
type txPaymentRepository struct {
	*MockPaymentRepository
	undo *[]func()
}

func (r *txPaymentRepository) MarkMatched(ctx context.Context, transactionID, orderID string, method domain.MatchMethod, at time.Time) error {
	prior := r.GetEvent(transactionID)
	if err := r.MockPaymentRepository.MarkMatched(ctx, transactionID, orderID, method, at); err != nil {
		return err
	}
	*r.undo = append(*r.undo, func() { r.put(prior) })
	return nil
}

// txOrderRepository records how to undo each successful write.
type txOrderRepository struct {
	*MockOrderRepository
	undo *[]func()
}

func (r *txOrderRepository) MarkPaid(ctx context.Context, id string, method domain.PaymentMethod, transactionID string, at time.Time) error {
	prior := r.GetOrder(id)
	if err := r.MockOrderRepository.MarkPaid(ctx, id, method, transactionID, at); err != nil {
		return err
	}
	*r.undo = append(*r.undo, func() { r.put(prior) })
	return nil
}

func (r *txOrderRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	prior := r.GetOrder(id)
	if err := r.MockOrderRepository.Cancel(ctx, id, at); err != nil {
		return err
	}
	*r.undo = append(*r.undo, func() { r.put(prior) })
	return nil
}

// ──────────────────────────────────────────────
// MOCK SETTINGS REPOSITORY
// ──────────────────────────────────────────────

// MockSettingsRepository is a mock implementation of SettingsRepository.
type MockSettingsRepository struct {
	mu       sync.RWMutex
	matching *domain.MatchingSettings
	soundbox *domain.SoundboxConfig

	// Error injection
	GetMatchingError error
}

// NewMockSettingsRepository creates a new mock settings repository.
func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{}
}

func (m *MockSettingsRepository) GetMatching(ctx context.Context) (*domain.MatchingSettings, error) {
	if m.GetMatchingError != nil {
		return nil, m.GetMatchingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.matching == nil {
		return nil, repository.ErrNotFound
	}
	copy := *m.matching
	return &copy, nil
}

func (m *MockSettingsRepository) SaveMatching(ctx context.Context, settings *domain.MatchingSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *settings
	m.matching = &copy
	return nil
}

func (m *MockSettingsRepository) GetSoundbox(ctx context.Context) (*domain.SoundboxConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.soundbox == nil {
		return nil, repository.ErrNotFound
	}
	copy := *m.soundbox
	return &copy, nil
}

func (m *MockSettingsRepository) SaveSoundbox(ctx context.Context, cfg *domain.SoundboxConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *cfg
	m.soundbox = &copy
	return nil
}

func (m *MockSettingsRepository) DeleteSoundbox(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.soundbox == nil {
		return repository.ErrNotFound
	}
	m.soundbox = nil
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount   int32
	ReleaseCallCount   int32
	TxAcquireCallCount int32

	// Error injection (order locks only)
	AcquireError error

	// Force order lock failure
	ForceAcquireFailure bool

	// BeforeOrderLock runs at the start of AcquireOrderLock, outside the lock.
	BeforeOrderLock func(orderID string)
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.BeforeOrderLock != nil {
		m.BeforeOrderLock(orderID)
	}
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:order:" + orderID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseOrderLock(ctx context.Context, orderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:order:"+orderID)
	return nil
}

func (m *MockLockStore) AcquireTransactionLock(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.TxAcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:tx:" + transactionID
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseTransactionLock(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:tx:"+transactionID)
	return nil
}

// Hold takes the lock for orderID as if another instance were settling it.
func (m *MockLockStore) Hold(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks["lock:order:"+orderID] = time.Now().Add(time.Hour)
}

// IsLocked checks if an order is locked (for test assertions).
func (m *MockLockStore) IsLocked(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:order:"+orderID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of the pending and stats caches.
type MockCacheStore struct {
	mu      sync.Mutex
	pending map[string][]redis.CachedPendingOrder
	index   map[string]string
	stats   map[string]*redis.CachedStats

	generation int64

	// Counters
	GetPendingCallCount      int32
	RemovePendingCallCount   int32
	InvalidateStatsCallCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		pending: make(map[string][]redis.CachedPendingOrder),
		index:   make(map[string]string),
		stats:   make(map[string]*redis.CachedStats),
	}
}

func (m *MockCacheStore) GetPending(ctx context.Context, date string) ([]redis.CachedPendingOrder, bool, error) {
	atomic.AddInt32(&m.GetPendingCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	orders, ok := m.pending[date]
	return orders, ok, nil
}

func (m *MockCacheStore) PendingGeneration(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation, nil
}

func (m *MockCacheStore) SetPending(ctx context.Context, date string, generation int64, orders []redis.CachedPendingOrder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return false, nil
	}
	m.pending[date] = orders
	for _, o := range orders {
		m.index[o.OrderID] = date
	}
	return true, nil
}

func (m *MockCacheStore) RemovePendingOrder(ctx context.Context, orderID string) error {
	atomic.AddInt32(&m.RemovePendingCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	if date, ok := m.index[orderID]; ok {
		delete(m.pending, date)
		delete(m.index, orderID)
	}
	return nil
}

func (m *MockCacheStore) InvalidatePending(ctx context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	delete(m.pending, date)
	return nil
}

func (m *MockCacheStore) GetStats(ctx context.Context, date string) (*redis.CachedStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[date], nil
}

func (m *MockCacheStore) SetStats(ctx context.Context, date string, stats *redis.CachedStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[date] = stats
	return nil
}

func (m *MockCacheStore) InvalidateStats(ctx context.Context) error {
	atomic.AddInt32(&m.InvalidateStatsCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = make(map[string]*redis.CachedStats)
	return nil
}

// HasPending reports whether a pending list is cached for date.
func (m *MockCacheStore) HasPending(date string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[date]
	return ok
}

// ──────────────────────────────────────────────
// MOCK EVENT BUS
// ──────────────────────────────────────────────

// MockEventBus relays published payloads to subscribers in-process.
type MockEventBus struct {
	mu   sync.Mutex
	subs []chan []byte

	PublishCallCount   int32
	PublishError       error
	SubscribeCallCount int32

	// SubscribeFailures is how many Subscribe calls fail before one succeeds.
	SubscribeFailures int32
}

// NewMockEventBus creates a new mock event bus.
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{}
}

func (m *MockEventBus) Publish(ctx context.Context, payload []byte) error {
	atomic.AddInt32(&m.PublishCallCount, 1)
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		ch <- payload
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	if atomic.AddInt32(&m.SubscribeCallCount, 1) <= atomic.LoadInt32(&m.SubscribeFailures) {
		return nil, errors.New("redis: connection refused")
	}
	ch := make(chan []byte, 64)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-ch:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Subscribers returns the number of active subscriptions.
func (m *MockEventBus) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Ensure mocks implement interfaces.
var (
	_ repository.PaymentRepository  = (*MockPaymentRepository)(nil)
	_ repository.OrderRepository    = (*MockOrderRepository)(nil)
	_ repository.SettingsRepository = (*MockSettingsRepository)(nil)
	_ repository.TxManager          = (*MockTxManager)(nil)
	_ redis.LockStoreInterface      = (*MockLockStore)(nil)
	_ redis.PendingCacheInterface   = (*MockCacheStore)(nil)
	_ redis.StatsCacheInterface     = (*MockCacheStore)(nil)
	_ redis.EventBusInterface       = (*MockEventBus)(nil)
)
