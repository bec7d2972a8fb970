package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/ordernumber"
	"github.com/vaidashi/laundry-order-api/internal/repository"
)

// orderRace simulates concurrent checkouts that commit order numbers this
// transaction cannot see yet.
type orderRace struct {
	mu      sync.Mutex
	collide []string
	visible []string
	always  bool
	inserts int
	// commit conflicts seen by optimistic transactions
	conflicts int
	// the first barrier transactions all take their snapshot before any of them runs
	barrier  int
	arrived  int
	released chan struct{}
}

func (r *orderRace) await() {
	r.mu.Lock()
	if r.arrived >= r.barrier {
		r.mu.Unlock()
		return
	}
	if r.released == nil {
		r.released = make(chan struct{})
	}
	r.arrived++
	if r.arrived == r.barrier {
		close(r.released)
	}
	released := r.released
	r.mu.Unlock()

	<-released
}

type state struct {
	orders     map[string]*models.Order
	items      map[string][]*models.OrderItem
	payments   map[string]*models.Payment
	timeline   map[string][]*models.TimelineEntry
	history    map[string][]*models.StatusHistoryEntry
	outbox     []*models.OutboxMessage
	promoUsage map[string]int
	completed  map[string]int
}

func (s *state) clone() *state {
	c := &state{
		orders:     map[string]*models.Order{},
		items:      map[string][]*models.OrderItem{},
		payments:   map[string]*models.Payment{},
		timeline:   map[string][]*models.TimelineEntry{},
		history:    map[string][]*models.StatusHistoryEntry{},
		outbox:     append([]*models.OutboxMessage(nil), s.outbox...),
		promoUsage: map[string]int{},
		completed:  map[string]int{},
	}
	for k, v := range s.orders {
		o := *v
		c.orders[k] = &o
	}
	for k, v := range s.items {
		c.items[k] = append([]*models.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		p := *v
		c.payments[k] = &p
	}
	for k, v := range s.timeline {
		c.timeline[k] = append([]*models.TimelineEntry(nil), v...)
	}
	for k, v := range s.history {
		c.history[k] = append([]*models.StatusHistoryEntry(nil), v...)
	}
	for k, v := range s.promoUsage {
		c.promoUsage[k] = v
	}
	for k, v := range s.completed {
		c.completed[k] = v
	}
	return c
}

type memStore struct {
	mu        sync.Mutex
	st        *state
	race      orderRace
	laundries map[string]*models.Laundry
	pricing   map[string]*models.PricingEntry
	promos    map[string]*models.PromoCode
	outboxErr error
	// optimistic transactions run unlocked on a snapshot and are checked for
	// duplicate order numbers at commit, like concurrent Postgres transactions
	optimistic bool
}

func newMemStore() *memStore {
	return &memStore{
		st: (&state{
			orders:     map[string]*models.Order{},
			items:      map[string][]*models.OrderItem{},
			payments:   map[string]*models.Payment{},
			timeline:   map[string][]*models.TimelineEntry{},
			history:    map[string][]*models.StatusHistoryEntry{},
			promoUsage: map[string]int{},
			completed:  map[string]int{},
		}).clone(),
		laundries: map[string]*models.Laundry{},
		pricing:   map[string]*models.PricingEntry{},
		promos:    map[string]*models.PromoCode{},
	}
}

func pricingKey(laundryID, category, item string) string {
	return laundryID + "|" + category + "|" + item
}

// WithTx runs fn against a copy of the state and keeps it only on success
func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.optimistic {
		return m.withOptimisticTx(ctx, fn)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.st.clone()
	if err := fn(ctx, &memTx{store: m, st: work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

func (m *memStore) withOptimisticTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	work := m.st.clone()
	m.mu.Unlock()

	base := len(work.outbox)
	m.race.await()

	if err := fn(ctx, &memTx{store: m, st: work}); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var created []string
	for id, o := range work.orders {
		if _, exists := m.st.orders[id]; exists {
			continue
		}
		for _, committed := range m.st.orders {
			if committed.OrderNumber == o.OrderNumber {
				m.race.mu.Lock()
				m.race.conflicts++
				m.race.mu.Unlock()
				return repository.ErrDuplicateOrderNumber
			}
		}
		created = append(created, id)
	}

	for _, id := range created {
		m.st.orders[id] = work.orders[id]
		m.st.items[id] = work.items[id]
		if p, ok := work.payments[id]; ok {
			m.st.payments[id] = p
		}
		m.st.timeline[id] = work.timeline[id]
		m.st.history[id] = work.history[id]
	}
	for _, msg := range work.outbox[base:] {
		msg.ID = int64(len(m.st.outbox) + 1)
		m.st.outbox = append(m.st.outbox, msg)
	}
	return nil
}

type memTx struct {
	store *memStore
	st    *state
}

func (t *memTx) LatestOrderNumber(_ context.Context, prefix string) (string, error) {
	best, bestSeq := "", -1
	consider := func(n string) {
		if !strings.HasPrefix(n, prefix) {
			return
		}
		if seq, err := ordernumber.ParseSequence(n); err == nil && seq > bestSeq {
			best, bestSeq = n, seq
		}
	}
	for _, o := range t.st.orders {
		consider(o.OrderNumber)
	}
	t.store.race.mu.Lock()
	visible := append([]string(nil), t.store.race.visible...)
	t.store.race.mu.Unlock()
	for _, n := range visible {
		consider(n)
	}
	return best, nil
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) error {
	race := &t.store.race
	race.mu.Lock()
	race.inserts++

	if race.always {
		race.mu.Unlock()
		return repository.ErrDuplicateOrderNumber
	}
	for i, n := range race.collide {
		if n == order.OrderNumber {
			race.collide = append(race.collide[:i], race.collide[i+1:]...)
			race.visible = append(race.visible, n)
			race.mu.Unlock()
			return repository.ErrDuplicateOrderNumber
		}
	}
	race.mu.Unlock()

	for _, o := range t.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}

	order.RecalculateTotal()
	stored := *order
	stored.Items, stored.Payment = nil, nil
	t.st.orders[order.ID] = &stored
	return nil
}

func (t *memTx) InsertItems(_ context.Context, items []*models.OrderItem) error {
	for _, it := range items {
		t.st.items[it.OrderID] = append(t.st.items[it.OrderID], it)
	}
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) error {
	stored := *p
	t.st.payments[p.OrderID] = &stored
	return nil
}

func (t *memTx) AppendTimeline(_ context.Context, e *models.TimelineEntry) error {
	t.st.timeline[e.OrderID] = append(t.st.timeline[e.OrderID], e)
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, e *models.StatusHistoryEntry) error {
	t.st.history[e.OrderID] = append(t.st.history[e.OrderID], e)
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, order *models.Order, expected models.OrderStatus) error {
	stored, ok := t.st.orders[order.ID]
	if !ok || stored.Status != expected {
		return repository.ErrConflict
	}
	updated := *order
	updated.Items, updated.Payment = nil, nil
	t.st.orders[order.ID] = &updated
	return nil
}

func (t *memTx) CompletePayment(_ context.Context, orderID string, at time.Time) error {
	p, ok := t.st.payments[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = models.PaymentStatusCompleted
	p.PaidAt = &at
	p.UpdatedAt = at
	return nil
}

func (t *memTx) RefreshLaundryCompletedOrders(_ context.Context, laundryID string) error {
	count := 0
	for _, o := range t.st.orders {
		if o.LaundryID == laundryID && o.Status == models.StatusCompleted {
			count++
		}
	}
	t.st.completed[laundryID] = count
	return nil
}

func (t *memTx) IncrementPromoUsage(_ context.Context, promoID string) error {
	p, ok := t.store.promos[promoID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.UsageLimit != nil && t.st.promoUsage[promoID] >= *p.UsageLimit {
		return repository.ErrPromoLimitReached
	}
	t.st.promoUsage[promoID]++
	return nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, msg *models.OutboxMessage) error {
	if t.store.outboxErr != nil {
		return t.store.outboxErr
	}
	msg.ID = int64(len(t.st.outbox) + 1)
	t.st.outbox = append(t.st.outbox, msg)
	return nil
}

// read side

func (m *memStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *memStore) List(_ context.Context, f repository.OrderFilter) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Order{}
	for _, o := range m.st.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.LaundryID != "" && o.LaundryID != f.LaundryID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	if f.Offset >= len(out) {
		return []*models.Order{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) ListItems(_ context.Context, orderID string) ([]*models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.OrderItem{}, m.st.items[orderID]...), nil
}

func (m *memStore) GetPayment(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.payments[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) ListTimeline(_ context.Context, orderID string) ([]*models.TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.st.timeline[orderID]
	out := make([]*models.TimelineEntry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

func (m *memStore) ListHistory(_ context.Context, orderID string) ([]*models.StatusHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.StatusHistoryEntry{}, m.st.history[orderID]...), nil
}

func (m *memStore) FindLaundry(_ context.Context, id string) (*models.Laundry, error) {
	l, ok := m.laundries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (m *memStore) FindPricing(_ context.Context, laundryID, category, item string) (*models.PricingEntry, error) {
	p, ok := m.pricing[pricingKey(laundryID, category, item)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) FindPromoByCode(_ context.Context, code string) (*models.PromoCode, error) {
	for _, p := range m.promos {
		if p.Code == code {
			c := *p
			c.UsedCount = m.st.promoUsage[p.ID]
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) CountCompletedOrders(_ context.Context, customerID string) (int, error) {
	n := 0
	for _, o := range m.st.orders {
		if o.CustomerID == customerID && o.Status == models.StatusCompleted {
			n++
		}
	}
	return n, nil
}

// seedOrder stores an order directly in the given status with an open payment
func (m *memStore) seedOrder(id string, status models.OrderStatus, pickup models.PickupType) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &models.Order{
		ID:            id,
		OrderNumber:   "ORD-20260501-" + id,
		CustomerID:    "customer-1",
		LaundryID:     "laundry-1",
		OrderType:     models.OrderTypeStandard,
		PickupType:    pickup,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCashOnDelivery,
		Subtotal:      decimal.NewFromInt(200),
		DeliveryFee:   decimal.NewFromInt(100),
	}
	o.RecalculateTotal()
	m.st.orders[id] = o
	m.st.payments[id] = &models.Payment{ID: "pay-" + id, OrderID: id, Amount: o.TotalAmount, Status: models.PaymentStatusPending}
	c := *o
	return &c
}

func (m *memStore) outboxTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.st.outbox {
		out = append(out, msg.EventType)
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) record(kind string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, kind)
	return n.err
}

func (n *recordingNotifier) NotifyLaundryNewOrder(context.Context, *models.Order) error {
	return n.record("laundry_new_order")
}

func (n *recordingNotifier) NotifyCustomerOrderStatus(context.Context, *models.Order) error {
	return n.record("customer_order_status")
}

func (n *recordingNotifier) NotifyLaundryCancellation(context.Context, *models.Order) error {
	return n.record("laundry_cancellation")
}

func (n *recordingNotifier) NotifyLaundryOrderStatus(context.Context, *models.Order) error {
	return n.record("laundry_order_status")
}

type recordingInvalidator struct{ laundries []string }

func (r *recordingInvalidator) InvalidateLaundry(_ context.Context, id string) {
	r.laundries = append(r.laundries, id)
}

// staleReader returns a fixed snapshot of an order, as a request that read it
// before a concurrent writer committed.
type staleReader struct {
	*memStore
	snapshot *models.Order
}

func (s staleReader) GetByID(_ context.Context, id string) (*models.Order, error) {
	if s.snapshot != nil && s.snapshot.ID == id {
		c := *s.snapshot
		return &c, nil
	}
	return nil, errors.New("unexpected read")
}
