// Package dbtest - каталог в памяти с той же семантикой, что и db.Storage.
// Используется в тестах сценариев и движка.
package dbtest

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"printmatch/db"
	"printmatch/models"
)

type MemStorage struct {
	mu        sync.Mutex
	clock     time.Time
	providers []models.Provider
	orders    map[int64]*models.Order
	bids      []models.Bid
	schema    map[string][]string
	nextID    int64
	calls     map[string]int

	// Errors - ошибка, которую вернет метод с указанным именем
	Errors map[string]error
	// Before вызывается перед методом с указанным именем, вне блокировки;
	// так тесты вклиниваются между запросами одного шага
	Before map[string]func()
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		clock:  time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		orders: make(map[int64]*models.Order),
		schema: map[string][]string{
			"providers": {"id", "participant_id", "name", "city", "contact", "created_at"},
			"orders":    {"id", "participant_id", "description", "city", "executor_id", "created_at"},
			"bids":      {"id", "order_id", "provider_id", "price", "details", "created_at"},
		},
		calls:  make(map[string]int),
		Errors: make(map[string]error),
		Before: make(map[string]func()),
	}
}

// call учитывает вызов и возвращает внедренную ошибку; вызывается под mu
func (m *MemStorage) call(name string) error {
	m.calls[name]++
	return m.Errors[name]
}

func (m *MemStorage) before(name string) {
	if f := m.Before[name]; f != nil {
		f()
	}
}

func (m *MemStorage) tick() (int64, time.Time) {
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	return m.nextID, m.clock
}

// Calls - сколько раз вызывался метод
func (m *MemStorage) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls - общее число обращений к каталогу
func (m *MemStorage) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *MemStorage) CreateProvider(_ context.Context, p *models.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateProvider"); err != nil {
		return err
	}
	p.ID, p.CreatedAt = m.tick()
	m.providers = append(m.providers, *p)
	return nil
}

func (m *MemStorage) CityHasProviders(_ context.Context, city string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CityHasProviders"); err != nil {
		return false, err
	}
	for _, p := range m.providers {
		if strings.EqualFold(p.City, city) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStorage) ProviderRecipients(_ context.Context, city string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ProviderRecipients"); err != nil {
		return nil, err
	}
	out := []int64{}
	for _, p := range m.providers {
		if strings.EqualFold(p.City, city) {
			out = append(out, p.ParticipantID)
		}
	}
	return out, nil
}

func (m *MemStorage) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateOrder"); err != nil {
		return err
	}
	o.ID, o.CreatedAt = m.tick()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemStorage) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemStorage) GetOwnedOrder(_ context.Context, id, owner int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("GetOwnedOrder"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok || o.ParticipantID != owner {
		return nil, db.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// AssignExecutor - та же семантика, что у условного UPDATE
func (m *MemStorage) AssignExecutor(_ context.Context, orderID, owner, providerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("AssignExecutor"); err != nil {
		return err
	}
	o, ok := m.orders[orderID]
	if !ok || o.ParticipantID != owner || o.ExecutorID.Valid {
		return db.ErrAlreadyAssigned
	}
	o.ExecutorID = sql.NullInt64{Int64: providerID, Valid: true}
	return nil
}

// SetExecutor назначает исполнителя в обход сценариев (для подготовки данных)
func (m *MemStorage) SetExecutor(orderID, providerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID].ExecutorID = sql.NullInt64{Int64: providerID, Valid: true}
}

func (m *MemStorage) OpenOrdersWithBids(_ context.Context, owner int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("OpenOrdersWithBids"); err != nil {
		return nil, err
	}
	out := []models.Order{}
	for _, o := range m.orders {
		if o.ParticipantID != owner || o.ExecutorID.Valid {
			continue
		}
		if slices.ContainsFunc(m.bids, func(b models.Bid) bool { return b.OrderID == o.ID }) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStorage) CreateBid(_ context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateBid"); err != nil {
		return err
	}
	if _, ok := m.orders[b.OrderID]; !ok {
		return errors.New("insert or update on table \"bids\" violates foreign key constraint")
	}
	b.ID, b.CreatedAt = m.tick()
	m.bids = append(m.bids, *b)
	return nil
}

// Bids - все сохраненные предложения
func (m *MemStorage) Bids() []models.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bid(nil), m.bids...)
}

// Providers - все регистрации
func (m *MemStorage) Providers() []models.Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Provider(nil), m.providers...)
}

// Order - текущее состояние заказа
func (m *MemStorage) Order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *MemStorage) view(b models.Bid) models.BidView {
	v := models.BidView{Bid: b}
	var latest *models.Provider
	for i := range m.providers {
		p := &m.providers[i]
		if p.ParticipantID == b.ProviderID {
			latest = p
		}
	}
	if latest != nil {
		v.ProviderName = sql.NullString{String: latest.Name, Valid: true}
		v.ProviderCity = sql.NullString{String: latest.City, Valid: true}
	}
	return v
}

func (m *MemStorage) BidsForOrder(_ context.Context, orderID int64) ([]models.BidView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("BidsForOrder"); err != nil {
		return nil, err
	}
	out := []models.BidView{}
	for _, b := range m.bids {
		if b.OrderID == orderID {
			out = append(out, m.view(b))
		}
	}
	return out, nil
}

func (m *MemStorage) BidsForOpenOrders(_ context.Context, orderIDs []int64) ([]models.BidView, error) {
	m.before("BidsForOpenOrders")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("BidsForOpenOrders"); err != nil {
		return nil, err
	}
	out := []models.BidView{}
	for _, b := range m.bids {
		if !slices.Contains(orderIDs, b.OrderID) || m.orders[b.OrderID].ExecutorID.Valid {
			continue
		}
		out = append(out, m.view(b))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (m *MemStorage) LatestBid(_ context.Context, orderID, providerID int64) (*models.BidView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("LatestBid"); err != nil {
		return nil, err
	}
	for i := len(m.bids) - 1; i >= 0; i-- {
		if b := m.bids[i]; b.OrderID == orderID && b.ProviderID == providerID {
			v := m.view(b)
			return &v, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemStorage) OtherBidders(_ context.Context, orderID, exclude int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("OtherBidders"); err != nil {
		return nil, err
	}
	out := []int64{}
	for _, b := range m.bids {
		if b.OrderID == orderID && b.ProviderID != exclude && !slices.Contains(out, b.ProviderID) {
			out = append(out, b.ProviderID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *MemStorage) TableExists(_ context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("TableExists"); err != nil {
		return false, err
	}
	_, ok := m.schema[strings.ToLower(table)]
	return ok, nil
}

func (m *MemStorage) ColumnExists(_ context.Context, table, column string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ColumnExists"); err != nil {
		return false, err
	}
	return slices.Contains(m.schema[strings.ToLower(table)], strings.ToLower(column)), nil
}

func (m *MemStorage) RenameColumn(_ context.Context, table, oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("RenameColumn"); err != nil {
		return err
	}
	cols := m.schema[strings.ToLower(table)]
	i := slices.Index(cols, strings.ToLower(oldName))
	if i < 0 {
		return errors.New("column does not exist")
	}
	cols[i] = strings.ToLower(newName)
	return nil
}

func (m *MemStorage) AddTextColumn(_ context.Context, table, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("AddTextColumn"); err != nil {
		return err
	}
	t := strings.ToLower(table)
	m.schema[t] = append(m.schema[t], strings.ToLower(column))
	return nil
}

// Columns - колонки таблицы
func (m *MemStorage) Columns(table string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.schema[table]...)
}
