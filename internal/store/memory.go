package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store, seeded with sample shop data by default.
type Memory struct {
	mu            sync.RWMutex
	orders        []map[string]any
	products      []map[string]any
	companyInfo   []map[string]any
	conversations []Conversation
	nameColumns   []string
	now           func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithOrders replaces the order table.
func WithOrders(orders []map[string]any) MemoryOption {
	return func(m *Memory) { m.orders = orders }
}

// WithProducts replaces the product table.
func WithProducts(products []map[string]any) MemoryOption {
	return func(m *Memory) { m.products = products }
}

// WithCompanyInfo replaces the company information table.
func WithCompanyInfo(info []map[string]any) MemoryOption {
	return func(m *Memory) { m.companyInfo = info }
}

// WithClock overrides the timestamp source for saved conversations.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-memory store holding the sample data set.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		orders:      SampleOrders(),
		products:    SampleProducts(),
		companyInfo: SampleCompanyInfo(),
		nameColumns: DefaultProductNameColumns,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) GetOrderByID(ctx context.Context, orderID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := strings.ToUpper(orderID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if fieldOr(o, "order_id", "") == want {
			return copyRecord(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SearchProducts(ctx context.Context, keywords []string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return []map[string]any{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []map[string]any
	for _, kw := range keywords {
		n := 0
		for _, p := range m.products {
			if n == 10 {
				break
			}
			if matchesAny(p, m.nameColumns, kw) {
				matches = append(matches, copyRecord(p))
				n++
			}
		}
	}
	return DedupeProducts(matches, 5), nil
}

func (m *Memory) GetAllCustomers(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return UniqueCustomers(m.orders), nil
}

func (m *Memory) GetAllOrders(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecords(m.orders), nil
}

func (m *Memory) GetOrderStatistics(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return OrderStatistics(m.orders), nil
}

func (m *Memory) GetAllProductsDetailed(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecords(m.products), nil
}

func (m *Memory) GetProductStatistics(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ProductStatistics(m.products), nil
}

func (m *Memory) GetBusinessSummary(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BusinessSummary(
		OrderStatistics(m.orders),
		ProductStatistics(m.products),
		len(UniqueCustomers(m.orders)),
		len(m.companyInfo),
	), nil
}

func (m *Memory) GetAllCompanyInfo(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecords(m.companyInfo), nil
}

func (m *Memory) SaveConversation(ctx context.Context, c Conversation) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = m.now()
	}
	m.mu.Lock()
	m.conversations = append(m.conversations, c)
	m.mu.Unlock()
	return c, nil
}

func (m *Memory) RecentConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := append([]Conversation(nil), m.conversations...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func copyRecord(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func copyRecords(rs []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, copyRecord(r))
	}
	return out
}

// SampleOrders returns the demo order table.
func SampleOrders() []map[string]any {
	return []map[string]any{
		{"order_id": "ORD001", "status": "Entregado", "customer_name": "María García"},
		{"order_id": "ORD002", "status": "En tránsito", "customer_name": "Juan Pérez"},
		{"order_id": "ORD003", "status": "Pendiente de pago", "customer_name": "Ana López"},
		{"order_id": "ORD004", "status": "Entregado", "customer_name": "María García"},
		{"order_id": "ORD005", "status": "Cancelado", "customer_name": "Carlos Ruiz"},
		{"order_id": "ORD006", "status": "En tránsito", "customer_name": "Lucía Fernández"},
		{"order_id": "ORD007", "status": "Entregado", "customer_name": "Juan Pérez"},
		{"order_id": "ORD008", "status": "Entregado", "customer_name": "María García"},
	}
}

// SampleProducts returns the demo product table.
func SampleProducts() []map[string]any {
	return []map[string]any{
		{"product_id": "PRD-001", "product_name": "Camiseta básica algodón", "category": "Ropa", "price": 19.99, "availability": AvailabilityInStock},
		{"product_id": "PRD-002", "product_name": "Pantalón vaquero slim", "category": "Ropa", "price": 49.90, "availability": AvailabilityInStock},
		{"product_id": "PRD-003", "product_name": "Zapatillas running", "category": "Calzado", "price": 89.00, "availability": AvailabilityOutOfStock},
		{"product_id": "PRD-004", "product_name": "Chaqueta impermeable", "category": "Ropa", "price": 120.00, "availability": AvailabilityInStock},
		{"product_id": "PRD-005", "product_name": "Mochila urbana", "category": "Accesorios", "price": 35.50, "availability": AvailabilityInStock},
		{"product_id": "PRD-006", "product_name": "Camiseta técnica deporte", "category": "Ropa", "price": 24.99, "availability": AvailabilityOutOfStock},
	}
}

// SampleCompanyInfo returns the demo company policy table.
func SampleCompanyInfo() []map[string]any {
	return []map[string]any{
		{"topic": "devoluciones", "info": "Aceptamos devoluciones en un plazo de 30 días con el ticket de compra."},
		{"topic": "envios", "info": "Los envíos tardan entre 2 y 5 días laborables. Gratis a partir de 50 €."},
		{"topic": "horarios", "info": "Atención al cliente de lunes a viernes de 9:00 a 18:00."},
	}
}
