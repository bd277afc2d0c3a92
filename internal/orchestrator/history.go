package orchestrator

import (
	"context"
	"sync"

	"github.com/ShayCichocki/waver/pkg/models"
)

// HistoryStore retains finished plans.
type HistoryStore interface {
	// Add records a finished plan, evicting the oldest beyond capacity.
	Add(ctx context.Context, rec *models.PlanRecord) error
	// Get returns the plan with the given execution id, or nil if unknown.
	Get(ctx context.Context, executionID string) (*models.PlanRecord, error)
	// List returns up to limit plans, newest first. A limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*models.PlanRecord, error)
}

// RingHistory is an in-memory HistoryStore holding the most recent plans.
type RingHistory struct {
	mu    sync.Mutex
	buf   []*models.PlanRecord
	next  int
	count int
}

// NewRingHistory creates a ring holding up to capacity plans.
func NewRingHistory(capacity int) *RingHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &RingHistory{buf: make([]*models.PlanRecord, capacity)}
}

// Add implements HistoryStore.
func (h *RingHistory) Add(_ context.Context, rec *models.PlanRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = rec
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	return nil
}

// Get implements HistoryStore.
func (h *RingHistory) Get(_ context.Context, executionID string) (*models.PlanRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < h.count; i++ {
		if rec := h.at(i); rec.ExecutionID == executionID {
			return rec, nil
		}
	}
	return nil, nil
}

// List implements HistoryStore.
func (h *RingHistory) List(_ context.Context, limit int) ([]*models.PlanRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.PlanRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.at(i))
	}
	return out, nil
}

// Len returns the number of retained plans.
func (h *RingHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// at returns the i-th newest record. Caller holds mu.
func (h *RingHistory) at(i int) *models.PlanRecord {
	idx := (h.next - 1 - i + 2*len(h.buf)) % len(h.buf)
	return h.buf[idx]
}
