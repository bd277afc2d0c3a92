package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/ShayCichocki/waver/pkg/models"
)

func planRecord(id string) *models.PlanRecord {
	return &models.PlanRecord{ExecutionSummary: models.ExecutionSummary{ExecutionID: id}}
}

func TestRingHistory(t *testing.T) {
	ctx := context.Background()
	h := NewRingHistory(3)
	for i := range 5 {
		if err := h.Add(ctx, planRecord(fmt.Sprintf("e%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d", h.Len())
	}

	recs, _ := h.List(ctx, 0)
	var got []string
	for _, r := range recs {
		got = append(got, r.ExecutionID)
	}
	if fmt.Sprint(got) != "[e4 e3 e2]" {
		t.Errorf("List() = %v", got)
	}

	limited, _ := h.List(ctx, 2)
	if len(limited) != 2 || limited[0].ExecutionID != "e4" {
		t.Errorf("List(2) = %d records", len(limited))
	}

	if rec, _ := h.Get(ctx, "e1"); rec != nil {
		t.Error("evicted record still found")
	}
	if rec, _ := h.Get(ctx, "e2"); rec == nil {
		t.Error("retained record not found")
	}
}

func TestRingHistory_Empty(t *testing.T) {
	h := NewRingHistory(0)
	recs, err := h.List(context.Background(), 10)
	if err != nil || len(recs) != 0 {
		t.Errorf("List() = %v, %v", recs, err)
	}
	if rec, _ := h.Get(context.Background(), "x"); rec != nil {
		t.Error("Get() on empty ring returned a record")
	}
}
