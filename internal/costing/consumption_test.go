package costing

import (
	"errors"
	"testing"
	"time"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func namedBatch(cost float64, qty int64, receivedOffset time.Duration) model.Batch {
	b := batch(cost, qty, receivedOffset)
	b.ID = uuid.New()
	return b
}

func TestPlanConsumptionFIFOOrder(t *testing.T) {
	oldest := namedBatch(90, 50, 0)
	middle := namedBatch(95, 30, time.Hour)
	newest := namedBatch(100, 20, 2*time.Hour)
	itemID := uuid.New()

	allocs, err := PlanConsumption(itemID, []model.Batch{newest, oldest, middle}, decimal.NewFromInt(70), ConsumeFIFO)
	if err != nil {
		t.Fatalf("PlanConsumption: %v", err)
	}

	if len(allocs) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocs))
	}
	if allocs[0].BatchID != oldest.ID || !allocs[0].Qty.Equal(decimal.NewFromInt(50)) {
		t.Errorf("first allocation = %s/%s, want oldest batch drained (50)", allocs[0].BatchID, allocs[0].Qty)
	}
	if allocs[1].BatchID != middle.ID || !allocs[1].Qty.Equal(decimal.NewFromInt(20)) {
		t.Errorf("second allocation = %s/%s, want 20 from middle batch", allocs[1].BatchID, allocs[1].Qty)
	}
}

func TestPlanConsumptionLIFOOrder(t *testing.T) {
	oldest := namedBatch(90, 50, 0)
	newest := namedBatch(100, 20, 2*time.Hour)

	allocs, err := PlanConsumption(uuid.New(), []model.Batch{oldest, newest}, decimal.NewFromInt(30), ConsumeLIFO)
	if err != nil {
		t.Fatalf("PlanConsumption: %v", err)
	}

	if len(allocs) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocs))
	}
	if allocs[0].BatchID != newest.ID || !allocs[0].Qty.Equal(decimal.NewFromInt(20)) {
		t.Errorf("LIFO must drain the newest batch first")
	}
	if allocs[1].BatchID != oldest.ID || !allocs[1].Qty.Equal(decimal.NewFromInt(10)) {
		t.Errorf("remainder should come from the older batch")
	}
}

func TestPlanConsumptionInsufficientStock(t *testing.T) {
	itemID := uuid.New()
	batches := []model.Batch{namedBatch(90, 50, 0), namedBatch(95, 30, time.Hour)}

	_, err := PlanConsumption(itemID, batches, decimal.NewFromInt(81), ConsumeFIFO)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if insufficient.ItemID != itemID {
		t.Errorf("ItemID = %s, want %s", insufficient.ItemID, itemID)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Available = %s, want 80", insufficient.Available)
	}
}

func TestPlanConsumptionRespectsReservedQty(t *testing.T) {
	b := namedBatch(90, 50, 0)
	b.ReservedQty = decimal.NewFromInt(40)

	_, err := PlanConsumption(uuid.New(), []model.Batch{b}, decimal.NewFromInt(11), ConsumeFIFO)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientStockError against reserved stock", err)
	}
}

func TestApplyConservesQuantityAndFlagsDepletion(t *testing.T) {
	b := namedBatch(90, 50, 0)
	consumed := decimal.Zero

	for _, q := range []int64{20, 20, 10} {
		alloc := Allocation{BatchID: b.ID, Qty: decimal.NewFromInt(q), UnitCost: b.UnitCost}
		if err := Apply(&b, alloc); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		consumed = consumed.Add(alloc.Qty)
	}

	if !b.OriginalQty.Sub(b.RemainingQty).Equal(consumed) {
		t.Fatalf("original - remaining = %s, total consumed = %s", b.OriginalQty.Sub(b.RemainingQty), consumed)
	}
	if !b.RemainingQty.IsZero() {
		t.Fatalf("RemainingQty = %s, want 0", b.RemainingQty)
	}
	if !b.Depleted {
		t.Fatal("batch drained to zero must be flagged depleted")
	}
}

func TestApplyNeverGoesNegative(t *testing.T) {
	b := namedBatch(90, 10, 0)
	err := Apply(&b, Allocation{BatchID: b.ID, Qty: decimal.NewFromInt(11)})
	if err == nil {
		t.Fatal("expected error when allocation exceeds remaining quantity")
	}
	if !b.RemainingQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("RemainingQty mutated to %s on failed apply", b.RemainingQty)
	}
}
