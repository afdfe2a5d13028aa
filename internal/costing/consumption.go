package costing

import (
	"fmt"
	"sort"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumeMethod enum constants
const (
	ConsumeFIFO = "FIFO"
	ConsumeLIFO = "LIFO"
)

// Allocation is one batch drawdown within a planned consumption.
type Allocation struct {
	BatchID  uuid.UUID
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
}

// InsufficientStockError reports a consumption request exceeding the total
// available quantity across all eligible batches. The sale fails whole:
// no partial consumption is planned.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %s, available %s",
		e.ItemID, e.Requested, e.Available)
}

// PlanConsumption selects batches in received-time order (ascending for
// FIFO, descending for LIFO) and allocates the requested quantity across
// them. The returned allocations have not been applied; the caller deducts
// them from the batch rows under the same lock that loaded them.
func PlanConsumption(itemID uuid.UUID, batches []model.Batch, qty decimal.Decimal, method string) ([]Allocation, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("consumption quantity must be positive, got %s", qty)
	}
	if method != ConsumeFIFO && method != ConsumeLIFO {
		return nil, fmt.Errorf("unknown consumption method %q", method)
	}

	eligible := activeBatches(batches)

	var available decimal.Decimal
	for _, b := range eligible {
		available = available.Add(b.AvailableQty())
	}
	if qty.GreaterThan(available) {
		return nil, &InsufficientStockError{ItemID: itemID, Requested: qty, Available: available}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if method == ConsumeLIFO {
			return eligible[i].ReceivedAt.After(eligible[j].ReceivedAt)
		}
		return eligible[i].ReceivedAt.Before(eligible[j].ReceivedAt)
	})

	var allocations []Allocation
	remaining := qty
	for _, b := range eligible {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, b.AvailableQty())
		if !take.IsPositive() {
			continue
		}
		allocations = append(allocations, Allocation{
			BatchID:  b.ID,
			Qty:      take,
			UnitCost: b.EffectiveUnitCost(),
		})
		remaining = remaining.Sub(take)
	}

	return allocations, nil
}

// Apply deducts an allocation from its batch and keeps the depletion flag
// in sync with the remaining quantity.
func Apply(batch *model.Batch, alloc Allocation) error {
	if alloc.Qty.GreaterThan(batch.RemainingQty) {
		return fmt.Errorf("allocation %s exceeds remaining quantity %s on batch %s",
			alloc.Qty, batch.RemainingQty, batch.ID)
	}
	batch.RemainingQty = batch.RemainingQty.Sub(alloc.Qty)
	if batch.RemainingQty.IsZero() {
		batch.Depleted = true
		batch.Active = false
	}
	return nil
}
