package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a sellable stock-keeping unit. Cost and price state live in the
// batches and the ItemPriceRecord derived from them, never on the item row.
type Item struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	SKU       string         `gorm:"type:varchar(100);uniqueIndex:idx_items_company_sku;not null" json:"sku"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Unit      string         `gorm:"type:varchar(20);not null;default:'pcs'" json:"unit"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Batch is a quantity of stock received at a specific landed cost, tracked
// independently for costing. Mutated only by purchase receipt (creation)
// and consumption (FIFO/LIFO selection).
//
// Invariants: RemainingQty >= 0, RemainingQty <= OriginalQty,
// Depleted <=> RemainingQty == 0.
type Batch struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	ItemID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	Item         *Item           `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	BatchLabel   string          `gorm:"type:varchar(100)" json:"batch_label"`
	SupplierRef  string          `gorm:"type:varchar(255)" json:"supplier_ref"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_cost"`
	FreightCost  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"freight_cost"`
	DutyCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"duty_cost"`
	OtherCost    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"other_cost"`
	OriginalQty  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"original_qty"`
	RemainingQty decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"remaining_qty"`
	ReservedQty  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"reserved_qty"`
	ReceivedAt   time.Time       `gorm:"not null;index" json:"received_at"`
	ExpiresAt    *time.Time      `json:"expires_at"`
	Active       bool            `gorm:"not null;default:true" json:"active"`
	Depleted     bool            `gorm:"not null;default:false" json:"depleted"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// EffectiveUnitCost spreads the batch-level landed costs over the original
// quantity and adds them to the purchase unit cost.
func (b Batch) EffectiveUnitCost() decimal.Decimal {
	landed := b.FreightCost.Add(b.DutyCost).Add(b.OtherCost)
	if landed.IsZero() || b.OriginalQty.IsZero() {
		return b.UnitCost
	}
	return b.UnitCost.Add(landed.Div(b.OriginalQty))
}

// AvailableQty is the quantity a sale may consume right now.
func (b Batch) AvailableQty() decimal.Decimal {
	return b.RemainingQty.Sub(b.ReservedQty)
}

// BatchConsumption is the append-only record of one batch drawdown.
// Never updated after creation.
type BatchConsumption struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	BatchID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"batch_id"`
	ItemID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	Qty        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"qty"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_cost"`
	SourceType string          `gorm:"type:varchar(30)" json:"source_type"` // INVOICE, ADJUSTMENT
	SourceRef  string          `gorm:"type:varchar(100);index" json:"source_ref"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}

// PriceTier applies a multiplicative discount after margin when suggesting
// selling prices (e.g. wholesale, VIP).
type PriceTier struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_pct"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ItemPriceRecord is the costing summary derived from the set of active
// batches for an item, optionally per price tier. Recomputed inside the
// same transaction as every batch mutation.
type ItemPriceRecord struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	ItemID       uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_price_item_tier;not null" json:"item_id"`
	TierID       *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_price_item_tier" json:"tier_id"`
	CurrentCost  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"current_cost"`
	AverageCost  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"average_cost"`
	LastCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"last_cost"`
	MinCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"min_cost"`
	MaxCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"max_cost"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"selling_price"`
	FloorPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"floor_price"`
	MarginType   string          `gorm:"type:varchar(20)" json:"margin_type"` // overrides the company policy when set
	MarginValue  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"margin_value"`
	PriceHistory string          `gorm:"type:jsonb;default:'[]'" json:"price_history"` // Serialized JSON log of price changes
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
