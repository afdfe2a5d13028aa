package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxCategory groups rates (e.g. VAT, commercial tax, service charge) and
// owns the withholding configuration for payment-side calculation.
type TaxCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex:idx_tax_cat_company_code;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`

	// Withholding tax is a payment-side calculation, separate from line tax.
	WithholdingResidentRate    decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"withholding_resident_rate"`
	WithholdingNonResidentRate decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"withholding_non_resident_rate"`
	WithholdingThreshold       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"withholding_threshold"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaxRate is one rate within a category, valid over an effective window.
// Once a posted invoice references a rate it is locked: future rate changes
// are new records, never edits.
type TaxRate struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	CategoryID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Category      *TaxCategory    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Percentage    decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"percentage"`   // e.g. 5 = 5%
	FixedAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"fixed_amount"` // per-unit fixed levy
	IsFixed       bool            `gorm:"not null;default:false" json:"is_fixed"`
	IsCompound    bool            `gorm:"not null;default:false" json:"is_compound"`
	Priority      int             `gorm:"not null;default:0" json:"priority"` // compounding order, ascending
	OnSales       bool            `gorm:"not null;default:true" json:"on_sales"`
	OnPurchases   bool            `gorm:"not null;default:false" json:"on_purchases"`
	EffectiveFrom time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"type:date;index" json:"effective_to"` // nullable = currently active
	Locked        bool            `gorm:"not null;default:false" json:"locked"` // set when first referenced by a posted invoice
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
