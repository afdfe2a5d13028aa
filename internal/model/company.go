package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Company is the tenant boundary. Every financial record carries a CompanyID
// and is only ever read or mutated within that company's scope.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Currency  string    `gorm:"type:varchar(10);not null;default:'MMK'" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarginType enum constants
const (
	MarginPercentage = "PERCENTAGE"
	MarginFixed      = "FIXED"
)

// CostMethod enum constants
const (
	CostMethodAverage    = "AVERAGE"
	CostMethodPercentile = "PERCENTILE"
	CostMethodLatest     = "LATEST"
	CostMethodHighest    = "HIGHEST"
	CostMethodLowest     = "LOWEST"
)

// Price rounding method constants
const (
	RoundingNearest = "NEAREST"
	RoundingUp      = "UP"
	RoundingDown    = "DOWN"
)

// Tax rounding method constants
const (
	TaxRoundingRound = "ROUND"
	TaxRoundingFloor = "FLOOR"
	TaxRoundingCeil  = "CEIL"
)

// CompanyPolicy holds the per-company pricing, tax, and cash-drawer policy.
// Loaded once per request and passed explicitly into every engine call so
// there is never a process-wide mutable settings object.
type CompanyPolicy struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"company_id"`

	// Pricing
	MarginType        string          `gorm:"type:varchar(20);not null;default:'PERCENTAGE'" json:"margin_type"`
	MarginValue       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"margin_value"`
	CostMethod        string          `gorm:"type:varchar(20);not null;default:'AVERAGE'" json:"cost_method"`
	ConsumptionMethod string          `gorm:"type:varchar(10);not null;default:'FIFO'" json:"consumption_method"` // FIFO, LIFO
	Percentile        decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"percentile"` // 0-100
	RoundPrices       bool            `gorm:"not null;default:false" json:"round_prices"`
	RoundingMethod    string          `gorm:"type:varchar(10);not null;default:'NEAREST'" json:"rounding_method"`
	RoundingPrecision int32           `gorm:"not null;default:2" json:"rounding_precision"`
	RoundingIncrement decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"rounding_increment"`

	// Price validation
	AllowBelowCost           bool `gorm:"not null;default:false" json:"allow_below_cost"`
	BelowCostRequiresApproval bool `gorm:"not null;default:true" json:"below_cost_requires_approval"`

	// Tax
	TaxRoundingMethod    string `gorm:"type:varchar(10);not null;default:'ROUND'" json:"tax_rounding_method"`
	TaxRoundingPrecision int32  `gorm:"not null;default:2" json:"tax_rounding_precision"`
	PricesIncludeTax     bool   `gorm:"not null;default:false" json:"prices_include_tax"`
	// When no applicable tax rate resolves, treat the line as untaxed
	// instead of failing. Off by default: a missing rate is a
	// configuration error unless the company opted in.
	UntaxedWhenRateMissing bool `gorm:"not null;default:false" json:"untaxed_when_rate_missing"`

	// Cash drawer
	CashTolerance             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cash_tolerance"`
	MinFloat                  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"min_float"`
	MaxFloat                  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"max_float"`
	AllowMultipleSessions     bool            `gorm:"not null;default:false" json:"allow_multiple_sessions"`
	CloseRequiresVerification bool            `gorm:"not null;default:false" json:"close_requires_verification"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
