package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enum constants
const (
	InvoicePosted = "POSTED"
	InvoiceVoided = "VOIDED"
)

// Invoice is the persisted result of one POS checkout: costed and taxed
// lines, payments, and the balanced ledger postings generated from them.
// An invoice is only ever written after its postings validate as balanced.
type Invoice struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"company_id"`
	InvoiceNo        string           `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	SessionID        *uuid.UUID       `gorm:"type:uuid;index" json:"session_id"`
	CashierID        *uuid.UUID       `gorm:"type:uuid;index" json:"cashier_id"`
	PricesIncludeTax bool             `gorm:"not null;default:false" json:"prices_include_tax"`
	Subtotal         decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"subtotal"`    // sum of taxable bases
	TaxTotal         decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"tax_total"`
	CostTotal        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"cost_total"`
	GrandTotal       decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"grand_total"`
	Status           string           `gorm:"type:varchar(20);not null;default:'POSTED'" json:"status"`
	Note             string           `gorm:"type:text" json:"note"`
	Lines            []InvoiceLine    `gorm:"foreignKey:InvoiceID" json:"lines"`
	TaxLines         []InvoiceTaxLine `gorm:"foreignKey:InvoiceID" json:"tax_lines"`
	Payments         []InvoicePayment `gorm:"foreignKey:InvoiceID" json:"payments"`
	Postings         []LedgerPosting  `gorm:"foreignKey:InvoiceID" json:"postings,omitempty"`
	CreatedAt        time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// InvoiceLine is a sale line with its resolved cost basis snapshot.
type InvoiceLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	ItemID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	Item        *Item           `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Qty         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	TaxableBase decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"taxable_base"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	CostBasis   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cost_basis"` // unit cost resolved at sale time
	CostTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cost_total"`
}

// InvoiceTaxLine is one tax component folded into the invoice, snapshotting
// the rate it was computed from.
type InvoiceTaxLine struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	TaxRateID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"tax_rate_id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Rate        decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"rate"`
	TaxableBase decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"taxable_base"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
}

// TenderType enum constants
const (
	TenderCash   = "CASH"
	TenderCard   = "CARD"
	TenderMobile = "MOBILE"
	TenderCredit = "CREDIT"
)

// InvoicePayment is one payment instruction settled against the invoice.
type InvoicePayment struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	TenderType string          `gorm:"type:varchar(20);not null" json:"tender_type"`
	AccountID  uuid.UUID       `gorm:"type:uuid;not null" json:"account_id"` // tender account resolved by category
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Reference  string          `gorm:"type:varchar(100)" json:"reference"`
	CreatedAt  time.Time       `json:"created_at"`
}
