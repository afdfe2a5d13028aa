package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountCategory enum constants. The engine resolves accounts strictly by
// (company, category) and never invents account identifiers.
const (
	AccountIncome       = "INCOME"
	AccountCOGS         = "COGS"
	AccountInventory    = "INVENTORY"
	AccountTaxLiability = "TAX_LIABILITY"
	AccountReceivable   = "RECEIVABLE"
	AccountTenderCash   = "TENDER_CASH"
	AccountTenderCard   = "TENDER_CARD"
	AccountTenderMobile = "TENDER_MOBILE"
	AccountTenderCredit = "TENDER_CREDIT"
)

// Account is one entry in the company's chart of accounts.
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex:idx_accounts_company_code;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Category  string    `gorm:"type:varchar(30);not null;index" json:"category"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostingKind enum constants, carried on every posting so balance checks can
// tell the invoice-facing side (tender, income, tax) from the internal cost
// transfer (COGS, inventory).
const (
	PostingTender    = "TENDER"
	PostingIncome    = "INCOME"
	PostingTax       = "TAX"
	PostingCOGS      = "COGS"
	PostingInventory = "INVENTORY"
)

// LedgerPosting is one debit or credit line in a double-entry distribution.
// A set of postings for one invoice satisfies sum(debits) == sum(credits);
// the invariant is enforced before persistence, never repaired after.
type LedgerPosting struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	InvoiceID  *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"`
	AccountID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"account_id"`
	Account    *Account        `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Kind       string          `gorm:"type:varchar(20);not null" json:"kind"`
	Debit      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"debit"`
	Credit     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"credit"`
	Memo       string          `gorm:"type:varchar(255)" json:"memo"`
	SourceType string          `gorm:"type:varchar(30);not null" json:"source_type"`
	SourceRef  string          `gorm:"type:varchar(100);index" json:"source_ref"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}
