package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus enum constants. closing -> open is the only backward
// transition (a rejected closure reopens the drawer); reconciled is terminal.
const (
	SessionOpen       = "OPEN"
	SessionClosing    = "CLOSING"
	SessionClosed     = "CLOSED"
	SessionReconciled = "RECONCILED"
)

// CashTransactionType enum constants
const (
	CashTxSale    = "SALE"
	CashTxRefund  = "REFUND"
	CashTxPayout  = "PAYOUT"
	CashTxPayIn   = "PAY_IN"
	CashTxOpening = "OPENING_FLOAT"
)

// CashDirection enum constants
const (
	CashIn  = "IN"
	CashOut = "OUT"
)

// CashSession is one cashier's drawer lifecycle: open -> transact ->
// close -> verify -> reconcile.
type CashSession struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	CashierID uuid.UUID `gorm:"type:uuid;not null;index" json:"cashier_id"`
	Cashier   *User     `gorm:"foreignKey:CashierID" json:"cashier,omitempty"`
	Status    string    `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`

	OpeningBalance decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"opening_balance"`
	RunningBalance decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"running_balance"`

	// Running per-tendertype totals, updated atomically with each transaction.
	CashSales   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cash_sales"`
	CardSales   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"card_sales"`
	MobileSales decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"mobile_sales"`
	CreditSales decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"credit_sales"`
	Refunds     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"refunds"`
	Payouts     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"payouts"`
	PayIns      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"pay_ins"`

	// Close fields, cleared again if a closure is rejected.
	ClosingBalance    *decimal.Decimal `gorm:"type:decimal(18,4)" json:"closing_balance"`
	ExpectedCash      *decimal.Decimal `gorm:"type:decimal(18,4)" json:"expected_cash"`
	DiscrepancyAmount *decimal.Decimal `gorm:"type:decimal(18,4)" json:"discrepancy_amount"`
	HasDiscrepancy    bool             `gorm:"not null;default:false" json:"has_discrepancy"`
	ClosingNote       string           `gorm:"type:text" json:"closing_note"`

	OpenedAt     time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at"`
	VerifiedBy   *uuid.UUID `gorm:"type:uuid" json:"verified_by"`
	VerifiedAt   *time.Time `json:"verified_at"`
	ReconciledAt *time.Time `json:"reconciled_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExpectedCash computes the drawer's expected cash on close:
// opening + cash sales - refunds - payouts + pay-ins.
func (s CashSession) ExpectedCashAmount() decimal.Decimal {
	return s.OpeningBalance.Add(s.CashSales).Sub(s.Refunds).Sub(s.Payouts).Add(s.PayIns)
}

// CashTransaction is an immutable append-only ledger row per cash movement.
// Ordering by creation time is the source of truth for the running balance.
type CashTransaction struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	SessionID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"session_id"`
	Type           string          `gorm:"type:varchar(20);not null" json:"type"`
	TenderType     string          `gorm:"type:varchar(20);not null;default:'CASH'" json:"tender_type"`
	Direction      string          `gorm:"type:varchar(5);not null" json:"direction"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	RunningBalance decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"running_balance"` // drawer balance snapshot after this movement
	SourceType     string          `gorm:"type:varchar(30)" json:"source_type"`
	SourceRef      string          `gorm:"type:varchar(100);index" json:"source_ref"`
	Note           string          `gorm:"type:text" json:"note"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
}

// DiscrepancyType enum constants
const (
	DiscrepancyShort = "SHORT"
	DiscrepancyOver  = "OVER"
)

// DiscrepancyStatus enum constants
const (
	DiscrepancyPending      = "PENDING"
	DiscrepancyAcknowledged = "ACKNOWLEDGED"
	DiscrepancyResolved     = "RESOLVED"
	DiscrepancyVoided       = "VOIDED" // close rejected, count discarded
)

// DiscrepancyResolution enum constants
const (
	ResolutionRepayment        = "REPAYMENT"
	ResolutionPayrollDeduction = "PAYROLL_DEDUCTION"
	ResolutionWaived           = "WAIVED"
	ResolutionErrorFound       = "ERROR_FOUND"
	ResolutionFraudConfirmed   = "FRAUD_CONFIRMED"
)

// CashDiscrepancy records a counted-vs-expected difference beyond the
// company tolerance, with an attributed resolution trail.
type CashDiscrepancy struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	SessionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"session_id"`
	CashierID uuid.UUID       `gorm:"type:uuid;not null;index" json:"cashier_id"`
	Type      string          `gorm:"type:varchar(10);not null" json:"type"` // SHORT, OVER
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Status    string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	AcknowledgedBy *uuid.UUID `gorm:"type:uuid" json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`

	ResolutionType  *string          `gorm:"type:varchar(30)" json:"resolution_type"`
	DeductionAmount *decimal.Decimal `gorm:"type:decimal(18,4)" json:"deduction_amount"` // required for PAYROLL_DEDUCTION
	ResolutionNote  string           `gorm:"type:text" json:"resolution_note"`
	ResolvedBy      *uuid.UUID       `gorm:"type:uuid" json:"resolved_by"`
	ResolvedAt      *time.Time       `json:"resolved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
