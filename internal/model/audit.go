package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionRecordPurchase    = "RECORD_PURCHASE"
	ActionConsumeStock      = "CONSUME_STOCK"
	ActionUpdatePriceRecord = "UPDATE_PRICE_RECORD"
	ActionCreateTaxCategory = "CREATE_TAX_CATEGORY"
	ActionCreateTaxRate     = "CREATE_TAX_RATE"
	ActionUpdateTaxRate     = "UPDATE_TAX_RATE"
	ActionDeleteTaxRate     = "DELETE_TAX_RATE"
	ActionPostInvoice       = "POST_INVOICE"

	// Cash drawer actions
	ActionOpenSession        = "OPEN_SESSION"
	ActionRecordCashTx       = "RECORD_CASH_TRANSACTION"
	ActionCloseSession       = "CLOSE_SESSION"
	ActionVerifyClose        = "VERIFY_CLOSE"
	ActionResolveDiscrepancy = "RESOLVE_DISCREPANCY"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
