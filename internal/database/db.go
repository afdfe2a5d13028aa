package database

import (
	"log"

	"posfinance/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.Company{},
		&model.CompanyPolicy{},
		&model.User{},
		&model.RefreshToken{},
		&model.Item{},
		&model.Batch{},
		&model.BatchConsumption{},
		&model.PriceTier{},
		&model.ItemPriceRecord{},
		&model.TaxCategory{},
		&model.TaxRate{},
		&model.Account{},
		&model.LedgerPosting{},
		&model.Invoice{},
		&model.InvoiceLine{},
		&model.InvoiceTaxLine{},
		&model.InvoicePayment{},
		&model.CashSession{},
		&model.CashTransaction{},
		&model.CashDiscrepancy{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
