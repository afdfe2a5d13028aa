package repository

import (
	"context"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceListFilter struct {
	SessionID *uuid.UUID
	InvoiceNo string
	Page      int
	Limit     int
}

type InvoiceRepository interface {
	// Create persists the invoice with its lines, tax lines, payments and
	// postings in one shot via gorm associations. Callers validate the
	// posting balance before reaching this point.
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, companyID uuid.UUID, filter InvoiceListFilter) ([]model.Invoice, int64, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	CountReferencingTaxRate(ctx context.Context, rateID uuid.UUID) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("Lines").
		Preload("TaxLines").
		Preload("Payments").
		Preload("Postings").
		First(&invoice, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, companyID uuid.UUID, filter InvoiceListFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("company_id = ?", companyID)
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.InvoiceNo != "" {
		query = query.Where("invoice_no ILIKE ?", "%"+filter.InvoiceNo+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := query.Preload("Lines").Preload("Payments").
		Order("created_at DESC").Offset(offset).Limit(filter.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("invoice_no LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (r *invoiceRepository) CountReferencingTaxRate(ctx context.Context, rateID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.InvoiceTaxLine{}).
		Where("tax_rate_id = ?", rateID).
		Count(&count).Error
	return count, err
}
