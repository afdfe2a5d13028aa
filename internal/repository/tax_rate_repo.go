package repository

import (
	"context"
	"time"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaxRateRepository interface {
	CreateCategory(ctx context.Context, category *model.TaxCategory) error
	FindCategoryByID(ctx context.Context, companyID, id uuid.UUID) (*model.TaxCategory, error)
	FindCategoryByCode(ctx context.Context, companyID uuid.UUID, code string) (*model.TaxCategory, error)
	ListCategories(ctx context.Context, companyID uuid.UUID) ([]model.TaxCategory, error)

	CreateRate(ctx context.Context, rate *model.TaxRate) error
	UpdateRate(ctx context.Context, rate *model.TaxRate) error
	DeleteRate(ctx context.Context, companyID, id uuid.UUID) error
	FindRateByID(ctx context.Context, companyID, id uuid.UUID) (*model.TaxRate, error)
	ListRates(ctx context.Context, companyID uuid.UUID) ([]model.TaxRate, error)
	// ActiveSalesRates resolves the rates applicable to a sale on a date,
	// ordered by compounding priority.
	ActiveSalesRates(ctx context.Context, companyID, categoryID uuid.UUID, on time.Time) ([]model.TaxRate, error)
	CountOverlapping(ctx context.Context, companyID, categoryID uuid.UUID, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error)
	MarkLocked(ctx context.Context, ids []uuid.UUID) error
}

type taxRateRepository struct {
	db *gorm.DB
}

func NewTaxRateRepository(db *gorm.DB) TaxRateRepository {
	return &taxRateRepository{db: db}
}

func (r *taxRateRepository) CreateCategory(ctx context.Context, category *model.TaxCategory) error {
	return GetDB(ctx, r.db).Create(category).Error
}

func (r *taxRateRepository) FindCategoryByID(ctx context.Context, companyID, id uuid.UUID) (*model.TaxCategory, error) {
	var category model.TaxCategory
	if err := GetDB(ctx, r.db).First(&category, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *taxRateRepository) FindCategoryByCode(ctx context.Context, companyID uuid.UUID, code string) (*model.TaxCategory, error) {
	var category model.TaxCategory
	if err := GetDB(ctx, r.db).Where("company_id = ? AND code = ?", companyID, code).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *taxRateRepository) ListCategories(ctx context.Context, companyID uuid.UUID) ([]model.TaxCategory, error) {
	var categories []model.TaxCategory
	err := GetDB(ctx, r.db).Where("company_id = ?", companyID).Order("code ASC").Find(&categories).Error
	return categories, err
}

func (r *taxRateRepository) CreateRate(ctx context.Context, rate *model.TaxRate) error {
	return GetDB(ctx, r.db).Create(rate).Error
}

func (r *taxRateRepository) UpdateRate(ctx context.Context, rate *model.TaxRate) error {
	return GetDB(ctx, r.db).Save(rate).Error
}

func (r *taxRateRepository) DeleteRate(ctx context.Context, companyID, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ? AND company_id = ?", id, companyID).Delete(&model.TaxRate{}).Error
}

func (r *taxRateRepository) FindRateByID(ctx context.Context, companyID, id uuid.UUID) (*model.TaxRate, error) {
	var rate model.TaxRate
	if err := GetDB(ctx, r.db).First(&rate, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *taxRateRepository) ListRates(ctx context.Context, companyID uuid.UUID) ([]model.TaxRate, error) {
	var rates []model.TaxRate
	err := GetDB(ctx, r.db).
		Where("company_id = ?", companyID).
		Order("effective_from DESC").
		Find(&rates).Error
	return rates, err
}

func (r *taxRateRepository) ActiveSalesRates(ctx context.Context, companyID, categoryID uuid.UUID, on time.Time) ([]model.TaxRate, error) {
	var rates []model.TaxRate
	err := GetDB(ctx, r.db).
		Where("company_id = ? AND category_id = ? AND on_sales = true", companyID, categoryID).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", on, on).
		Order("priority ASC").
		Find(&rates).Error
	return rates, err
}

func (r *taxRateRepository) CountOverlapping(ctx context.Context, companyID, categoryID uuid.UUID, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error) {
	end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	if to != nil {
		end = *to
	}

	query := GetDB(ctx, r.db).Model(&model.TaxRate{}).
		Where("company_id = ? AND category_id = ?", companyID, categoryID).
		Where("effective_from <= ?", end).
		Where("(effective_to IS NULL OR effective_to >= ?)", from)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *taxRateRepository) MarkLocked(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Model(&model.TaxRate{}).
		Where("id IN ? AND locked = false", ids).
		Update("locked", true).Error
}
