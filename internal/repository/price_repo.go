package repository

import (
	"context"
	"errors"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PriceRepository interface {
	Save(ctx context.Context, record *model.ItemPriceRecord) error
	FindByItem(ctx context.Context, companyID, itemID uuid.UUID, tierID *uuid.UUID) (*model.ItemPriceRecord, error)
	FindTier(ctx context.Context, companyID, tierID uuid.UUID) (*model.PriceTier, error)
	CreateTier(ctx context.Context, tier *model.PriceTier) error
	ListTiers(ctx context.Context, companyID uuid.UUID) ([]model.PriceTier, error)
}

type priceRepository struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) Save(ctx context.Context, record *model.ItemPriceRecord) error {
	return GetDB(ctx, r.db).Save(record).Error
}

func (r *priceRepository) FindByItem(ctx context.Context, companyID, itemID uuid.UUID, tierID *uuid.UUID) (*model.ItemPriceRecord, error) {
	var record model.ItemPriceRecord
	query := GetDB(ctx, r.db).Where("company_id = ? AND item_id = ?", companyID, itemID)
	if tierID != nil {
		query = query.Where("tier_id = ?", *tierID)
	} else {
		query = query.Where("tier_id IS NULL")
	}
	if err := query.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Fresh record: the caller fills and saves it.
			return &model.ItemPriceRecord{CompanyID: companyID, ItemID: itemID, TierID: tierID, PriceHistory: "[]"}, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *priceRepository) FindTier(ctx context.Context, companyID, tierID uuid.UUID) (*model.PriceTier, error) {
	var tier model.PriceTier
	if err := GetDB(ctx, r.db).First(&tier, "id = ? AND company_id = ?", tierID, companyID).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *priceRepository) CreateTier(ctx context.Context, tier *model.PriceTier) error {
	return GetDB(ctx, r.db).Create(tier).Error
}

func (r *priceRepository) ListTiers(ctx context.Context, companyID uuid.UUID) ([]model.PriceTier, error) {
	var tiers []model.PriceTier
	err := GetDB(ctx, r.db).Where("company_id = ?", companyID).Order("name ASC").Find(&tiers).Error
	return tiers, err
}
