package repository

import (
	"context"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	Update(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Item, error)
	FindBySKU(ctx context.Context, companyID uuid.UUID, sku string) (*model.Item, error)
	List(ctx context.Context, companyID uuid.UUID, page, limit int, search string) ([]model.Item, int64, error)
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, item *model.Item) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).First(&item, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindBySKU(ctx context.Context, companyID uuid.UUID, sku string) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).Where("company_id = ? AND sku = ?", companyID, sku).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, companyID uuid.UUID, page, limit int, search string) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Item{}).Where("company_id = ?", companyID)
	if search != "" {
		query = query.Where("name ILIKE ? OR sku ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}
