package repository

import (
	"context"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	Update(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Batch, error)
	ListByItem(ctx context.Context, companyID, itemID uuid.UUID) ([]model.Batch, error)
	// ListByItemForUpdate takes row locks on every batch of the item so
	// concurrent consumptions of the same item serialize.
	ListByItemForUpdate(ctx context.Context, companyID, itemID uuid.UUID) ([]model.Batch, error)
	CreateConsumption(ctx context.Context, consumption *model.BatchConsumption) error
	ListConsumptions(ctx context.Context, companyID, itemID uuid.UUID, page, limit int) ([]model.BatchConsumption, int64, error)
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *batchRepository) Update(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Save(batch).Error
}

func (r *batchRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).First(&batch, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) ListByItem(ctx context.Context, companyID, itemID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	err := GetDB(ctx, r.db).
		Where("company_id = ? AND item_id = ?", companyID, itemID).
		Order("received_at ASC").
		Find(&batches).Error
	return batches, err
}

func (r *batchRepository) ListByItemForUpdate(ctx context.Context, companyID, itemID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND item_id = ?", companyID, itemID).
		Order("received_at ASC").
		Find(&batches).Error
	return batches, err
}

func (r *batchRepository) CreateConsumption(ctx context.Context, consumption *model.BatchConsumption) error {
	return GetDB(ctx, r.db).Create(consumption).Error
}

func (r *batchRepository) ListConsumptions(ctx context.Context, companyID, itemID uuid.UUID, page, limit int) ([]model.BatchConsumption, int64, error) {
	var rows []model.BatchConsumption
	var total int64

	query := GetDB(ctx, r.db).Model(&model.BatchConsumption{}).
		Where("company_id = ? AND item_id = ?", companyID, itemID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
