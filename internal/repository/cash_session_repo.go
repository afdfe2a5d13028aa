package repository

import (
	"context"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CashSessionRepository interface {
	Create(ctx context.Context, session *model.CashSession) error
	Update(ctx context.Context, session *model.CashSession) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.CashSession, error)
	// FindByIDForUpdate locks the session row. Running-balance updates are
	// read-modify-write, so every mutation path goes through this.
	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*model.CashSession, error)
	FindOpenByCashier(ctx context.Context, companyID, cashierID uuid.UUID) ([]model.CashSession, error)
	List(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashSession, int64, error)

	AppendTransaction(ctx context.Context, tx *model.CashTransaction) error
	ListTransactions(ctx context.Context, companyID, sessionID uuid.UUID) ([]model.CashTransaction, error)

	CreateDiscrepancy(ctx context.Context, d *model.CashDiscrepancy) error
	UpdateDiscrepancy(ctx context.Context, d *model.CashDiscrepancy) error
	FindDiscrepancyByID(ctx context.Context, companyID, id uuid.UUID) (*model.CashDiscrepancy, error)
	// FindPendingDiscrepancyBySession returns the PENDING discrepancy
	// created by the session's close, if any.
	FindPendingDiscrepancyBySession(ctx context.Context, companyID, sessionID uuid.UUID) (*model.CashDiscrepancy, error)
	ListDiscrepancies(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashDiscrepancy, int64, error)
}

type cashSessionRepository struct {
	db *gorm.DB
}

func NewCashSessionRepository(db *gorm.DB) CashSessionRepository {
	return &cashSessionRepository{db: db}
}

func (r *cashSessionRepository) Create(ctx context.Context, session *model.CashSession) error {
	return GetDB(ctx, r.db).Create(session).Error
}

func (r *cashSessionRepository) Update(ctx context.Context, session *model.CashSession) error {
	return GetDB(ctx, r.db).Save(session).Error
}

func (r *cashSessionRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.CashSession, error) {
	var session model.CashSession
	if err := GetDB(ctx, r.db).First(&session, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *cashSessionRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*model.CashSession, error) {
	var session model.CashSession
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *cashSessionRepository) FindOpenByCashier(ctx context.Context, companyID, cashierID uuid.UUID) ([]model.CashSession, error) {
	var sessions []model.CashSession
	err := GetDB(ctx, r.db).
		Where("company_id = ? AND cashier_id = ? AND status IN ?", companyID, cashierID,
			[]string{model.SessionOpen, model.SessionClosing}).
		Find(&sessions).Error
	return sessions, err
}

func (r *cashSessionRepository) List(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64

	query := GetDB(ctx, r.db).Model(&model.CashSession{}).Where("company_id = ?", companyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("opened_at DESC").Offset(offset).Limit(limit).Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (r *cashSessionRepository) AppendTransaction(ctx context.Context, tx *model.CashTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *cashSessionRepository) ListTransactions(ctx context.Context, companyID, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	var txs []model.CashTransaction
	err := GetDB(ctx, r.db).
		Where("company_id = ? AND session_id = ?", companyID, sessionID).
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}

func (r *cashSessionRepository) CreateDiscrepancy(ctx context.Context, d *model.CashDiscrepancy) error {
	return GetDB(ctx, r.db).Create(d).Error
}

func (r *cashSessionRepository) UpdateDiscrepancy(ctx context.Context, d *model.CashDiscrepancy) error {
	return GetDB(ctx, r.db).Save(d).Error
}

func (r *cashSessionRepository) FindDiscrepancyByID(ctx context.Context, companyID, id uuid.UUID) (*model.CashDiscrepancy, error) {
	var d model.CashDiscrepancy
	if err := GetDB(ctx, r.db).First(&d, "id = ? AND company_id = ?", id, companyID).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *cashSessionRepository) FindPendingDiscrepancyBySession(ctx context.Context, companyID, sessionID uuid.UUID) (*model.CashDiscrepancy, error) {
	var d model.CashDiscrepancy
	if err := GetDB(ctx, r.db).First(&d, "session_id = ? AND company_id = ? AND status = ?", sessionID, companyID, model.DiscrepancyPending).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *cashSessionRepository) ListDiscrepancies(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashDiscrepancy, int64, error) {
	var rows []model.CashDiscrepancy
	var total int64

	query := GetDB(ctx, r.db).Model(&model.CashDiscrepancy{}).Where("company_id = ?", companyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
