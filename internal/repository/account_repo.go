package repository

import (
	"context"
	"errors"
	"fmt"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAccountNotConfigured means the company's chart of accounts is missing
// an account for a required category. The engine never invents account
// identifiers, so this is surfaced to the caller.
var ErrAccountNotConfigured = errors.New("no account configured for category")

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	List(ctx context.Context, companyID uuid.UUID) ([]model.Account, error)
	// ResolveByCategory returns the active account for a (company,
	// category) pair; ErrAccountNotConfigured if none exists.
	ResolveByCategory(ctx context.Context, companyID uuid.UUID, category string) (*model.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Create(account).Error
}

func (r *accountRepository) List(ctx context.Context, companyID uuid.UUID) ([]model.Account, error) {
	var accounts []model.Account
	err := GetDB(ctx, r.db).Where("company_id = ?", companyID).Order("code ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) ResolveByCategory(ctx context.Context, companyID uuid.UUID, category string) (*model.Account, error) {
	var account model.Account
	err := GetDB(ctx, r.db).
		Where("company_id = ? AND category = ? AND active = true", companyID, category).
		Order("code ASC").
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotConfigured, category)
		}
		return nil, err
	}
	return &account, nil
}
