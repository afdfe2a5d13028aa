package repository

import (
	"context"
	"errors"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PolicyRepository interface {
	// FindByCompany loads the company policy, falling back to defaults
	// when none has been saved yet.
	FindByCompany(ctx context.Context, companyID uuid.UUID) (*model.CompanyPolicy, error)
	Save(ctx context.Context, policy *model.CompanyPolicy) error
}

type policyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) (*model.CompanyPolicy, error) {
	var policy model.CompanyPolicy
	err := GetDB(ctx, r.db).Where("company_id = ?", companyID).First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return defaultPolicy(companyID), nil
		}
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) Save(ctx context.Context, policy *model.CompanyPolicy) error {
	return GetDB(ctx, r.db).Save(policy).Error
}

func defaultPolicy(companyID uuid.UUID) *model.CompanyPolicy {
	return &model.CompanyPolicy{
		CompanyID:                 companyID,
		MarginType:                model.MarginPercentage,
		MarginValue:               decimal.NewFromInt(20),
		CostMethod:                model.CostMethodAverage,
		ConsumptionMethod:         "FIFO",
		RoundingMethod:            model.RoundingNearest,
		RoundingPrecision:         2,
		BelowCostRequiresApproval: true,
		TaxRoundingMethod:         model.TaxRoundingRound,
		TaxRoundingPrecision:      2,
	}
}
