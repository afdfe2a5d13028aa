package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"posfinance/internal/model"
	"posfinance/internal/repository"
	"posfinance/internal/taxcalc"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrTaxRateLocked = errors.New("tax rate is locked: create a new rate with a fresh effective window instead")

// --- DTOs ---

type TaxCategoryRequest struct {
	Code                       string `json:"code" binding:"required"`
	Name                       string `json:"name" binding:"required"`
	WithholdingResidentRate    string `json:"withholding_resident_rate"`
	WithholdingNonResidentRate string `json:"withholding_non_resident_rate"`
	WithholdingThreshold       string `json:"withholding_threshold"`
}

type TaxRateRequest struct {
	CategoryID    string `json:"category_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Percentage    string `json:"percentage"`
	FixedAmount   string `json:"fixed_amount"`
	IsFixed       bool   `json:"is_fixed"`
	IsCompound    bool   `json:"is_compound"`
	Priority      int    `json:"priority"`
	OnSales       *bool  `json:"on_sales"`
	OnPurchases   bool   `json:"on_purchases"`
	EffectiveFrom string `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveTo   string `json:"effective_to"`                      // YYYY-MM-DD, empty = open-ended
}

type TaxLineRequest struct {
	CategoryID string `json:"category_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Qty        string `json:"qty"`
}

type CalculateTaxRequest struct {
	Lines            []TaxLineRequest `json:"lines" binding:"required,min=1,dive"`
	PricesIncludeTax *bool            `json:"prices_include_tax"` // defaults to company policy
	AsOf             string           `json:"as_of"`              // YYYY-MM-DD, defaults to today
}

type WithholdingRequest struct {
	CategoryID string `json:"category_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Resident   *bool  `json:"resident"` // defaults true
}

// --- Interface ---

type TaxService interface {
	CreateCategory(ctx context.Context, companyID uuid.UUID, userID string, req TaxCategoryRequest) (*model.TaxCategory, error)
	ListCategories(ctx context.Context, companyID uuid.UUID) ([]model.TaxCategory, error)

	CreateRate(ctx context.Context, companyID uuid.UUID, userID string, req TaxRateRequest) (*model.TaxRate, error)
	UpdateRate(ctx context.Context, companyID, rateID uuid.UUID, userID string, req TaxRateRequest) (*model.TaxRate, error)
	DeleteRate(ctx context.Context, companyID, rateID uuid.UUID, userID string) error
	ListRates(ctx context.Context, companyID uuid.UUID) ([]model.TaxRate, error)

	Calculate(ctx context.Context, companyID uuid.UUID, req CalculateTaxRequest) (taxcalc.DocumentResult, []taxcalc.LineResult, error)
	CalculateWithholding(ctx context.Context, companyID uuid.UUID, req WithholdingRequest) (taxcalc.WithholdingResult, error)

	// ResolveRates returns the active sales-side rate specs for a category
	// at a point in time, or ErrTaxConfigurationMissing when none are
	// configured and the company policy does not allow untaxed lines.
	ResolveRates(ctx context.Context, companyID, categoryID uuid.UUID, on time.Time) ([]taxcalc.RateSpec, error)
}

type taxService struct {
	taxRepo     repository.TaxRateRepository
	invoiceRepo repository.InvoiceRepository
	policyRepo  repository.PolicyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewTaxService(
	taxRepo repository.TaxRateRepository,
	invoiceRepo repository.InvoiceRepository,
	policyRepo repository.PolicyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) TaxService {
	return &taxService{
		taxRepo:     taxRepo,
		invoiceRepo: invoiceRepo,
		policyRepo:  policyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Categories ---

func (s *taxService) CreateCategory(ctx context.Context, companyID uuid.UUID, userID string, req TaxCategoryRequest) (*model.TaxCategory, error) {
	resident, err := parseOptionalDecimal(req.WithholdingResidentRate)
	if err != nil {
		return nil, fmt.Errorf("invalid withholding_resident_rate: %w", err)
	}
	nonResident, err := parseOptionalDecimal(req.WithholdingNonResidentRate)
	if err != nil {
		return nil, fmt.Errorf("invalid withholding_non_resident_rate: %w", err)
	}
	threshold, err := parseOptionalDecimal(req.WithholdingThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid withholding_threshold: %w", err)
	}

	if existing, findErr := s.taxRepo.FindCategoryByCode(ctx, companyID, req.Code); findErr == nil && existing != nil {
		return nil, fmt.Errorf("tax category code %q already exists", req.Code)
	}

	category := &model.TaxCategory{
		CompanyID:                  companyID,
		Code:                       req.Code,
		Name:                       req.Name,
		WithholdingResidentRate:    resident,
		WithholdingNonResidentRate: nonResident,
		WithholdingThreshold:       threshold,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.taxRepo.CreateCategory(txCtx, category); err != nil {
			return fmt.Errorf("failed to create tax category: %w", err)
		}
		return s.audit(txCtx, companyID, userID, model.ActionCreateTaxCategory, category.ID.String(), category.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *taxService) ListCategories(ctx context.Context, companyID uuid.UUID) ([]model.TaxCategory, error) {
	return s.taxRepo.ListCategories(ctx, companyID)
}

// --- Rates ---

func (s *taxService) CreateRate(ctx context.Context, companyID uuid.UUID, userID string, req TaxRateRequest) (*model.TaxRate, error) {
	rate, err := s.rateFromRequest(companyID, req)
	if err != nil {
		return nil, err
	}

	if _, err := s.taxRepo.FindCategoryByID(ctx, companyID, rate.CategoryID); err != nil {
		return nil, errors.New("tax category not found")
	}

	overlapping, err := s.taxRepo.CountOverlapping(ctx, companyID, rate.CategoryID, rate.EffectiveFrom, rate.EffectiveTo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check effective window: %w", err)
	}
	if overlapping > 0 && !rate.IsCompound && !rate.IsFixed {
		// Overlapping percentage rates in a category are almost always a
		// configuration mistake; compound/fixed rates stack deliberately.
		return nil, fmt.Errorf("effective window overlaps %d existing rate(s) in this category", overlapping)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.taxRepo.CreateRate(txCtx, rate); err != nil {
			return fmt.Errorf("failed to create tax rate: %w", err)
		}
		return s.audit(txCtx, companyID, userID, model.ActionCreateTaxRate, rate.ID.String(), rate.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return rate, nil
}

func (s *taxService) UpdateRate(ctx context.Context, companyID, rateID uuid.UUID, userID string, req TaxRateRequest) (*model.TaxRate, error) {
	existing, err := s.taxRepo.FindRateByID(ctx, companyID, rateID)
	if err != nil {
		return nil, errors.New("tax rate not found")
	}
	if locked, lockErr := s.rateIsLocked(ctx, existing); lockErr != nil {
		return nil, lockErr
	} else if locked {
		return nil, ErrTaxRateLocked
	}

	updated, err := s.rateFromRequest(companyID, req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	overlapping, err := s.taxRepo.CountOverlapping(ctx, companyID, updated.CategoryID, updated.EffectiveFrom, updated.EffectiveTo, &rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to check effective window: %w", err)
	}
	if overlapping > 0 && !updated.IsCompound && !updated.IsFixed {
		return nil, fmt.Errorf("effective window overlaps %d existing rate(s) in this category", overlapping)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.taxRepo.UpdateRate(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update tax rate: %w", err)
		}
		return s.audit(txCtx, companyID, userID, model.ActionUpdateTaxRate, rateID.String(), updated.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *taxService) DeleteRate(ctx context.Context, companyID, rateID uuid.UUID, userID string) error {
	existing, err := s.taxRepo.FindRateByID(ctx, companyID, rateID)
	if err != nil {
		return errors.New("tax rate not found")
	}
	if locked, lockErr := s.rateIsLocked(ctx, existing); lockErr != nil {
		return lockErr
	} else if locked {
		return ErrTaxRateLocked
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.taxRepo.DeleteRate(txCtx, companyID, rateID); err != nil {
			return fmt.Errorf("failed to delete tax rate: %w", err)
		}
		return s.audit(txCtx, companyID, userID, model.ActionDeleteTaxRate, rateID.String(), existing.Name, nil)
	})
}

func (s *taxService) ListRates(ctx context.Context, companyID uuid.UUID) ([]model.TaxRate, error) {
	return s.taxRepo.ListRates(ctx, companyID)
}

// rateIsLocked checks both the lock flag and, as a safety net, whether any
// posted invoice already references the rate.
func (s *taxService) rateIsLocked(ctx context.Context, rate *model.TaxRate) (bool, error) {
	if rate.Locked {
		return true, nil
	}
	count, err := s.invoiceRepo.CountReferencingTaxRate(ctx, rate.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check rate references: %w", err)
	}
	return count > 0, nil
}

// --- Calculation ---

func (s *taxService) Calculate(ctx context.Context, companyID uuid.UUID, req CalculateTaxRequest) (taxcalc.DocumentResult, []taxcalc.LineResult, error) {
	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return taxcalc.DocumentResult{}, nil, fmt.Errorf("failed to load policy: %w", err)
	}

	inclusive := policy.PricesIncludeTax
	if req.PricesIncludeTax != nil {
		inclusive = *req.PricesIncludeTax
	}

	asOf := time.Now()
	if req.AsOf != "" {
		asOf, err = time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			return taxcalc.DocumentResult{}, nil, fmt.Errorf("invalid as_of (expected YYYY-MM-DD): %w", err)
		}
	}

	rounding := taxcalc.Rounding{Method: policy.TaxRoundingMethod, Precision: policy.TaxRoundingPrecision}

	results := make([]taxcalc.LineResult, 0, len(req.Lines))
	for i, line := range req.Lines {
		categoryID, parseErr := uuid.Parse(line.CategoryID)
		if parseErr != nil {
			return taxcalc.DocumentResult{}, nil, fmt.Errorf("line %d: invalid category_id: %w", i, parseErr)
		}
		amount, parseErr := decimal.NewFromString(line.Amount)
		if parseErr != nil {
			return taxcalc.DocumentResult{}, nil, fmt.Errorf("line %d: invalid amount: %w", i, parseErr)
		}
		qty := decimal.NewFromInt(1)
		if line.Qty != "" {
			qty, parseErr = decimal.NewFromString(line.Qty)
			if parseErr != nil || !qty.IsPositive() {
				return taxcalc.DocumentResult{}, nil, fmt.Errorf("line %d: qty must be a positive decimal", i)
			}
		}

		specs, resolveErr := s.ResolveRates(ctx, companyID, categoryID, asOf)
		if resolveErr != nil {
			return taxcalc.DocumentResult{}, nil, fmt.Errorf("line %d: %w", i, resolveErr)
		}

		result, calcErr := taxcalc.CalculateLine(amount, qty, specs, inclusive, rounding)
		if calcErr != nil {
			return taxcalc.DocumentResult{}, nil, fmt.Errorf("line %d: %w", i, calcErr)
		}
		results = append(results, result)
	}

	return taxcalc.CalculateDocument(results), results, nil
}

func (s *taxService) CalculateWithholding(ctx context.Context, companyID uuid.UUID, req WithholdingRequest) (taxcalc.WithholdingResult, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return taxcalc.WithholdingResult{}, fmt.Errorf("invalid category_id: %w", err)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return taxcalc.WithholdingResult{}, errors.New("amount must be a non-negative decimal")
	}

	category, err := s.taxRepo.FindCategoryByID(ctx, companyID, categoryID)
	if err != nil {
		return taxcalc.WithholdingResult{}, errors.New("tax category not found")
	}

	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return taxcalc.WithholdingResult{}, fmt.Errorf("failed to load policy: %w", err)
	}

	resident := true
	if req.Resident != nil {
		resident = *req.Resident
	}

	rounding := taxcalc.Rounding{Method: policy.TaxRoundingMethod, Precision: policy.TaxRoundingPrecision}
	return taxcalc.CalculateWithholding(
		amount,
		category.WithholdingResidentRate,
		category.WithholdingNonResidentRate,
		category.WithholdingThreshold,
		resident,
		rounding,
	), nil
}

func (s *taxService) ResolveRates(ctx context.Context, companyID, categoryID uuid.UUID, on time.Time) ([]taxcalc.RateSpec, error) {
	rates, err := s.taxRepo.ActiveSalesRates(ctx, companyID, categoryID, on)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tax rates: %w", err)
	}
	if len(rates) == 0 {
		policy, policyErr := s.policyRepo.FindByCompany(ctx, companyID)
		if policyErr != nil {
			return nil, fmt.Errorf("failed to load policy: %w", policyErr)
		}
		if policy.UntaxedWhenRateMissing {
			return nil, nil // explicit opt-in: line goes through untaxed
		}
		return nil, taxcalc.ErrTaxConfigurationMissing
	}

	specs := make([]taxcalc.RateSpec, 0, len(rates))
	for _, rate := range rates {
		specs = append(specs, taxcalc.RateSpec{
			RateID:      rate.ID,
			Name:        rate.Name,
			Percentage:  rate.Percentage,
			FixedAmount: rate.FixedAmount,
			IsFixed:     rate.IsFixed,
			IsCompound:  rate.IsCompound,
			Priority:    rate.Priority,
		})
	}
	return specs, nil
}

// --- Helpers ---

func (s *taxService) rateFromRequest(companyID uuid.UUID, req TaxRateRequest) (*model.TaxRate, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("invalid category_id: %w", err)
	}

	percentage, err := parseOptionalDecimal(req.Percentage)
	if err != nil {
		return nil, fmt.Errorf("invalid percentage: %w", err)
	}
	fixed, err := parseOptionalDecimal(req.FixedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid fixed_amount: %w", err)
	}
	if req.IsFixed && fixed.IsZero() {
		return nil, errors.New("fixed rates require a non-zero fixed_amount")
	}
	if !req.IsFixed && percentage.IsZero() {
		return nil, errors.New("percentage rates require a non-zero percentage")
	}

	from, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid effective_from (expected YYYY-MM-DD): %w", err)
	}
	var to *time.Time
	if req.EffectiveTo != "" {
		parsed, parseErr := time.Parse("2006-01-02", req.EffectiveTo)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid effective_to (expected YYYY-MM-DD): %w", parseErr)
		}
		if !parsed.After(from) {
			return nil, errors.New("effective_to must be after effective_from")
		}
		to = &parsed
	}

	onSales := true
	if req.OnSales != nil {
		onSales = *req.OnSales
	}

	return &model.TaxRate{
		CompanyID:     companyID,
		CategoryID:    categoryID,
		Name:          req.Name,
		Percentage:    percentage,
		FixedAmount:   fixed,
		IsFixed:       req.IsFixed,
		IsCompound:    req.IsCompound,
		Priority:      req.Priority,
		OnSales:       onSales,
		OnPurchases:   req.OnPurchases,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}, nil
}

func (s *taxService) audit(ctx context.Context, companyID uuid.UUID, userID, action, entityID, entityName string, payload interface{}) error {
	details := ""
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			details = string(raw)
		}
	}
	entry := &model.AuditLog{
		CompanyID:  &companyID,
		UserID:     parseUserID(userID),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    details,
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
