package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"posfinance/internal/ledger"
	"posfinance/internal/model"
	"posfinance/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleAccounts is the resolved chart-of-accounts slice a sale posts against.
type SaleAccounts struct {
	Income       *model.Account
	COGS         *model.Account
	Inventory    *model.Account
	TaxLiability *model.Account
}

// LedgerService resolves accounts and turns built distributions into
// persistable postings. It never persists anything itself; the checkout
// transaction owns that.
type LedgerService interface {
	ResolveSaleAccounts(ctx context.Context, companyID uuid.UUID) (SaleAccounts, error)
	ResolveTenderAccount(ctx context.Context, companyID uuid.UUID, tenderType string) (*model.Account, error)
	ListAccounts(ctx context.Context, companyID uuid.UUID) ([]model.Account, error)
	CreateAccount(ctx context.Context, companyID uuid.UUID, req AccountRequest) (*model.Account, error)
	// BuildPostings builds and balance-checks the distribution. On
	// imbalance it logs the full posting dump and returns the error with
	// nothing persisted.
	BuildPostings(companyID uuid.UUID, lines []ledger.Line, payments []ledger.Payment, expectedTotal decimal.Decimal) ([]model.LedgerPosting, error)
}

type AccountRequest struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
}

type ledgerService struct {
	accountRepo repository.AccountRepository
}

func NewLedgerService(accountRepo repository.AccountRepository) LedgerService {
	return &ledgerService{accountRepo: accountRepo}
}

func (s *ledgerService) ResolveSaleAccounts(ctx context.Context, companyID uuid.UUID) (SaleAccounts, error) {
	income, err := s.accountRepo.ResolveByCategory(ctx, companyID, model.AccountIncome)
	if err != nil {
		return SaleAccounts{}, err
	}
	cogs, err := s.accountRepo.ResolveByCategory(ctx, companyID, model.AccountCOGS)
	if err != nil {
		return SaleAccounts{}, err
	}
	inventory, err := s.accountRepo.ResolveByCategory(ctx, companyID, model.AccountInventory)
	if err != nil {
		return SaleAccounts{}, err
	}
	taxLiability, err := s.accountRepo.ResolveByCategory(ctx, companyID, model.AccountTaxLiability)
	if err != nil {
		return SaleAccounts{}, err
	}
	return SaleAccounts{Income: income, COGS: cogs, Inventory: inventory, TaxLiability: taxLiability}, nil
}

func (s *ledgerService) ResolveTenderAccount(ctx context.Context, companyID uuid.UUID, tenderType string) (*model.Account, error) {
	category, ok := tenderAccountCategory[tenderType]
	if !ok {
		return nil, fmt.Errorf("unknown tender type %q", tenderType)
	}
	return s.accountRepo.ResolveByCategory(ctx, companyID, category)
}

var tenderAccountCategory = map[string]string{
	model.TenderCash:   model.AccountTenderCash,
	model.TenderCard:   model.AccountTenderCard,
	model.TenderMobile: model.AccountTenderMobile,
	model.TenderCredit: model.AccountTenderCredit,
}

func (s *ledgerService) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]model.Account, error) {
	return s.accountRepo.List(ctx, companyID)
}

func (s *ledgerService) CreateAccount(ctx context.Context, companyID uuid.UUID, req AccountRequest) (*model.Account, error) {
	if !validAccountCategory(req.Category) {
		return nil, fmt.Errorf("unknown account category %q", req.Category)
	}
	account := &model.Account{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Category:  req.Category,
		Active:    true,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

func validAccountCategory(category string) bool {
	switch category {
	case model.AccountIncome, model.AccountCOGS, model.AccountInventory,
		model.AccountTaxLiability, model.AccountReceivable,
		model.AccountTenderCash, model.AccountTenderCard,
		model.AccountTenderMobile, model.AccountTenderCredit:
		return true
	}
	return false
}

func (s *ledgerService) BuildPostings(companyID uuid.UUID, lines []ledger.Line, payments []ledger.Payment, expectedTotal decimal.Decimal) ([]model.LedgerPosting, error) {
	postings := ledger.Build(lines, payments)

	if err := ledger.ValidateBalance(postings, expectedTotal); err != nil {
		var imbalance *ledger.ImbalanceError
		if errors.As(err, &imbalance) {
			log.Printf("ledger imbalance for company %s:\n%s", companyID, imbalance.Dump())
		}
		return nil, err
	}

	rows := make([]model.LedgerPosting, 0, len(postings))
	for _, p := range postings {
		rows = append(rows, model.LedgerPosting{
			CompanyID: companyID,
			AccountID: p.AccountID,
			Kind:      p.Kind,
			Debit:     p.Debit,
			Credit:    p.Credit,
			Memo:      p.Memo,
		})
	}
	return rows, nil
}
