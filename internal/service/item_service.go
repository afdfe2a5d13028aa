package service

import (
	"context"
	"errors"
	"fmt"

	"posfinance/internal/model"
	"posfinance/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateItemRequest struct {
	SKU  string `json:"sku" binding:"required"`
	Name string `json:"name" binding:"required"`
	Unit string `json:"unit"`
}

type UpdateItemRequest struct {
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Active *bool  `json:"active"`
}

type PriceTierRequest struct {
	Name        string `json:"name" binding:"required"`
	DiscountPct string `json:"discount_pct" binding:"required"`
}

type ItemService interface {
	Create(ctx context.Context, companyID uuid.UUID, req CreateItemRequest) (*model.Item, error)
	Update(ctx context.Context, companyID, itemID uuid.UUID, req UpdateItemRequest) (*model.Item, error)
	Get(ctx context.Context, companyID, itemID uuid.UUID) (*model.Item, error)
	List(ctx context.Context, companyID uuid.UUID, page, limit int, search string) ([]model.Item, int64, error)

	CreateTier(ctx context.Context, companyID uuid.UUID, req PriceTierRequest) (*model.PriceTier, error)
	ListTiers(ctx context.Context, companyID uuid.UUID) ([]model.PriceTier, error)
}

type itemService struct {
	itemRepo  repository.ItemRepository
	priceRepo repository.PriceRepository
}

func NewItemService(itemRepo repository.ItemRepository, priceRepo repository.PriceRepository) ItemService {
	return &itemService{itemRepo: itemRepo, priceRepo: priceRepo}
}

func (s *itemService) Create(ctx context.Context, companyID uuid.UUID, req CreateItemRequest) (*model.Item, error) {
	if existing, err := s.itemRepo.FindBySKU(ctx, companyID, req.SKU); err == nil && existing != nil {
		return nil, fmt.Errorf("sku %q already exists", req.SKU)
	}

	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}

	item := &model.Item{
		CompanyID: companyID,
		SKU:       req.SKU,
		Name:      req.Name,
		Unit:      unit,
		Active:    true,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (s *itemService) Update(ctx context.Context, companyID, itemID uuid.UUID, req UpdateItemRequest) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, companyID, itemID)
	if err != nil {
		return nil, errors.New("item not found")
	}

	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Unit != "" {
		item.Unit = req.Unit
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

func (s *itemService) Get(ctx context.Context, companyID, itemID uuid.UUID) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, companyID, itemID)
	if err != nil {
		return nil, errors.New("item not found")
	}
	return item, nil
}

func (s *itemService) List(ctx context.Context, companyID uuid.UUID, page, limit int, search string) ([]model.Item, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	return s.itemRepo.List(ctx, companyID, page, limit, search)
}

func (s *itemService) CreateTier(ctx context.Context, companyID uuid.UUID, req PriceTierRequest) (*model.PriceTier, error) {
	discount, err := decimal.NewFromString(req.DiscountPct)
	if err != nil || discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("discount_pct must be between 0 and 100")
	}

	tier := &model.PriceTier{
		CompanyID:   companyID,
		Name:        req.Name,
		DiscountPct: discount,
	}
	if err := s.priceRepo.CreateTier(ctx, tier); err != nil {
		return nil, fmt.Errorf("failed to create price tier: %w", err)
	}
	return tier, nil
}

func (s *itemService) ListTiers(ctx context.Context, companyID uuid.UUID) ([]model.PriceTier, error) {
	return s.priceRepo.ListTiers(ctx, companyID)
}
