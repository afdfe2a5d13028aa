package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"posfinance/internal/costing"
	"posfinance/internal/model"
	"posfinance/internal/repository"
	ws "posfinance/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RecordPurchaseRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	Qty         string `json:"qty" binding:"required"`
	UnitCost    string `json:"unit_cost" binding:"required"`
	FreightCost string `json:"freight_cost"`
	DutyCost    string `json:"duty_cost"`
	OtherCost   string `json:"other_cost"`
	BatchLabel  string `json:"batch_label"`
	SupplierRef string `json:"supplier_ref"`
	ReceivedAt  string `json:"received_at"` // RFC3339, defaults to now
	ExpiresAt   string `json:"expires_at"`  // RFC3339, optional
}

type ConsumeRequest struct {
	ItemID    string `json:"item_id" binding:"required"`
	Qty       string `json:"qty" binding:"required"`
	Method    string `json:"method" binding:"required,oneof=FIFO LIFO"`
	SourceRef string `json:"source_ref"`
}

type ConsumptionResponse struct {
	BatchID  string `json:"batch_id"`
	Qty      string `json:"qty"`
	UnitCost string `json:"unit_cost"`
}

type BatchResponse struct {
	ID           string `json:"id"`
	ItemID       string `json:"item_id"`
	BatchLabel   string `json:"batch_label"`
	UnitCost     string `json:"unit_cost"`
	LandedCost   string `json:"landed_cost"` // effective unit cost incl. freight/duty/other
	OriginalQty  string `json:"original_qty"`
	RemainingQty string `json:"remaining_qty"`
	ReceivedAt   string `json:"received_at"`
	Depleted     bool   `json:"depleted"`
}

type SuggestPriceRequest struct {
	TierID      string `json:"tier_id"`      // optional tier override
	CostMethod  string `json:"cost_method"`  // optional method override
	Percentile  string `json:"percentile"`   // optional, with PERCENTILE method
	MarginType  string `json:"margin_type"`  // optional margin override
	MarginValue string `json:"margin_value"` // optional margin override
}

type SuggestedPriceResponse struct {
	ItemID       string `json:"item_id"`
	CostBasis    string `json:"cost_basis"`
	CostMethod   string `json:"cost_method"`
	TierDiscount string `json:"tier_discount"`
	BeforeRound  string `json:"before_round"`
	Price        string `json:"price"`
}

type ValidatePriceRequest struct {
	ProposedPrice string `json:"proposed_price" binding:"required"`
	TierID        string `json:"tier_id"`
}

// --- Interface ---

// CostingService owns batches and the pricing state derived from them.
type CostingService interface {
	RecordPurchase(ctx context.Context, companyID uuid.UUID, userID string, req RecordPurchaseRequest) (BatchResponse, error)
	Consume(ctx context.Context, companyID uuid.UUID, userID string, req ConsumeRequest) ([]ConsumptionResponse, error)
	// ConsumeInTx runs inside an ambient transaction (via the context DB
	// handoff) so checkout can consume stock atomically with the rest of
	// the sale. Returns the allocations and the total cost consumed.
	ConsumeInTx(ctx context.Context, companyID, itemID uuid.UUID, qty decimal.Decimal, method, sourceType, sourceRef string) ([]costing.Allocation, decimal.Decimal, error)
	ListBatches(ctx context.Context, companyID, itemID uuid.UUID) ([]BatchResponse, error)
	ListConsumptions(ctx context.Context, companyID, itemID uuid.UUID, page, limit int) ([]model.BatchConsumption, int64, error)
	// SuggestSellingPrice returns nil when no cost basis is derivable
	// (no active batches).
	SuggestSellingPrice(ctx context.Context, companyID, itemID uuid.UUID, req SuggestPriceRequest) (*SuggestedPriceResponse, error)
	ValidatePrice(ctx context.Context, companyID, itemID uuid.UUID, req ValidatePriceRequest) (costing.PriceValidation, error)
}

type costingService struct {
	itemRepo   repository.ItemRepository
	batchRepo  repository.BatchRepository
	priceRepo  repository.PriceRepository
	policyRepo repository.PolicyRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        *ws.Hub
}

func NewCostingService(
	itemRepo repository.ItemRepository,
	batchRepo repository.BatchRepository,
	priceRepo repository.PriceRepository,
	policyRepo repository.PolicyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) CostingService {
	return &costingService{
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		priceRepo:  priceRepo,
		policyRepo: policyRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
	}
}

// --- Implementation ---

func (s *costingService) RecordPurchase(ctx context.Context, companyID uuid.UUID, userID string, req RecordPurchaseRequest) (BatchResponse, error) {
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid item_id: %w", err)
	}

	qty, err := decimal.NewFromString(req.Qty)
	if err != nil || !qty.IsPositive() {
		return BatchResponse{}, fmt.Errorf("qty must be a positive decimal")
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil || unitCost.IsNegative() {
		return BatchResponse{}, fmt.Errorf("unit_cost must be a non-negative decimal")
	}

	freight, err := parseOptionalDecimal(req.FreightCost)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid freight_cost: %w", err)
	}
	duty, err := parseOptionalDecimal(req.DutyCost)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid duty_cost: %w", err)
	}
	other, err := parseOptionalDecimal(req.OtherCost)
	if err != nil {
		return BatchResponse{}, fmt.Errorf("invalid other_cost: %w", err)
	}

	receivedAt := time.Now()
	if req.ReceivedAt != "" {
		receivedAt, err = time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			return BatchResponse{}, fmt.Errorf("invalid received_at (expected RFC3339): %w", err)
		}
	}
	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, parseErr := time.Parse(time.RFC3339, req.ExpiresAt)
		if parseErr != nil {
			return BatchResponse{}, fmt.Errorf("invalid expires_at (expected RFC3339): %w", parseErr)
		}
		expiresAt = &t
	}

	if _, err := s.itemRepo.FindByID(ctx, companyID, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return BatchResponse{}, errors.New("item not found")
		}
		return BatchResponse{}, fmt.Errorf("failed to find item: %w", err)
	}

	batch := model.Batch{
		CompanyID:    companyID,
		ItemID:       itemID,
		BatchLabel:   req.BatchLabel,
		SupplierRef:  req.SupplierRef,
		UnitCost:     unitCost,
		FreightCost:  freight,
		DutyCost:     duty,
		OtherCost:    other,
		OriginalQty:  qty,
		RemainingQty: qty,
		ReceivedAt:   receivedAt,
		ExpiresAt:    expiresAt,
		Active:       true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.batchRepo.Create(txCtx, &batch); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		if err := s.refreshPriceRecord(txCtx, companyID, itemID); err != nil {
			return err
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			CompanyID:  &companyID,
			UserID:     parseUserID(userID),
			Action:     model.ActionRecordPurchase,
			EntityID:   batch.ID.String(),
			EntityName: req.BatchLabel,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return BatchResponse{}, err
	}

	return toBatchResponse(batch), nil
}

func (s *costingService) Consume(ctx context.Context, companyID uuid.UUID, userID string, req ConsumeRequest) ([]ConsumptionResponse, error) {
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("invalid item_id: %w", err)
	}
	qty, err := decimal.NewFromString(req.Qty)
	if err != nil || !qty.IsPositive() {
		return nil, fmt.Errorf("qty must be a positive decimal")
	}

	var allocations []costing.Allocation
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var consumeErr error
		allocations, _, consumeErr = s.ConsumeInTx(txCtx, companyID, itemID, qty, req.Method, "ADJUSTMENT", req.SourceRef)
		if consumeErr != nil {
			return consumeErr
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			CompanyID:  &companyID,
			UserID:     parseUserID(userID),
			Action:     model.ActionConsumeStock,
			EntityID:   itemID.String(),
			EntityName: req.SourceRef,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := make([]ConsumptionResponse, 0, len(allocations))
	for _, a := range allocations {
		res = append(res, ConsumptionResponse{
			BatchID:  a.BatchID.String(),
			Qty:      a.Qty.String(),
			UnitCost: a.UnitCost.StringFixed(4),
		})
	}
	return res, nil
}

// ConsumeInTx plans, applies, and records a consumption under a FOR UPDATE
// lock over the item's batches, then refreshes the derived price record.
// The rows it plans from are the rows it mutates, so concurrent sales of
// the same item cannot each drain the same stock.
func (s *costingService) ConsumeInTx(ctx context.Context, companyID, itemID uuid.UUID, qty decimal.Decimal, method, sourceType, sourceRef string) ([]costing.Allocation, decimal.Decimal, error) {
	batches, err := s.batchRepo.ListByItemForUpdate(ctx, companyID, itemID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to lock batches: %w", err)
	}

	allocations, err := costing.PlanConsumption(itemID, batches, qty, method)
	if err != nil {
		return nil, decimal.Zero, err
	}

	byID := make(map[uuid.UUID]*model.Batch, len(batches))
	for i := range batches {
		byID[batches[i].ID] = &batches[i]
	}

	var costTotal decimal.Decimal
	for _, alloc := range allocations {
		batch := byID[alloc.BatchID]
		if err := costing.Apply(batch, alloc); err != nil {
			return nil, decimal.Zero, err
		}
		if err := s.batchRepo.Update(ctx, batch); err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to update batch: %w", err)
		}

		consumption := &model.BatchConsumption{
			CompanyID:  companyID,
			BatchID:    alloc.BatchID,
			ItemID:     itemID,
			Qty:        alloc.Qty,
			UnitCost:   alloc.UnitCost,
			SourceType: sourceType,
			SourceRef:  sourceRef,
		}
		if err := s.batchRepo.CreateConsumption(ctx, consumption); err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to record consumption: %w", err)
		}

		costTotal = costTotal.Add(alloc.Qty.Mul(alloc.UnitCost))

		if batch.Depleted {
			s.broadcast("batch_depleted", map[string]interface{}{
				"item_id":  itemID.String(),
				"batch_id": batch.ID.String(),
			})
		}
	}

	if err := s.refreshPriceRecord(ctx, companyID, itemID); err != nil {
		return nil, decimal.Zero, err
	}

	return allocations, costTotal, nil
}

func (s *costingService) ListBatches(ctx context.Context, companyID, itemID uuid.UUID) ([]BatchResponse, error) {
	batches, err := s.batchRepo.ListByItem(ctx, companyID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batches: %w", err)
	}

	res := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		res = append(res, toBatchResponse(b))
	}
	return res, nil
}

func (s *costingService) ListConsumptions(ctx context.Context, companyID, itemID uuid.UUID, page, limit int) ([]model.BatchConsumption, int64, error) {
	return s.batchRepo.ListConsumptions(ctx, companyID, itemID, page, limit)
}

func (s *costingService) SuggestSellingPrice(ctx context.Context, companyID, itemID uuid.UUID, req SuggestPriceRequest) (*SuggestedPriceResponse, error) {
	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	method := policy.CostMethod
	if req.CostMethod != "" {
		method = req.CostMethod
	}
	percentile := policy.Percentile
	if req.Percentile != "" {
		percentile, err = decimal.NewFromString(req.Percentile)
		if err != nil {
			return nil, fmt.Errorf("invalid percentile: %w", err)
		}
	}

	margin := costing.MarginPolicy{Type: policy.MarginType, Value: policy.MarginValue}
	if req.MarginType != "" {
		margin.Type = req.MarginType
	}
	if req.MarginValue != "" {
		margin.Value, err = decimal.NewFromString(req.MarginValue)
		if err != nil {
			return nil, fmt.Errorf("invalid margin_value: %w", err)
		}
	}

	// Per-item margin override from the price record, when configured.
	record, err := s.priceRepo.FindByItem(ctx, companyID, itemID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load price record: %w", err)
	}
	if req.MarginType == "" && record.MarginType != "" {
		margin.Type = record.MarginType
		margin.Value = record.MarginValue
	}

	tierDiscount := decimal.Zero
	if req.TierID != "" {
		tierID, parseErr := uuid.Parse(req.TierID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid tier_id: %w", parseErr)
		}
		tier, tierErr := s.priceRepo.FindTier(ctx, companyID, tierID)
		if tierErr != nil {
			return nil, fmt.Errorf("price tier not found: %w", tierErr)
		}
		tierDiscount = tier.DiscountPct
	}

	batches, err := s.batchRepo.ListByItem(ctx, companyID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batches: %w", err)
	}

	basis, err := costing.CostBasis(batches, method, percentile)
	if err != nil {
		if errors.Is(err, costing.ErrNoActiveBatches) {
			return nil, nil // no suggestion available
		}
		return nil, err
	}

	rounding := costing.RoundingPolicy{
		Enabled:   policy.RoundPrices,
		Method:    policy.RoundingMethod,
		Precision: policy.RoundingPrecision,
		Increment: policy.RoundingIncrement,
	}

	suggested, err := costing.SuggestPrice(basis, margin, tierDiscount, method, rounding)
	if err != nil {
		return nil, err
	}

	return &SuggestedPriceResponse{
		ItemID:       itemID.String(),
		CostBasis:    suggested.CostBasis.StringFixed(4),
		CostMethod:   method,
		TierDiscount: tierDiscount.StringFixed(2),
		BeforeRound:  suggested.BeforeRound.StringFixed(4),
		Price:        suggested.Price.StringFixed(4),
	}, nil
}

func (s *costingService) ValidatePrice(ctx context.Context, companyID, itemID uuid.UUID, req ValidatePriceRequest) (costing.PriceValidation, error) {
	proposed, err := decimal.NewFromString(req.ProposedPrice)
	if err != nil {
		return costing.PriceValidation{}, fmt.Errorf("invalid proposed_price: %w", err)
	}

	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return costing.PriceValidation{}, fmt.Errorf("failed to load policy: %w", err)
	}

	var tierID *uuid.UUID
	if req.TierID != "" {
		parsed, parseErr := uuid.Parse(req.TierID)
		if parseErr != nil {
			return costing.PriceValidation{}, fmt.Errorf("invalid tier_id: %w", parseErr)
		}
		tierID = &parsed
	}

	record, err := s.priceRepo.FindByItem(ctx, companyID, itemID, tierID)
	if err != nil {
		return costing.PriceValidation{}, fmt.Errorf("failed to load price record: %w", err)
	}

	batches, err := s.batchRepo.ListByItem(ctx, companyID, itemID)
	if err != nil {
		return costing.PriceValidation{}, fmt.Errorf("failed to fetch batches: %w", err)
	}

	basis, err := costing.CostBasis(batches, policy.CostMethod, policy.Percentile)
	if err != nil {
		if errors.Is(err, costing.ErrNoActiveBatches) {
			basis = record.CurrentCost // fall back to the last derived cost
		} else {
			return costing.PriceValidation{}, err
		}
	}

	return costing.ValidatePrice(proposed, record.FloorPrice, basis, policy.AllowBelowCost, policy.BelowCostRequiresApproval), nil
}

// refreshPriceRecord recomputes the derived costing summary for an item
// inside the current transaction, appending a history entry when the
// current cost moved.
func (s *costingService) refreshPriceRecord(ctx context.Context, companyID, itemID uuid.UUID) error {
	batches, err := s.batchRepo.ListByItem(ctx, companyID, itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch batches: %w", err)
	}

	record, err := s.priceRepo.FindByItem(ctx, companyID, itemID, nil)
	if err != nil {
		return fmt.Errorf("failed to load price record: %w", err)
	}

	summary := costing.Summarize(batches)
	previous := record.CurrentCost
	record.AverageCost = summary.AverageCost
	record.LastCost = summary.LastCost
	record.MinCost = summary.MinCost
	record.MaxCost = summary.MaxCost
	record.CurrentCost = summary.AverageCost

	if !previous.Equal(record.CurrentCost) {
		record.PriceHistory = appendPriceHistory(record.PriceHistory, previous, record.CurrentCost)
	}

	if err := s.priceRepo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save price record: %w", err)
	}
	return nil
}

// --- Helpers ---

type priceHistoryEntry struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

func appendPriceHistory(history string, from, to decimal.Decimal) string {
	var entries []priceHistoryEntry
	_ = json.Unmarshal([]byte(history), &entries)
	entries = append(entries, priceHistoryEntry{
		From:      from.StringFixed(4),
		To:        to.StringFixed(4),
		ChangedAt: time.Now().UTC(),
	})
	out, err := json.Marshal(entries)
	if err != nil {
		return history
	}
	return string(out)
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return d, nil
}

func parseUserID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

func toBatchResponse(b model.Batch) BatchResponse {
	return BatchResponse{
		ID:           b.ID.String(),
		ItemID:       b.ItemID.String(),
		BatchLabel:   b.BatchLabel,
		UnitCost:     b.UnitCost.StringFixed(4),
		LandedCost:   b.EffectiveUnitCost().StringFixed(4),
		OriginalQty:  b.OriginalQty.String(),
		RemainingQty: b.RemainingQty.String(),
		ReceivedAt:   b.ReceivedAt.Format(time.RFC3339),
		Depleted:     b.Depleted,
	}
}

func (s *costingService) broadcast(event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
