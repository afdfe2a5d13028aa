package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"posfinance/internal/ledger"
	"posfinance/internal/model"
	"posfinance/internal/repository"
	"posfinance/internal/taxcalc"
	ws "posfinance/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CheckoutLineRequest struct {
	ItemID        string `json:"item_id" binding:"required"`
	Qty           string `json:"qty" binding:"required"`
	UnitPrice     string `json:"unit_price" binding:"required"`
	TaxCategoryID string `json:"tax_category_id" binding:"required"`
	Description   string `json:"description"`
}

type CheckoutPaymentRequest struct {
	TenderType string `json:"tender_type" binding:"required,oneof=CASH CARD MOBILE CREDIT"`
	Amount     string `json:"amount" binding:"required"`
	Reference  string `json:"reference"`
}

type CheckoutRequest struct {
	SessionID string                   `json:"session_id" binding:"required"`
	Lines     []CheckoutLineRequest    `json:"lines" binding:"required,min=1,dive"`
	Payments  []CheckoutPaymentRequest `json:"payments" binding:"required,min=1,dive"`
	Note      string                   `json:"note"`
}

// --- Interface ---

// CheckoutService is the thin orchestrator over the four engines: it
// consumes stock, taxes each line, builds and validates the ledger
// distribution, persists the invoice, and moves the cash drawer, all in
// one transaction. Any failure leaves nothing behind.
type CheckoutService interface {
	Checkout(ctx context.Context, companyID uuid.UUID, cashierID string, req CheckoutRequest) (*model.Invoice, error)
	GetInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*model.Invoice, error)
	ListInvoices(ctx context.Context, companyID uuid.UUID, filter repository.InvoiceListFilter) ([]model.Invoice, int64, error)
}

type checkoutService struct {
	costingSvc  CostingService
	taxSvc      TaxService
	ledgerSvc   LedgerService
	sessionSvc  CashSessionService
	invoiceRepo repository.InvoiceRepository
	taxRepo     repository.TaxRateRepository
	policyRepo  repository.PolicyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *ws.Hub
}

func NewCheckoutService(
	costingSvc CostingService,
	taxSvc TaxService,
	ledgerSvc LedgerService,
	sessionSvc CashSessionService,
	invoiceRepo repository.InvoiceRepository,
	taxRepo repository.TaxRateRepository,
	policyRepo repository.PolicyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) CheckoutService {
	return &checkoutService{
		costingSvc:  costingSvc,
		taxSvc:      taxSvc,
		ledgerSvc:   ledgerSvc,
		sessionSvc:  sessionSvc,
		invoiceRepo: invoiceRepo,
		taxRepo:     taxRepo,
		policyRepo:  policyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

type checkoutLine struct {
	req      CheckoutLineRequest
	itemID   uuid.UUID
	catID    uuid.UUID
	qty      decimal.Decimal
	price    decimal.Decimal
	tax      taxcalc.LineResult
	cost     decimal.Decimal
	unitCost decimal.Decimal
}

func (s *checkoutService) Checkout(ctx context.Context, companyID uuid.UUID, cashierID string, req CheckoutRequest) (*model.Invoice, error) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session_id: %w", err)
	}

	lines, err := parseCheckoutLines(req.Lines)
	if err != nil {
		return nil, err
	}
	payments, paymentTotal, err := parseCheckoutPayments(req.Payments)
	if err != nil {
		return nil, err
	}

	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		now := time.Now()

		accounts, resolveErr := s.ledgerSvc.ResolveSaleAccounts(txCtx, companyID)
		if resolveErr != nil {
			return resolveErr
		}

		// 1. Consume stock and resolve each line's cost basis.
		for i := range lines {
			allocations, costTotal, consumeErr := s.costingSvc.ConsumeInTx(
				txCtx, companyID, lines[i].itemID, lines[i].qty, policy.ConsumptionMethod, "SALE", req.SessionID)
			if consumeErr != nil {
				return fmt.Errorf("line %d: %w", i, consumeErr)
			}
			lines[i].cost = costTotal
			if len(allocations) > 0 && !lines[i].qty.IsZero() {
				lines[i].unitCost = costTotal.Div(lines[i].qty)
			}
		}

		// 2. Tax each line.
		rounding := taxcalc.Rounding{Method: policy.TaxRoundingMethod, Precision: policy.TaxRoundingPrecision}
		usedRateIDs := make(map[uuid.UUID]struct{})
		for i := range lines {
			specs, rateErr := s.taxSvc.ResolveRates(txCtx, companyID, lines[i].catID, now)
			if rateErr != nil {
				return fmt.Errorf("line %d: %w", i, rateErr)
			}
			amount := lines[i].price.Mul(lines[i].qty)
			result, calcErr := taxcalc.CalculateLine(amount, lines[i].qty, specs, policy.PricesIncludeTax, rounding)
			if calcErr != nil {
				return fmt.Errorf("line %d: %w", i, calcErr)
			}
			lines[i].tax = result
			for _, comp := range result.Components {
				usedRateIDs[comp.RateID] = struct{}{}
			}
		}

		// 3. Totals; payments must settle the grand total before we even
		// try to build postings.
		var subtotal, taxTotal, costTotal, grandTotal decimal.Decimal
		for _, l := range lines {
			subtotal = subtotal.Add(l.tax.Base)
			taxTotal = taxTotal.Add(l.tax.TotalTax)
			costTotal = costTotal.Add(l.cost)
			grandTotal = grandTotal.Add(l.tax.Gross)
		}
		if settleErr := checkSettlement(paymentTotal, grandTotal); settleErr != nil {
			return settleErr
		}

		// 4. Build the double-entry distribution.
		ledgerLines := make([]ledger.Line, 0, len(lines))
		for _, l := range lines {
			components := make([]ledger.TaxComponent, 0, len(l.tax.Components))
			for _, comp := range l.tax.Components {
				components = append(components, ledger.TaxComponent{
					AccountID: accounts.TaxLiability.ID,
					Name:      comp.Name,
					Amount:    comp.Amount,
				})
			}
			ledgerLines = append(ledgerLines, ledger.Line{
				Description:        l.req.Description,
				IncomeAccountID:    accounts.Income.ID,
				CogsAccountID:      accounts.COGS.ID,
				InventoryAccountID: accounts.Inventory.ID,
				TaxableBase:        l.tax.Base,
				CostBasis:          l.cost,
				TaxComponents:      components,
			})
		}

		ledgerPayments := make([]ledger.Payment, 0, len(payments))
		invoicePayments := make([]model.InvoicePayment, 0, len(payments))
		for _, p := range payments {
			tenderAccount, tenderErr := s.ledgerSvc.ResolveTenderAccount(txCtx, companyID, p.tenderType)
			if tenderErr != nil {
				return tenderErr
			}
			ledgerPayments = append(ledgerPayments, ledger.Payment{
				TenderAccountID: tenderAccount.ID,
				Mode:            p.tenderType,
				Amount:          p.amount,
			})
			invoicePayments = append(invoicePayments, model.InvoicePayment{
				TenderType: p.tenderType,
				AccountID:  tenderAccount.ID,
				Amount:     p.amount,
				Reference:  p.reference,
			})
		}

		postings, buildErr := s.ledgerSvc.BuildPostings(companyID, ledgerLines, ledgerPayments, grandTotal)
		if buildErr != nil {
			return buildErr
		}

		// 5. Lock every tax rate the sale referenced.
		if len(usedRateIDs) > 0 {
			ids := make([]uuid.UUID, 0, len(usedRateIDs))
			for id := range usedRateIDs {
				ids = append(ids, id)
			}
			if lockErr := s.taxRepo.MarkLocked(txCtx, ids); lockErr != nil {
				return fmt.Errorf("failed to lock tax rates: %w", lockErr)
			}
		}

		// 6. Persist the invoice with everything attached.
		invoiceNo, numErr := s.nextInvoiceNo(txCtx, now)
		if numErr != nil {
			return numErr
		}

		invoiceLines := make([]model.InvoiceLine, 0, len(lines))
		taxLines := make([]model.InvoiceTaxLine, 0)
		for _, l := range lines {
			invoiceLines = append(invoiceLines, model.InvoiceLine{
				ItemID:      l.itemID,
				Qty:         l.qty,
				UnitPrice:   l.price,
				TaxableBase: l.tax.Base,
				TaxAmount:   l.tax.TotalTax,
				CostBasis:   l.unitCost,
				CostTotal:   l.cost,
			})
			for _, comp := range l.tax.Components {
				taxLines = append(taxLines, model.InvoiceTaxLine{
					TaxRateID:   comp.RateID,
					Name:        comp.Name,
					Rate:        comp.Rate,
					TaxableBase: comp.TaxableBase,
					Amount:      comp.Amount,
				})
			}
		}

		for i := range postings {
			postings[i].SourceType = "INVOICE"
			postings[i].SourceRef = invoiceNo
		}

		invoice = &model.Invoice{
			CompanyID:        companyID,
			InvoiceNo:        invoiceNo,
			SessionID:        &sessionID,
			CashierID:        parseUserID(cashierID),
			PricesIncludeTax: policy.PricesIncludeTax,
			Subtotal:         subtotal,
			TaxTotal:         taxTotal,
			CostTotal:        costTotal,
			GrandTotal:       grandTotal,
			Status:           model.InvoicePosted,
			Note:             req.Note,
			Lines:            invoiceLines,
			TaxLines:         taxLines,
			Payments:         invoicePayments,
			Postings:         postings,
		}
		if createErr := s.invoiceRepo.Create(txCtx, invoice); createErr != nil {
			return fmt.Errorf("failed to persist invoice: %w", createErr)
		}

		// 7. Move the drawer for every tender on the locked session.
		for _, p := range payments {
			if sessErr := s.sessionSvc.RecordSaleInTx(txCtx, companyID, sessionID, p.tenderType, p.amount, invoiceNo); sessErr != nil {
				return sessErr
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"invoice_no":  invoiceNo,
			"grand_total": grandTotal.StringFixed(4),
			"lines":       len(lines),
		})
		audit := &model.AuditLog{
			CompanyID:  &companyID,
			UserID:     parseUserID(cashierID),
			Action:     model.ActionPostInvoice,
			EntityID:   invoiceNo,
			EntityName: invoiceNo,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("invoice_posted", map[string]interface{}{
		"invoice_id":  invoice.ID.String(),
		"invoice_no":  invoice.InvoiceNo,
		"grand_total": invoice.GrandTotal.StringFixed(2),
	})
	return invoice, nil
}

func (s *checkoutService) GetInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, errors.New("invoice not found")
	}
	return invoice, nil
}

func (s *checkoutService) ListInvoices(ctx context.Context, companyID uuid.UUID, filter repository.InvoiceListFilter) ([]model.Invoice, int64, error) {
	return s.invoiceRepo.List(ctx, companyID, filter)
}

// nextInvoiceNo allocates INV-YYYYMMDD-NNNNN, daily sequence. Runs inside
// the checkout transaction, so a clash on the unique index rolls the whole
// sale back rather than posting with a duplicate number.
func (s *checkoutService) nextInvoiceNo(ctx context.Context, now time.Time) (string, error) {
	prefix := "INV-" + now.Format("20060102")
	count, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	return fmt.Sprintf("%s-%05d", prefix, count+1), nil
}

// --- Parsing ---

type checkoutPayment struct {
	tenderType string
	amount     decimal.Decimal
	reference  string
}

// checkSettlement requires payments to cover the invoice total exactly.
// The posting builder balances tender debits against the credit side to
// the cent, so any gap accepted here would resurface as a ledger
// imbalance instead of a payment error.
func checkSettlement(paymentTotal, grandTotal decimal.Decimal) error {
	if !paymentTotal.Equal(grandTotal) {
		return fmt.Errorf("payments total %s does not settle invoice total %s", paymentTotal, grandTotal)
	}
	return nil
}

func parseCheckoutLines(reqs []CheckoutLineRequest) ([]checkoutLine, error) {
	lines := make([]checkoutLine, 0, len(reqs))
	for i, r := range reqs {
		itemID, err := uuid.Parse(r.ItemID)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid item_id: %w", i, err)
		}
		catID, err := uuid.Parse(r.TaxCategoryID)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid tax_category_id: %w", i, err)
		}
		qty, err := decimal.NewFromString(r.Qty)
		if err != nil || !qty.IsPositive() {
			return nil, fmt.Errorf("line %d: qty must be a positive decimal", i)
		}
		price, err := decimal.NewFromString(r.UnitPrice)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("line %d: unit_price must be a non-negative decimal", i)
		}
		lines = append(lines, checkoutLine{req: r, itemID: itemID, catID: catID, qty: qty, price: price})
	}
	return lines, nil
}

func parseCheckoutPayments(reqs []CheckoutPaymentRequest) ([]checkoutPayment, decimal.Decimal, error) {
	payments := make([]checkoutPayment, 0, len(reqs))
	total := decimal.Zero
	for i, r := range reqs {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil || !amount.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("payment %d: amount must be a positive decimal", i)
		}
		payments = append(payments, checkoutPayment{tenderType: r.TenderType, amount: amount, reference: r.Reference})
		total = total.Add(amount)
	}
	return payments, total, nil
}

func (s *checkoutService) broadcast(event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
