package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"posfinance/internal/model"
	"posfinance/internal/repository"
	ws "posfinance/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionStateError reports an operation attempted against a session in the
// wrong lifecycle state.
type SessionStateError struct {
	Current   string
	Attempted string
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("session is %s: cannot %s", e.Current, e.Attempted)
}

// --- DTOs ---

type OpenSessionRequest struct {
	OpeningBalance string `json:"opening_balance" binding:"required"`
	Note           string `json:"note"`
}

type CashTransactionRequest struct {
	Type       string `json:"type" binding:"required,oneof=SALE REFUND PAYOUT PAY_IN"`
	TenderType string `json:"tender_type"` // defaults to CASH
	Amount     string `json:"amount" binding:"required"`
	SourceRef  string `json:"source_ref"`
	Note       string `json:"note"`
}

type CloseSessionRequest struct {
	CountedBalance string `json:"counted_balance" binding:"required"`
	Note           string `json:"note"`
}

type VerifyCloseRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type ResolveDiscrepancyRequest struct {
	ResolutionType  string `json:"resolution_type" binding:"required,oneof=REPAYMENT PAYROLL_DEDUCTION WAIVED ERROR_FOUND FRAUD_CONFIRMED"`
	DeductionAmount string `json:"deduction_amount"` // required for PAYROLL_DEDUCTION
	Note            string `json:"note"`
}

type SessionCloseResult struct {
	Session     *model.CashSession     `json:"session"`
	Discrepancy *model.CashDiscrepancy `json:"discrepancy,omitempty"`
}

// --- Interface ---

type CashSessionService interface {
	Open(ctx context.Context, companyID, cashierID uuid.UUID, req OpenSessionRequest) (*model.CashSession, error)
	Get(ctx context.Context, companyID, sessionID uuid.UUID) (*model.CashSession, error)
	List(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashSession, int64, error)
	ListTransactions(ctx context.Context, companyID, sessionID uuid.UUID) ([]model.CashTransaction, error)

	RecordTransaction(ctx context.Context, companyID, sessionID uuid.UUID, userID string, req CashTransactionRequest) (*model.CashTransaction, error)
	// RecordSaleInTx applies a sale tender to a locked session inside an
	// ambient transaction; checkout uses it so the drawer moves atomically
	// with the invoice.
	RecordSaleInTx(ctx context.Context, companyID, sessionID uuid.UUID, tenderType string, amount decimal.Decimal, sourceRef string) error

	Close(ctx context.Context, companyID, sessionID uuid.UUID, userID string, req CloseSessionRequest) (*SessionCloseResult, error)
	VerifyClose(ctx context.Context, companyID, sessionID uuid.UUID, verifierID string, req VerifyCloseRequest) (*model.CashSession, error)

	AcknowledgeDiscrepancy(ctx context.Context, companyID, discrepancyID uuid.UUID, userID string) (*model.CashDiscrepancy, error)
	ResolveDiscrepancy(ctx context.Context, companyID, discrepancyID uuid.UUID, resolverID string, req ResolveDiscrepancyRequest) (*model.CashDiscrepancy, error)
	ListDiscrepancies(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashDiscrepancy, int64, error)
}

type cashSessionService struct {
	sessionRepo repository.CashSessionRepository
	policyRepo  repository.PolicyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *ws.Hub
}

func NewCashSessionService(
	sessionRepo repository.CashSessionRepository,
	policyRepo repository.PolicyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) CashSessionService {
	return &cashSessionService{
		sessionRepo: sessionRepo,
		policyRepo:  policyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

// --- Lifecycle ---

func (s *cashSessionService) Open(ctx context.Context, companyID, cashierID uuid.UUID, req OpenSessionRequest) (*model.CashSession, error) {
	opening, err := decimal.NewFromString(req.OpeningBalance)
	if err != nil || opening.IsNegative() {
		return nil, errors.New("opening_balance must be a non-negative decimal")
	}

	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	if opening.LessThan(policy.MinFloat) {
		return nil, fmt.Errorf("opening balance %s is below the minimum float %s", opening, policy.MinFloat)
	}
	if policy.MaxFloat.IsPositive() && opening.GreaterThan(policy.MaxFloat) {
		return nil, fmt.Errorf("opening balance %s exceeds the maximum float %s", opening, policy.MaxFloat)
	}

	if !policy.AllowMultipleSessions {
		open, findErr := s.sessionRepo.FindOpenByCashier(ctx, companyID, cashierID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to check open sessions: %w", findErr)
		}
		if len(open) > 0 {
			return nil, fmt.Errorf("cashier already has an open session (%s)", open[0].ID)
		}
	}

	session := &model.CashSession{
		CompanyID:      companyID,
		CashierID:      cashierID,
		Status:         model.SessionOpen,
		OpeningBalance: opening,
		RunningBalance: opening,
		OpenedAt:       time.Now(),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.sessionRepo.Create(txCtx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		// The opening float is itself the first drawer movement.
		openingTx := &model.CashTransaction{
			CompanyID:      companyID,
			SessionID:      session.ID,
			Type:           model.CashTxOpening,
			TenderType:     model.TenderCash,
			Direction:      model.CashIn,
			Amount:         opening,
			RunningBalance: opening,
			Note:           req.Note,
		}
		if err := s.sessionRepo.AppendTransaction(txCtx, openingTx); err != nil {
			return fmt.Errorf("failed to record opening float: %w", err)
		}

		return s.auditSession(txCtx, companyID, cashierID.String(), model.ActionOpenSession, session.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("session_opened", map[string]interface{}{
		"session_id": session.ID.String(),
		"cashier_id": cashierID.String(),
	})
	return session, nil
}

func (s *cashSessionService) Get(ctx context.Context, companyID, sessionID uuid.UUID) (*model.CashSession, error) {
	return s.sessionRepo.FindByID(ctx, companyID, sessionID)
}

func (s *cashSessionService) List(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashSession, int64, error) {
	return s.sessionRepo.List(ctx, companyID, status, page, limit)
}

func (s *cashSessionService) ListTransactions(ctx context.Context, companyID, sessionID uuid.UUID) ([]model.CashTransaction, error) {
	return s.sessionRepo.ListTransactions(ctx, companyID, sessionID)
}

// --- Transactions ---

func (s *cashSessionService) RecordTransaction(ctx context.Context, companyID, sessionID uuid.UUID, userID string, req CashTransactionRequest) (*model.CashTransaction, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, errors.New("amount must be a positive decimal")
	}
	tenderType := req.TenderType
	if tenderType == "" {
		tenderType = model.TenderCash
	}

	var recorded *model.CashTransaction
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		session, lockErr := s.sessionRepo.FindByIDForUpdate(txCtx, companyID, sessionID)
		if lockErr != nil {
			return errors.New("session not found")
		}
		if session.Status != model.SessionOpen {
			return &SessionStateError{Current: session.Status, Attempted: "record a transaction"}
		}

		tx, applyErr := applyCashTransaction(session, req.Type, tenderType, amount)
		if applyErr != nil {
			return applyErr
		}
		tx.SourceRef = req.SourceRef
		tx.Note = req.Note

		if err := s.sessionRepo.AppendTransaction(txCtx, tx); err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}
		if err := s.sessionRepo.Update(txCtx, session); err != nil {
			return fmt.Errorf("failed to update session totals: %w", err)
		}
		recorded = tx

		return s.auditSession(txCtx, companyID, userID, model.ActionRecordCashTx, session.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

func (s *cashSessionService) RecordSaleInTx(ctx context.Context, companyID, sessionID uuid.UUID, tenderType string, amount decimal.Decimal, sourceRef string) error {
	session, err := s.sessionRepo.FindByIDForUpdate(ctx, companyID, sessionID)
	if err != nil {
		return errors.New("session not found")
	}
	if session.Status != model.SessionOpen {
		return &SessionStateError{Current: session.Status, Attempted: "record a sale"}
	}

	tx, err := applyCashTransaction(session, model.CashTxSale, tenderType, amount)
	if err != nil {
		return err
	}
	tx.SourceType = "INVOICE"
	tx.SourceRef = sourceRef

	if err := s.sessionRepo.AppendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to append sale transaction: %w", err)
	}
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session totals: %w", err)
	}
	return nil
}

// applyCashTransaction mutates the session's running totals and returns the
// matching append-only transaction row. Only cash tenders move the drawer's
// running balance; card/mobile/credit sales are tracked in their own totals
// for the close report.
// voidDiscrepancy retires a discrepancy whose underlying cash count was
// discarded by a rejected close. A voided discrepancy is no longer
// pending, so it cannot be acknowledged or resolved.
func voidDiscrepancy(d *model.CashDiscrepancy) {
	d.Status = model.DiscrepancyVoided
	d.ResolutionNote = "close rejected, counted amounts discarded"
}

func applyCashTransaction(session *model.CashSession, txType, tenderType string, amount decimal.Decimal) (*model.CashTransaction, error) {
	direction := model.CashIn

	switch txType {
	case model.CashTxSale:
		switch tenderType {
		case model.TenderCash:
			session.CashSales = session.CashSales.Add(amount)
		case model.TenderCard:
			session.CardSales = session.CardSales.Add(amount)
		case model.TenderMobile:
			session.MobileSales = session.MobileSales.Add(amount)
		case model.TenderCredit:
			session.CreditSales = session.CreditSales.Add(amount)
		default:
			return nil, fmt.Errorf("unknown tender type %q", tenderType)
		}
	case model.CashTxRefund:
		if tenderType != model.TenderCash {
			return nil, errors.New("only cash refunds move the drawer")
		}
		session.Refunds = session.Refunds.Add(amount)
		direction = model.CashOut
	case model.CashTxPayout:
		if tenderType != model.TenderCash {
			return nil, errors.New("payouts are cash only")
		}
		session.Payouts = session.Payouts.Add(amount)
		direction = model.CashOut
	case model.CashTxPayIn:
		if tenderType != model.TenderCash {
			return nil, errors.New("pay-ins are cash only")
		}
		session.PayIns = session.PayIns.Add(amount)
	default:
		return nil, fmt.Errorf("unknown cash transaction type %q", txType)
	}

	if tenderType == model.TenderCash {
		if direction == model.CashIn {
			session.RunningBalance = session.RunningBalance.Add(amount)
		} else {
			session.RunningBalance = session.RunningBalance.Sub(amount)
			if session.RunningBalance.IsNegative() {
				return nil, fmt.Errorf("drawer cannot go negative: balance would be %s", session.RunningBalance)
			}
		}
	}

	return &model.CashTransaction{
		CompanyID:      session.CompanyID,
		SessionID:      session.ID,
		Type:           txType,
		TenderType:     tenderType,
		Direction:      direction,
		Amount:         amount,
		RunningBalance: session.RunningBalance,
	}, nil
}

// --- Close and verification ---

func (s *cashSessionService) Close(ctx context.Context, companyID, sessionID uuid.UUID, userID string, req CloseSessionRequest) (*SessionCloseResult, error) {
	counted, err := decimal.NewFromString(req.CountedBalance)
	if err != nil || counted.IsNegative() {
		return nil, errors.New("counted_balance must be a non-negative decimal")
	}

	policy, err := s.policyRepo.FindByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	result := &SessionCloseResult{}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		session, lockErr := s.sessionRepo.FindByIDForUpdate(txCtx, companyID, sessionID)
		if lockErr != nil {
			return errors.New("session not found")
		}
		if session.Status != model.SessionOpen {
			return &SessionStateError{Current: session.Status, Attempted: "close"}
		}

		expected := session.ExpectedCashAmount()
		diff := counted.Sub(expected)

		now := time.Now()
		session.ClosingBalance = &counted
		session.ExpectedCash = &expected
		session.DiscrepancyAmount = &diff
		session.ClosingNote = req.Note
		session.ClosedAt = &now

		// Strictly beyond tolerance counts as a discrepancy; exactly at
		// tolerance does not.
		if diff.Abs().GreaterThan(policy.CashTolerance) {
			session.HasDiscrepancy = true

			dType := model.DiscrepancyShort
			if diff.IsPositive() {
				dType = model.DiscrepancyOver
			}
			discrepancy := &model.CashDiscrepancy{
				CompanyID: companyID,
				SessionID: session.ID,
				CashierID: session.CashierID,
				Type:      dType,
				Amount:    diff.Abs(),
				Status:    model.DiscrepancyPending,
			}
			if err := s.sessionRepo.CreateDiscrepancy(txCtx, discrepancy); err != nil {
				return fmt.Errorf("failed to create discrepancy: %w", err)
			}
			result.Discrepancy = discrepancy
		}

		if policy.CloseRequiresVerification {
			session.Status = model.SessionClosing
		} else {
			session.Status = model.SessionClosed
		}

		if err := s.sessionRepo.Update(txCtx, session); err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
		result.Session = session

		return s.auditSession(txCtx, companyID, userID, model.ActionCloseSession, session.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("session_closed", map[string]interface{}{
		"session_id": sessionID.String(),
		"status":     result.Session.Status,
	})
	if result.Discrepancy != nil {
		s.broadcast("discrepancy_flagged", map[string]interface{}{
			"session_id":     sessionID.String(),
			"discrepancy_id": result.Discrepancy.ID.String(),
			"type":           result.Discrepancy.Type,
			"amount":         result.Discrepancy.Amount.StringFixed(2),
		})
	}
	return result, nil
}

func (s *cashSessionService) VerifyClose(ctx context.Context, companyID, sessionID uuid.UUID, verifierID string, req VerifyCloseRequest) (*model.CashSession, error) {
	var session *model.CashSession
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var lockErr error
		session, lockErr = s.sessionRepo.FindByIDForUpdate(txCtx, companyID, sessionID)
		if lockErr != nil {
			return errors.New("session not found")
		}
		if session.Status != model.SessionClosing {
			return &SessionStateError{Current: session.Status, Attempted: "verify close"}
		}

		now := time.Now()
		if req.Approve {
			session.Status = model.SessionClosed
			session.VerifiedBy = parseUserID(verifierID)
			session.VerifiedAt = &now
		} else {
			// Rejection reopens the drawer and clears the close snapshot,
			// including the discrepancy flagged from the discarded count.
			if session.HasDiscrepancy {
				discrepancy, findErr := s.sessionRepo.FindPendingDiscrepancyBySession(txCtx, companyID, sessionID)
				if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
					return fmt.Errorf("failed to load discrepancy: %w", findErr)
				}
				if discrepancy != nil {
					voidDiscrepancy(discrepancy)
					if updErr := s.sessionRepo.UpdateDiscrepancy(txCtx, discrepancy); updErr != nil {
						return fmt.Errorf("failed to void discrepancy: %w", updErr)
					}
				}
			}
			session.Status = model.SessionOpen
			session.ClosingBalance = nil
			session.ExpectedCash = nil
			session.DiscrepancyAmount = nil
			session.HasDiscrepancy = false
			session.ClosedAt = nil
			session.ClosingNote = req.Note
		}

		if err := s.sessionRepo.Update(txCtx, session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return s.auditSession(txCtx, companyID, verifierID, model.ActionVerifyClose, session.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// --- Discrepancies ---

func (s *cashSessionService) AcknowledgeDiscrepancy(ctx context.Context, companyID, discrepancyID uuid.UUID, userID string) (*model.CashDiscrepancy, error) {
	discrepancy, err := s.sessionRepo.FindDiscrepancyByID(ctx, companyID, discrepancyID)
	if err != nil {
		return nil, errors.New("discrepancy not found")
	}
	if discrepancy.Status != model.DiscrepancyPending {
		return nil, fmt.Errorf("discrepancy is %s, expected %s", discrepancy.Status, model.DiscrepancyPending)
	}

	now := time.Now()
	discrepancy.Status = model.DiscrepancyAcknowledged
	discrepancy.AcknowledgedBy = parseUserID(userID)
	discrepancy.AcknowledgedAt = &now

	if err := s.sessionRepo.UpdateDiscrepancy(ctx, discrepancy); err != nil {
		return nil, fmt.Errorf("failed to acknowledge discrepancy: %w", err)
	}
	return discrepancy, nil
}

func (s *cashSessionService) ResolveDiscrepancy(ctx context.Context, companyID, discrepancyID uuid.UUID, resolverID string, req ResolveDiscrepancyRequest) (*model.CashDiscrepancy, error) {
	var deduction *decimal.Decimal
	if req.ResolutionType == model.ResolutionPayrollDeduction {
		if req.DeductionAmount == "" {
			return nil, errors.New("deduction_amount is required for payroll deduction")
		}
		d, err := decimal.NewFromString(req.DeductionAmount)
		if err != nil || !d.IsPositive() {
			return nil, errors.New("deduction_amount must be a positive decimal")
		}
		deduction = &d
	}

	var discrepancy *model.CashDiscrepancy
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		discrepancy, findErr = s.sessionRepo.FindDiscrepancyByID(txCtx, companyID, discrepancyID)
		if findErr != nil {
			return errors.New("discrepancy not found")
		}
		if discrepancy.Status == model.DiscrepancyResolved {
			return errors.New("discrepancy is already resolved")
		}
		if discrepancy.Status == model.DiscrepancyVoided {
			return errors.New("discrepancy was voided by a rejected close")
		}
		if deduction != nil && deduction.GreaterThan(discrepancy.Amount) {
			return fmt.Errorf("deduction_amount %s exceeds discrepancy amount %s", deduction, discrepancy.Amount)
		}

		now := time.Now()
		discrepancy.Status = model.DiscrepancyResolved
		discrepancy.ResolutionType = &req.ResolutionType
		discrepancy.DeductionAmount = deduction
		discrepancy.ResolutionNote = req.Note
		discrepancy.ResolvedBy = parseUserID(resolverID)
		discrepancy.ResolvedAt = &now

		if err := s.sessionRepo.UpdateDiscrepancy(txCtx, discrepancy); err != nil {
			return fmt.Errorf("failed to resolve discrepancy: %w", err)
		}

		// Resolving the last open discrepancy reconciles the session.
		session, lockErr := s.sessionRepo.FindByIDForUpdate(txCtx, companyID, discrepancy.SessionID)
		if lockErr != nil {
			return fmt.Errorf("failed to load session: %w", lockErr)
		}
		if session.Status == model.SessionClosed {
			session.Status = model.SessionReconciled
			session.ReconciledAt = &now
			if err := s.sessionRepo.Update(txCtx, session); err != nil {
				return fmt.Errorf("failed to reconcile session: %w", err)
			}
		}

		return s.auditSession(txCtx, companyID, resolverID, model.ActionResolveDiscrepancy, discrepancy.SessionID, req)
	})
	if err != nil {
		return nil, err
	}
	return discrepancy, nil
}

func (s *cashSessionService) ListDiscrepancies(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.CashDiscrepancy, int64, error) {
	return s.sessionRepo.ListDiscrepancies(ctx, companyID, status, page, limit)
}

// --- Helpers ---

func (s *cashSessionService) auditSession(ctx context.Context, companyID uuid.UUID, userID, action string, sessionID uuid.UUID, payload interface{}) error {
	details := ""
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			details = string(raw)
		}
	}
	entry := &model.AuditLog{
		CompanyID: &companyID,
		UserID:    parseUserID(userID),
		Action:    action,
		EntityID:  sessionID.String(),
		Details:   details,
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *cashSessionService) broadcast(event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
