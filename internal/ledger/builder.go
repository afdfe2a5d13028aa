// Package ledger turns costed, taxed sale lines and payment instructions
// into a balanced double-entry distribution. It holds no shared state and
// is safe to run concurrently across invoices.
package ledger

import (
	"fmt"
	"strings"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tolerance for the grand-total check: one minor currency unit. The
// debit/credit balance itself must hold exactly.
var minorUnit = decimal.NewFromFloat(0.01)

// TaxComponent is one tax amount owed to the tax liability account.
type TaxComponent struct {
	AccountID uuid.UUID
	Name      string
	Amount    decimal.Decimal
}

// Line is one costed and taxed sale line ready for distribution.
type Line struct {
	Description        string
	IncomeAccountID    uuid.UUID
	CogsAccountID      uuid.UUID
	InventoryAccountID uuid.UUID
	TaxableBase        decimal.Decimal
	CostBasis          decimal.Decimal // total cost for the line as resolved by batch consumption
	TaxComponents      []TaxComponent
}

// Payment is one payment instruction; its tender account carries the debit
// side for the whole sale, so sale lines never emit their own receivable
// debit and double counting cannot occur.
type Payment struct {
	TenderAccountID uuid.UUID
	Mode            string
	Amount          decimal.Decimal
}

// Posting is one debit or credit before persistence.
type Posting struct {
	AccountID uuid.UUID       `json:"account_id"`
	Kind      string          `json:"kind"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo"`
}

// ImbalanceError is fatal: the invoice must not be persisted, not even
// partially. It carries the full posting dump for the log.
type ImbalanceError struct {
	Debits   decimal.Decimal
	Credits  decimal.Decimal
	Expected decimal.Decimal
	Total    decimal.Decimal
	Postings []Posting
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("ledger imbalance: debits=%s credits=%s expected_total=%s posting_total=%s",
		e.Debits, e.Credits, e.Expected, e.Total)
}

// Dump renders every posting for the failure log.
func (e *ImbalanceError) Dump() string {
	var b strings.Builder
	for _, p := range e.Postings {
		fmt.Fprintf(&b, "%s %s dr=%s cr=%s %s\n", p.AccountID, p.Kind, p.Debit, p.Credit, p.Memo)
	}
	return b.String()
}

// Build emits the double-entry distribution for one invoice:
//   - per sale line: credit income for the taxable base, credit tax
//     liability per component, and a debit COGS / credit inventory pair for
//     the cost basis;
//   - per payment: one debit to the tender account for the payment amount.
func Build(lines []Line, payments []Payment) []Posting {
	var postings []Posting

	for _, line := range lines {
		if line.TaxableBase.IsPositive() {
			postings = append(postings, Posting{
				AccountID: line.IncomeAccountID,
				Kind:      model.PostingIncome,
				Credit:    line.TaxableBase,
				Memo:      line.Description,
			})
		}
		for _, tax := range line.TaxComponents {
			if tax.Amount.IsZero() {
				continue
			}
			postings = append(postings, Posting{
				AccountID: tax.AccountID,
				Kind:      model.PostingTax,
				Credit:    tax.Amount,
				Memo:      tax.Name,
			})
		}
		if line.CostBasis.IsPositive() {
			postings = append(postings,
				Posting{
					AccountID: line.CogsAccountID,
					Kind:      model.PostingCOGS,
					Debit:     line.CostBasis,
					Memo:      line.Description,
				},
				Posting{
					AccountID: line.InventoryAccountID,
					Kind:      model.PostingInventory,
					Credit:    line.CostBasis,
					Memo:      line.Description,
				})
		}
	}

	for _, pay := range payments {
		if pay.Amount.IsZero() {
			continue
		}
		postings = append(postings, Posting{
			AccountID: pay.TenderAccountID,
			Kind:      model.PostingTender,
			Debit:     pay.Amount,
			Memo:      pay.Mode,
		})
	}

	return postings
}

// ValidateBalance enforces the hard invariant before any persistence call:
// total debits equal total credits exactly, and the invoice-facing total
// (the tender debits) matches the expected grand total within one minor
// currency unit.
func ValidateBalance(postings []Posting, expectedTotal decimal.Decimal) error {
	var debits, credits, tenderTotal decimal.Decimal
	for _, p := range postings {
		debits = debits.Add(p.Debit)
		credits = credits.Add(p.Credit)
		if p.Kind == model.PostingTender {
			tenderTotal = tenderTotal.Add(p.Debit)
		}
	}

	if !debits.Equal(credits) {
		return &ImbalanceError{Debits: debits, Credits: credits, Expected: expectedTotal, Total: tenderTotal, Postings: postings}
	}
	if tenderTotal.Sub(expectedTotal).Abs().GreaterThan(minorUnit) {
		return &ImbalanceError{Debits: debits, Credits: credits, Expected: expectedTotal, Total: tenderTotal, Postings: postings}
	}
	return nil
}
