package ledger

import (
	"errors"
	"strings"
	"testing"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func saleFixture() ([]Line, []Payment) {
	income := uuid.New()
	cogs := uuid.New()
	inventory := uuid.New()
	taxAcct := uuid.New()
	cash := uuid.New()
	card := uuid.New()

	lines := []Line{
		{
			Description:        "Item A x2",
			IncomeAccountID:    income,
			CogsAccountID:      cogs,
			InventoryAccountID: inventory,
			TaxableBase:        dec("1000"),
			CostBasis:          dec("700"),
			TaxComponents:      []TaxComponent{{AccountID: taxAcct, Name: "VAT 5%", Amount: dec("50")}},
		},
		{
			Description:        "Item B x1",
			IncomeAccountID:    income,
			CogsAccountID:      cogs,
			InventoryAccountID: inventory,
			TaxableBase:        dec("500"),
			CostBasis:          dec("320"),
			TaxComponents:      []TaxComponent{{AccountID: taxAcct, Name: "VAT 5%", Amount: dec("25")}},
		},
	}
	payments := []Payment{
		{TenderAccountID: cash, Mode: model.TenderCash, Amount: dec("1000")},
		{TenderAccountID: card, Mode: model.TenderCard, Amount: dec("575")},
	}
	return lines, payments
}

func TestBuildBalancesExactly(t *testing.T) {
	lines, payments := saleFixture()
	postings := Build(lines, payments)

	var debits, credits decimal.Decimal
	for _, p := range postings {
		debits = debits.Add(p.Debit)
		credits = credits.Add(p.Credit)
	}
	if !debits.Equal(credits) {
		t.Fatalf("debits %s != credits %s", debits, credits)
	}

	if err := ValidateBalance(postings, dec("1575")); err != nil {
		t.Fatalf("ValidateBalance: %v", err)
	}
}

func TestBuildDebitsTendersOnlyFromPayments(t *testing.T) {
	lines, payments := saleFixture()
	postings := Build(lines, payments)

	var tenderDebits decimal.Decimal
	tenderCount := 0
	for _, p := range postings {
		switch p.Kind {
		case model.PostingTender:
			tenderCount++
			tenderDebits = tenderDebits.Add(p.Debit)
		case model.PostingIncome, model.PostingTax, model.PostingInventory:
			if !p.Debit.IsZero() {
				t.Fatalf("%s posting carries a debit %s", p.Kind, p.Debit)
			}
		}
	}
	// One debit per payment mode and nothing else on the debit side of the
	// invoice total: the sale lines cannot double-count the tender.
	if tenderCount != len(payments) {
		t.Fatalf("got %d tender postings, want %d", tenderCount, len(payments))
	}
	if !tenderDebits.Equal(dec("1575")) {
		t.Fatalf("tender debits = %s, want 1575", tenderDebits)
	}
}

func TestBuildCostPairOffsets(t *testing.T) {
	lines, payments := saleFixture()
	postings := Build(lines, payments)

	var cogsDebit, inventoryCredit decimal.Decimal
	for _, p := range postings {
		if p.Kind == model.PostingCOGS {
			cogsDebit = cogsDebit.Add(p.Debit)
		}
		if p.Kind == model.PostingInventory {
			inventoryCredit = inventoryCredit.Add(p.Credit)
		}
	}
	if !cogsDebit.Equal(dec("1020")) || !inventoryCredit.Equal(dec("1020")) {
		t.Fatalf("COGS %s / inventory %s, want matching 1020", cogsDebit, inventoryCredit)
	}
}

func TestValidateBalanceRejectsUnbalanced(t *testing.T) {
	lines, payments := saleFixture()
	payments[1].Amount = dec("500") // short-pay: debits no longer match credits

	postings := Build(lines, payments)
	err := ValidateBalance(postings, dec("1575"))

	var imbalance *ImbalanceError
	if !errors.As(err, &imbalance) {
		t.Fatalf("err = %v, want ImbalanceError", err)
	}
	if len(imbalance.Postings) != len(postings) {
		t.Fatal("imbalance error must carry the full posting dump")
	}
	if !strings.Contains(imbalance.Dump(), "TENDER") {
		t.Fatal("Dump should render posting kinds")
	}
}

func TestValidateBalanceGrandTotalTolerance(t *testing.T) {
	lines, payments := saleFixture()
	postings := Build(lines, payments)

	// Within one minor unit is accepted, beyond is not.
	if err := ValidateBalance(postings, dec("1575.01")); err != nil {
		t.Fatalf("one minor unit drift must pass, got %v", err)
	}
	if err := ValidateBalance(postings, dec("1575.02")); err == nil {
		t.Fatal("drift beyond one minor unit must fail")
	}
}

func TestBuildSkipsZeroAmounts(t *testing.T) {
	lines := []Line{{
		IncomeAccountID: uuid.New(),
		TaxableBase:     dec("100"),
		TaxComponents:   []TaxComponent{{AccountID: uuid.New(), Name: "exempt", Amount: decimal.Zero}},
	}}
	payments := []Payment{
		{TenderAccountID: uuid.New(), Mode: model.TenderCash, Amount: dec("100")},
		{TenderAccountID: uuid.New(), Mode: model.TenderCard, Amount: decimal.Zero},
	}

	postings := Build(lines, payments)
	if len(postings) != 2 {
		t.Fatalf("got %d postings, want 2 (zero tax and zero payment skipped)", len(postings))
	}
}
