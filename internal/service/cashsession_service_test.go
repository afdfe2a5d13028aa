package service

import (
	"testing"

	"posfinance/internal/model"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyCashTransactionSaleByTender(t *testing.T) {
	cases := []struct {
		tender string
		total  func(*model.CashSession) decimal.Decimal
		drawer bool
	}{
		{model.TenderCash, func(s *model.CashSession) decimal.Decimal { return s.CashSales }, true},
		{model.TenderCard, func(s *model.CashSession) decimal.Decimal { return s.CardSales }, false},
		{model.TenderMobile, func(s *model.CashSession) decimal.Decimal { return s.MobileSales }, false},
		{model.TenderCredit, func(s *model.CashSession) decimal.Decimal { return s.CreditSales }, false},
	}

	for _, tc := range cases {
		t.Run(tc.tender, func(t *testing.T) {
			session := &model.CashSession{OpeningBalance: dec("5000"), RunningBalance: dec("5000")}
			tx, err := applyCashTransaction(session, model.CashTxSale, tc.tender, dec("1200"))
			if err != nil {
				t.Fatalf("applyCashTransaction: %v", err)
			}
			if !tc.total(session).Equal(dec("1200")) {
				t.Errorf("tender total = %s, want 1200", tc.total(session))
			}
			wantBalance := dec("5000")
			if tc.drawer {
				wantBalance = dec("6200")
			}
			if !session.RunningBalance.Equal(wantBalance) {
				t.Errorf("running balance = %s, want %s", session.RunningBalance, wantBalance)
			}
			if !tx.RunningBalance.Equal(session.RunningBalance) {
				t.Errorf("tx snapshot = %s, session = %s", tx.RunningBalance, session.RunningBalance)
			}
		})
	}
}

func TestApplyCashTransactionOutflows(t *testing.T) {
	session := &model.CashSession{OpeningBalance: dec("5000"), RunningBalance: dec("5000")}

	if _, err := applyCashTransaction(session, model.CashTxRefund, model.TenderCash, dec("500")); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := applyCashTransaction(session, model.CashTxPayout, model.TenderCash, dec("1000")); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if _, err := applyCashTransaction(session, model.CashTxPayIn, model.TenderCash, dec("2000")); err != nil {
		t.Fatalf("pay-in: %v", err)
	}

	if !session.RunningBalance.Equal(dec("5500")) {
		t.Errorf("running balance = %s, want 5500", session.RunningBalance)
	}
	if !session.Refunds.Equal(dec("500")) || !session.Payouts.Equal(dec("1000")) || !session.PayIns.Equal(dec("2000")) {
		t.Errorf("totals = refunds %s payouts %s payins %s", session.Refunds, session.Payouts, session.PayIns)
	}
}

func TestApplyCashTransactionDrawerCannotGoNegative(t *testing.T) {
	session := &model.CashSession{OpeningBalance: dec("100"), RunningBalance: dec("100")}
	if _, err := applyCashTransaction(session, model.CashTxPayout, model.TenderCash, dec("150")); err == nil {
		t.Fatal("expected error for payout exceeding drawer balance")
	}
}

func TestApplyCashTransactionRejectsNonCashDrawerMovements(t *testing.T) {
	session := &model.CashSession{RunningBalance: dec("100")}
	if _, err := applyCashTransaction(session, model.CashTxRefund, model.TenderCard, dec("10")); err == nil {
		t.Fatal("expected error for card refund on the drawer")
	}
	if _, err := applyCashTransaction(session, model.CashTxPayout, model.TenderMobile, dec("10")); err == nil {
		t.Fatal("expected error for mobile payout")
	}
}

// A full shift: 5000 float, 25000 cash sales, 500 refunds, 1000 payouts,
// 2000 pay-ins. Expected cash is 30500; counting 30350 leaves the drawer
// 150 short.
func TestExpectedCashAfterShift(t *testing.T) {
	session := &model.CashSession{OpeningBalance: dec("5000"), RunningBalance: dec("5000")}

	for _, amount := range []string{"10000", "15000"} {
		if _, err := applyCashTransaction(session, model.CashTxSale, model.TenderCash, dec(amount)); err != nil {
			t.Fatalf("sale: %v", err)
		}
	}
	// Card sales must not touch expected cash.
	if _, err := applyCashTransaction(session, model.CashTxSale, model.TenderCard, dec("8000")); err != nil {
		t.Fatalf("card sale: %v", err)
	}
	if _, err := applyCashTransaction(session, model.CashTxRefund, model.TenderCash, dec("500")); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := applyCashTransaction(session, model.CashTxPayout, model.TenderCash, dec("1000")); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if _, err := applyCashTransaction(session, model.CashTxPayIn, model.TenderCash, dec("2000")); err != nil {
		t.Fatalf("pay-in: %v", err)
	}

	expected := session.ExpectedCashAmount()
	if !expected.Equal(dec("30500")) {
		t.Fatalf("expected cash = %s, want 30500", expected)
	}
	if !session.RunningBalance.Equal(expected) {
		t.Errorf("running balance %s diverged from expected cash %s", session.RunningBalance, expected)
	}

	counted := dec("30350")
	diff := counted.Sub(expected)
	if !diff.Equal(dec("-150")) {
		t.Errorf("discrepancy = %s, want -150", diff)
	}
	if diff.Abs().LessThanOrEqual(dec("100")) {
		t.Error("a 150 shortfall must exceed a 100 tolerance")
	}
}

func TestVoidDiscrepancyRetiresPendingRecord(t *testing.T) {
	d := &model.CashDiscrepancy{
		Type:   model.DiscrepancyShort,
		Amount: dec("150"),
		Status: model.DiscrepancyPending,
	}

	voidDiscrepancy(d)

	if d.Status != model.DiscrepancyVoided {
		t.Errorf("Status = %s, want %s", d.Status, model.DiscrepancyVoided)
	}
	// Acknowledge and resolve both require PENDING, so a voided record
	// from a rejected close must not satisfy that precondition.
	if d.Status == model.DiscrepancyPending {
		t.Error("voided discrepancy still pending")
	}
	if d.ResolutionNote == "" {
		t.Error("voided discrepancy carries no note")
	}
}

func TestSessionStateErrorMessage(t *testing.T) {
	err := &SessionStateError{Current: model.SessionClosed, Attempted: "record a transaction"}
	want := "session is CLOSED: cannot record a transaction"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
