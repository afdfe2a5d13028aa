package taxcalc

import (
	"testing"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var defaultRounding = Rounding{Method: model.TaxRoundingRound, Precision: 2}

func pct(name string, rate float64, priority int) RateSpec {
	return RateSpec{RateID: uuid.New(), Name: name, Percentage: decimal.NewFromFloat(rate), Priority: priority}
}

func TestCalculateLineExclusiveSimple(t *testing.T) {
	res, err := CalculateLine(decimal.NewFromInt(1000), decimal.NewFromInt(1),
		[]RateSpec{pct("VAT 5%", 5, 0)}, false, defaultRounding)
	if err != nil {
		t.Fatalf("CalculateLine: %v", err)
	}

	if !res.TotalTax.Equal(decimal.NewFromInt(50)) {
		t.Errorf("TotalTax = %s, want 50", res.TotalTax)
	}
	if !res.Gross.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("Gross = %s, want 1050", res.Gross)
	}
}

func TestCalculateLineCompoundAppliesToBasePlusTaxesSoFar(t *testing.T) {
	vat := pct("VAT 10%", 10, 0)
	levy := pct("Levy 5%", 5, 1)
	levy.IsCompound = true

	res, err := CalculateLine(decimal.NewFromInt(1000), decimal.NewFromInt(1),
		[]RateSpec{levy, vat}, false, defaultRounding)
	if err != nil {
		t.Fatalf("CalculateLine: %v", err)
	}

	// Priority orders the walk: VAT 100 on 1000, then levy 5% on 1100 = 55.
	if len(res.Components) != 2 {
		t.Fatalf("got %d components, want 2", len(res.Components))
	}
	if res.Components[0].Name != "VAT 10%" || !res.Components[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("first component = %s %s, want VAT 10%% 100", res.Components[0].Name, res.Components[0].Amount)
	}
	if !res.Components[1].TaxableBase.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("compound taxable base = %s, want 1100", res.Components[1].TaxableBase)
	}
	if !res.Components[1].Amount.Equal(decimal.NewFromInt(55)) {
		t.Errorf("compound amount = %s, want 55", res.Components[1].Amount)
	}
	if !res.Gross.Equal(decimal.NewFromInt(1155)) {
		t.Errorf("Gross = %s, want 1155", res.Gross)
	}
}

func TestCalculateLineFixedComponent(t *testing.T) {
	stamp := RateSpec{RateID: uuid.New(), Name: "Stamp", FixedAmount: decimal.NewFromFloat(1.5), IsFixed: true}

	res, err := CalculateLine(decimal.NewFromInt(200), decimal.NewFromInt(4),
		[]RateSpec{stamp}, false, defaultRounding)
	if err != nil {
		t.Fatalf("CalculateLine: %v", err)
	}
	if !res.TotalTax.Equal(decimal.NewFromInt(6)) {
		t.Errorf("fixed tax = %s, want 6 (1.5 x 4)", res.TotalTax)
	}
}

func TestInclusiveRoundTrip(t *testing.T) {
	// Exclusive on base B, then inclusive on the resulting gross, must
	// recover B within one rounding unit.
	bases := []string{"1000", "999.99", "123.45", "7"}
	rates := []RateSpec{pct("VAT 5%", 5, 0), pct("CT 2%", 2, 1)}
	unit := decimal.NewFromFloat(0.01)

	for _, s := range bases {
		base, _ := decimal.NewFromString(s)
		excl, err := CalculateLine(base, decimal.NewFromInt(1), rates, false, defaultRounding)
		if err != nil {
			t.Fatalf("exclusive(%s): %v", s, err)
		}

		incl, err := CalculateLine(excl.Gross, decimal.NewFromInt(1), rates, true, defaultRounding)
		if err != nil {
			t.Fatalf("inclusive(%s): %v", s, err)
		}

		if incl.Base.Sub(base).Abs().GreaterThan(unit) {
			t.Errorf("base %s: round trip recovered %s, drift > one rounding unit", s, incl.Base)
		}
		if !incl.Gross.Equal(excl.Gross) {
			t.Errorf("base %s: inclusive gross %s != fed gross %s", s, incl.Gross, excl.Gross)
		}
	}
}

func TestInclusiveExtractsFixedFirst(t *testing.T) {
	vat := pct("VAT 5%", 5, 0)
	stamp := RateSpec{RateID: uuid.New(), Name: "Stamp", FixedAmount: decimal.NewFromInt(2), IsFixed: true}

	res, err := CalculateLine(decimal.NewFromInt(107), decimal.NewFromInt(1),
		[]RateSpec{vat, stamp}, true, defaultRounding)
	if err != nil {
		t.Fatalf("CalculateLine: %v", err)
	}

	// Fixed 2 comes off the gross first; 105 / 1.05 = 100 base, 5 VAT.
	if !res.Base.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Base = %s, want 100", res.Base)
	}
	if !res.TotalTax.Equal(decimal.NewFromInt(7)) {
		t.Errorf("TotalTax = %s, want 7", res.TotalTax)
	}
}

func TestInclusiveProportionalAllocation(t *testing.T) {
	rates := []RateSpec{pct("A 6%", 6, 0), pct("B 4%", 4, 1)}

	res, err := CalculateLine(decimal.NewFromInt(1100), decimal.NewFromInt(1), rates, true, defaultRounding)
	if err != nil {
		t.Fatalf("CalculateLine: %v", err)
	}

	// base = 1100 / 1.10 = 1000, extracted 100 split 60/40 by rate share.
	if !res.Components[0].Amount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("A amount = %s, want 60", res.Components[0].Amount)
	}
	if !res.Components[1].Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("B amount = %s, want 40", res.Components[1].Amount)
	}
}

func TestRoundingMethods(t *testing.T) {
	rate := []RateSpec{pct("VAT 7%", 7, 0)}
	amount := decimal.NewFromFloat(99.99) // raw tax 6.9993

	tests := []struct {
		method string
		want   string
	}{
		{model.TaxRoundingRound, "7"},
		{model.TaxRoundingFloor, "6.99"},
		{model.TaxRoundingCeil, "7"},
	}
	for _, tt := range tests {
		res, err := CalculateLine(amount, decimal.NewFromInt(1), rate, false, Rounding{Method: tt.method, Precision: 2})
		if err != nil {
			t.Fatalf("%s: %v", tt.method, err)
		}
		want, _ := decimal.NewFromString(tt.want)
		if !res.TotalTax.Equal(want) {
			t.Errorf("%s: tax = %s, want %s", tt.method, res.TotalTax, want)
		}
	}
}

func TestCalculateDocumentDoesNotReRound(t *testing.T) {
	rate := pct("VAT 5%", 5, 0)
	var lines []LineResult
	// 0.33 * 5% = 0.0165 rounds to 0.02 per line; three lines sum to 0.06,
	// while taxing the 0.99 total once would give 0.05.
	for i := 0; i < 3; i++ {
		res, err := CalculateLine(decimal.NewFromFloat(0.33), decimal.NewFromInt(1), []RateSpec{rate}, false, defaultRounding)
		if err != nil {
			t.Fatalf("CalculateLine: %v", err)
		}
		lines = append(lines, res)
	}

	doc := CalculateDocument(lines)
	if !doc.TotalTax.Equal(decimal.NewFromFloat(0.06)) {
		t.Fatalf("document tax = %s, want 0.06 (sum of per-line rounded amounts)", doc.TotalTax)
	}
	if len(doc.ByRate) != 1 {
		t.Fatalf("ByRate has %d entries, want 1", len(doc.ByRate))
	}
	if !doc.ByRate[0].Amount.Equal(decimal.NewFromFloat(0.06)) {
		t.Fatalf("ByRate amount = %s, want 0.06", doc.ByRate[0].Amount)
	}
}

func TestCalculateWithholding(t *testing.T) {
	resident := decimal.NewFromInt(2)
	nonResident := decimal.NewFromFloat(3.5)
	threshold := decimal.NewFromInt(1000000)

	below := CalculateWithholding(decimal.NewFromInt(999999), resident, nonResident, threshold, true, defaultRounding)
	if below.Applied {
		t.Fatal("withholding must be skipped below the threshold")
	}
	if !below.Net.Equal(decimal.NewFromInt(999999)) {
		t.Fatalf("Net = %s, want unchanged amount", below.Net)
	}

	res := CalculateWithholding(decimal.NewFromInt(2000000), resident, nonResident, threshold, true, defaultRounding)
	if !res.Applied || !res.Tax.Equal(decimal.NewFromInt(40000)) {
		t.Fatalf("resident withholding tax = %s, want 40000", res.Tax)
	}
	if !res.Net.Equal(decimal.NewFromInt(1960000)) {
		t.Fatalf("Net = %s, want 1960000", res.Net)
	}

	foreign := CalculateWithholding(decimal.NewFromInt(2000000), resident, nonResident, threshold, false, defaultRounding)
	if !foreign.Tax.Equal(decimal.NewFromInt(70000)) {
		t.Fatalf("non-resident withholding tax = %s, want 70000", foreign.Tax)
	}
}
