package costing

import (
	"testing"
	"time"

	"posfinance/internal/model"

	"github.com/shopspring/decimal"
)

func TestSuggestPricePercentileMarginScenario(t *testing.T) {
	// 90th percentile cost 100 with a 30% margin suggests 130 before rounding.
	batches := []model.Batch{
		batch(90, 50, 0),
		batch(95, 30, time.Hour),
		batch(100, 20, 2*time.Hour),
	}

	basis, err := CostBasis(batches, model.CostMethodPercentile, decimal.NewFromInt(90))
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}

	suggested, err := SuggestPrice(basis, MarginPolicy{Type: model.MarginPercentage, Value: decimal.NewFromInt(30)},
		decimal.Zero, model.CostMethodPercentile, RoundingPolicy{})
	if err != nil {
		t.Fatalf("SuggestPrice: %v", err)
	}
	if !suggested.Price.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("suggested price = %s, want 130", suggested.Price)
	}
}

func TestSuggestPriceFixedMarginAndTierDiscount(t *testing.T) {
	suggested, err := SuggestPrice(decimal.NewFromInt(100), MarginPolicy{Type: model.MarginFixed, Value: decimal.NewFromInt(40)},
		decimal.NewFromInt(10), model.CostMethodAverage, RoundingPolicy{})
	if err != nil {
		t.Fatalf("SuggestPrice: %v", err)
	}
	// (100 + 40) * 0.9 = 126: tier discount multiplies after margin.
	if !suggested.Price.Equal(decimal.NewFromInt(126)) {
		t.Fatalf("suggested price = %s, want 126", suggested.Price)
	}
}

func TestApplyRounding(t *testing.T) {
	five := decimal.NewFromInt(5)

	tests := []struct {
		name  string
		price string
		pol   RoundingPolicy
		want  string
	}{
		{"disabled", "123.456", RoundingPolicy{}, "123.456"},
		{"precision only half-up", "123.455", RoundingPolicy{Enabled: true, Method: model.RoundingNearest, Precision: 2}, "123.46"},
		{"nearest increment", "123.46", RoundingPolicy{Enabled: true, Method: model.RoundingNearest, Precision: 2, Increment: five}, "125"},
		{"increment down", "124.99", RoundingPolicy{Enabled: true, Method: model.RoundingDown, Precision: 2, Increment: five}, "120"},
		{"increment up", "121.01", RoundingPolicy{Enabled: true, Method: model.RoundingUp, Precision: 2, Increment: five}, "125"},
		{"nearest rounds down when closer", "121.5", RoundingPolicy{Enabled: true, Method: model.RoundingNearest, Precision: 2, Increment: five}, "120"},
	}

	for _, tt := range tests {
		price, _ := decimal.NewFromString(tt.price)
		want, _ := decimal.NewFromString(tt.want)
		if got := ApplyRounding(price, tt.pol); !got.Equal(want) {
			t.Errorf("%s: ApplyRounding(%s) = %s, want %s", tt.name, tt.price, got, want)
		}
	}
}

func TestValidatePrice(t *testing.T) {
	floor := decimal.NewFromInt(110)
	cost := decimal.NewFromInt(100)

	tests := []struct {
		name             string
		proposed         int64
		allowBelowCost   bool
		requiresApproval bool
		wantValid        bool
		wantReason       string
		wantApproval     bool
	}{
		{"above floor", 120, false, true, true, PriceOK, false},
		{"below floor", 105, false, true, false, PriceBelowFloor, false},
		{"below cost not allowed", 90, false, true, false, PriceBelowCostUnapproved, false},
		{"below cost allowed needs approval", 90, true, true, true, PriceBelowCost, true},
		{"below cost allowed no approval", 90, true, false, true, PriceBelowCost, false},
	}

	for _, tt := range tests {
		// Below-cost cases run without a floor so the cost check is what trips.
		f := floor
		if tt.wantReason == PriceBelowCost || tt.wantReason == PriceBelowCostUnapproved {
			f = decimal.Zero
		}
		v := ValidatePrice(decimal.NewFromInt(tt.proposed), f, cost, tt.allowBelowCost, tt.requiresApproval)
		if v.Valid != tt.wantValid || v.Reason != tt.wantReason || v.RequiresApproval != tt.wantApproval {
			t.Errorf("%s: got {valid=%v reason=%s approval=%v}, want {valid=%v reason=%s approval=%v}",
				tt.name, v.Valid, v.Reason, v.RequiresApproval, tt.wantValid, tt.wantReason, tt.wantApproval)
		}
	}
}
