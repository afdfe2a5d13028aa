package taxcalc

import (
	"errors"
	"fmt"
	"sort"

	"posfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrTaxConfigurationMissing is returned when no applicable rate resolves
// for a taxable line and the company has not opted into untaxed fallback.
var ErrTaxConfigurationMissing = errors.New("no applicable tax rate configured")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Rounding names the method and precision applied once per computed tax
// amount. Aggregates are never re-rounded, so drift cannot accumulate.
type Rounding struct {
	Method    string // ROUND, FLOOR, CEIL
	Precision int32
}

func (r Rounding) apply(d decimal.Decimal) decimal.Decimal {
	switch r.Method {
	case model.TaxRoundingFloor:
		return d.RoundFloor(r.Precision)
	case model.TaxRoundingCeil:
		return d.RoundCeil(r.Precision)
	default:
		return d.Round(r.Precision)
	}
}

// RateSpec is the resolved, immutable snapshot of one tax rate as applied
// to a line.
type RateSpec struct {
	RateID      uuid.UUID
	Name        string
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
	IsFixed     bool
	IsCompound  bool
	Priority    int
}

// Component is one (rate, taxable base, tax amount) tuple of a result.
type Component struct {
	RateID      uuid.UUID       `json:"rate_id"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	Amount      decimal.Decimal `json:"amount"`
}

// LineResult is the ephemeral outcome of taxing one line; it is folded into
// invoice and ledger records, never persisted directly.
type LineResult struct {
	Base       decimal.Decimal `json:"base"`
	TotalTax   decimal.Decimal `json:"total_tax"`
	Gross      decimal.Decimal `json:"gross"`
	Components []Component     `json:"components"`
}

// CalculateLine computes tax for one line amount.
//
// Exclusive mode: amount is the taxable base and tax is added on top;
// compound rates apply to base plus taxes-so-far in ascending priority.
//
// Inclusive mode: amount is the gross; fixed components are extracted first
// by literal value times quantity, then base = remainder / (1 + sum of
// simple rates / 100), with the extracted tax allocated back across rates
// proportionally to each rate's share of the total rate.
func CalculateLine(amount, qty decimal.Decimal, rates []RateSpec, pricesIncludeTax bool, r Rounding) (LineResult, error) {
	if amount.IsNegative() {
		return LineResult{}, fmt.Errorf("line amount must not be negative, got %s", amount)
	}

	ordered := make([]RateSpec, len(rates))
	copy(ordered, rates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	if pricesIncludeTax {
		return calculateInclusive(amount, qty, ordered, r)
	}
	return calculateExclusive(amount, qty, ordered, r)
}

func calculateExclusive(base, qty decimal.Decimal, rates []RateSpec, r Rounding) (LineResult, error) {
	res := LineResult{Base: base}
	taxesSoFar := decimal.Zero

	for _, rate := range rates {
		var comp Component
		switch {
		case rate.IsFixed:
			comp = Component{
				RateID:      rate.RateID,
				Name:        rate.Name,
				Rate:        decimal.Zero,
				TaxableBase: qty,
				Amount:      r.apply(rate.FixedAmount.Mul(qty)),
			}
		case rate.IsCompound:
			taxable := base.Add(taxesSoFar)
			comp = Component{
				RateID:      rate.RateID,
				Name:        rate.Name,
				Rate:        rate.Percentage,
				TaxableBase: taxable,
				Amount:      r.apply(taxable.Mul(rate.Percentage).Div(hundred)),
			}
		default:
			comp = Component{
				RateID:      rate.RateID,
				Name:        rate.Name,
				Rate:        rate.Percentage,
				TaxableBase: base,
				Amount:      r.apply(base.Mul(rate.Percentage).Div(hundred)),
			}
		}
		taxesSoFar = taxesSoFar.Add(comp.Amount)
		res.Components = append(res.Components, comp)
	}

	res.TotalTax = taxesSoFar
	res.Gross = base.Add(taxesSoFar)
	return res, nil
}

func calculateInclusive(gross, qty decimal.Decimal, rates []RateSpec, r Rounding) (LineResult, error) {
	res := LineResult{Gross: gross}

	// Fixed components come out first, by literal value.
	remainder := gross
	var pctRates []RateSpec
	sumRates := decimal.Zero
	for _, rate := range rates {
		if rate.IsFixed {
			amt := r.apply(rate.FixedAmount.Mul(qty))
			res.Components = append(res.Components, Component{
				RateID:      rate.RateID,
				Name:        rate.Name,
				Rate:        decimal.Zero,
				TaxableBase: qty,
				Amount:      amt,
			})
			res.TotalTax = res.TotalTax.Add(amt)
			remainder = remainder.Sub(amt)
			continue
		}
		pctRates = append(pctRates, rate)
		sumRates = sumRates.Add(rate.Percentage)
	}

	if remainder.IsNegative() {
		return LineResult{}, fmt.Errorf("fixed tax components %s exceed gross amount %s", res.TotalTax, gross)
	}

	if sumRates.IsPositive() {
		base := remainder.Div(one.Add(sumRates.Div(hundred)))
		extracted := remainder.Sub(base)
		// Allocate back proportionally to each rate's share of the total rate.
		for _, rate := range pctRates {
			amt := r.apply(extracted.Mul(rate.Percentage).Div(sumRates))
			res.Components = append(res.Components, Component{
				RateID:      rate.RateID,
				Name:        rate.Name,
				Rate:        rate.Percentage,
				TaxableBase: base,
				Amount:      amt,
			})
			res.TotalTax = res.TotalTax.Add(amt)
		}
	}

	// Base absorbs per-component rounding so the gross stays exact.
	res.Base = gross.Sub(res.TotalTax)
	return res, nil
}

// DocumentResult aggregates already-rounded line results without
// re-rounding anything.
type DocumentResult struct {
	Base     decimal.Decimal `json:"base"`
	TotalTax decimal.Decimal `json:"total_tax"`
	Gross    decimal.Decimal `json:"gross"`
	Lines    []LineResult    `json:"lines"`
	// ByRate folds per-line components into one total per rate.
	ByRate []Component `json:"by_rate"`
}

// CalculateDocument sums per-line results into a document aggregate.
func CalculateDocument(lines []LineResult) DocumentResult {
	doc := DocumentResult{Lines: lines}
	index := map[uuid.UUID]int{}
	for _, line := range lines {
		doc.Base = doc.Base.Add(line.Base)
		doc.TotalTax = doc.TotalTax.Add(line.TotalTax)
		doc.Gross = doc.Gross.Add(line.Gross)
		for _, comp := range line.Components {
			if i, ok := index[comp.RateID]; ok {
				doc.ByRate[i].TaxableBase = doc.ByRate[i].TaxableBase.Add(comp.TaxableBase)
				doc.ByRate[i].Amount = doc.ByRate[i].Amount.Add(comp.Amount)
				continue
			}
			index[comp.RateID] = len(doc.ByRate)
			doc.ByRate = append(doc.ByRate, comp)
		}
	}
	return doc
}

// WithholdingResult is the payment-side withholding outcome.
type WithholdingResult struct {
	Applied bool            `json:"applied"`
	Rate    decimal.Decimal `json:"rate"`
	Tax     decimal.Decimal `json:"tax"`
	Net     decimal.Decimal `json:"net"`
}

// CalculateWithholding selects the resident or non-resident rate, skips
// entirely below the threshold, and reports the net amount after
// withholding.
func CalculateWithholding(amount, residentRate, nonResidentRate, threshold decimal.Decimal, resident bool, r Rounding) WithholdingResult {
	rate := residentRate
	if !resident {
		rate = nonResidentRate
	}

	if threshold.IsPositive() && amount.LessThan(threshold) {
		return WithholdingResult{Applied: false, Rate: rate, Net: amount}
	}
	if !rate.IsPositive() {
		return WithholdingResult{Applied: false, Rate: rate, Net: amount}
	}

	tax := r.apply(amount.Mul(rate).Div(hundred))
	return WithholdingResult{
		Applied: true,
		Rate:    rate,
		Tax:     tax,
		Net:     amount.Sub(tax),
	}
}
