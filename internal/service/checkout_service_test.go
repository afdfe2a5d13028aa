package service

import (
	"testing"
)

func TestCheckSettlementExact(t *testing.T) {
	if err := checkSettlement(dec("115.50"), dec("115.50")); err != nil {
		t.Fatalf("exact settlement rejected: %v", err)
	}
}

func TestCheckSettlementRejectsAnyGap(t *testing.T) {
	cases := []struct {
		name     string
		payments string
		total    string
	}{
		{"under by a cent", "114.49", "114.50"},
		{"over by a cent", "114.51", "114.50"},
		// A sub-cent gap must fail here too: the posting builder
		// balances debits and credits exactly, so letting it through
		// would only move the failure into balance validation.
		{"under by half a cent", "114.495", "114.50"},
		{"over by half a cent", "114.505", "114.50"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkSettlement(dec(tt.payments), dec(tt.total)); err == nil {
				t.Fatalf("payments %s against total %s accepted, want error", tt.payments, tt.total)
			}
		})
	}
}
