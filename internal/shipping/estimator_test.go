package shipping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

func TestDefaultPolicy(t *testing.T) {
	est := NewEstimator(nil)

	cases := []struct {
		region   string
		subtotal int64
		price    int64
		eta      string
	}{
		{"Región de Valparaíso", 100000, 0, "2-5 días hábiles"},
		{"Región Metropolitana de Santiago", 250000, 0, "2-5 días hábiles"},
		{"Región Metropolitana de Santiago", 50000, 3990, "2-3 días hábiles"},
		{"REGION METROPOLITANA", 99999, 3990, "2-3 días hábiles"},
		{"Región de Valparaíso", 50000, 5990, "3-5 días hábiles"},
		{"", 50000, 5990, "3-5 días hábiles"},
	}
	for _, tc := range cases {
		got := est.Estimate(types.ShippingAddress{Region: tc.region}, tc.subtotal)
		if got.Price != tc.price || got.ETA != tc.eta {
			t.Fatalf("region=%q subtotal=%d: got price %d eta %q, want %d %q", tc.region, tc.subtotal, got.Price, got.ETA, tc.price, tc.eta)
		}
		if got.Carrier == "" {
			t.Fatalf("expected a carrier for %q", tc.region)
		}
	}

	free := est.Estimate(types.ShippingAddress{Region: "Aysén"}, 100000)
	if !free.Free || free.Label != "envío gratis" {
		t.Fatalf("expected free label, got %+v", free)
	}
}

func TestEstimateForUnresolvedAddress(t *testing.T) {
	est := NewEstimator(nil)
	if got := est.EstimateFor(nil, 5000); got != nil {
		t.Fatalf("expected nil estimate without address, got %+v", got)
	}
	if got := est.EstimateFor(&types.ShippingAddress{Comuna: "Maipú"}, 5000); got != nil {
		t.Fatalf("expected nil estimate without region, got %+v", got)
	}
	if got := est.EstimateFor(&types.ShippingAddress{Region: "Los Lagos"}, 5000); got == nil || got.Price != 5990 {
		t.Fatalf("expected default rate, got %+v", got)
	}
}

func TestParseRateTableOverride(t *testing.T) {
	raw := `
carrier: Chilexpress
free_threshold: 80000
free:
  label: envío gratis
  min_days: 1
  max_days: 4
zones:
  - match: valparaíso
    price: 4500
    label: envío V región
    min_days: 2
    max_days: 2
default:
  price: 6990
  label: envío nacional
  carrier: Correos
  min_days: 3
  max_days: 6
`
	table, err := ParseRateTable([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	est := NewEstimator(table)

	got := est.Estimate(types.ShippingAddress{Region: "Región de Valparaíso"}, 10000)
	if got.Price != 4500 || got.ETA != "2 días hábiles" || got.Carrier != "Chilexpress" {
		t.Fatalf("unexpected zone estimate %+v", got)
	}
	got = est.Estimate(types.ShippingAddress{Region: "Región de Magallanes"}, 10000)
	if got.Price != 6990 || got.Carrier != "Correos" {
		t.Fatalf("unexpected default estimate %+v", got)
	}
	if got := est.Estimate(types.ShippingAddress{}, 80000); got.Price != 0 {
		t.Fatalf("expected free shipping at new threshold, got %+v", got)
	}
}

func TestParseRateTableRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": "carrier: x\nsurcharge: 5\n",
		"empty":         "",
		"negative":      "free_threshold: 1\nfree: {label: f, min_days: 1, max_days: 2}\ndefault: {price: -1, label: d, min_days: 1, max_days: 2}\n",
		"inverted days": "free_threshold: 1\nfree: {label: f, min_days: 3, max_days: 2}\ndefault: {price: 1, label: d, min_days: 1, max_days: 2}\n",
		"blank match":   "free_threshold: 1\nfree: {label: f, min_days: 1, max_days: 2}\ndefault: {price: 1, label: d, min_days: 1, max_days: 2}\nzones: [{price: 1, label: z, min_days: 1, max_days: 1}]\n",
	}
	for name, raw := range cases {
		if _, err := ParseRateTable([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadRateTable(t *testing.T) {
	def, err := LoadRateTable("")
	if err != nil || def.FreeThreshold != 100000 {
		t.Fatalf("expected default table, got %+v err=%v", def, err)
	}

	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte("free_threshold: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRateTable(path); err == nil || !strings.Contains(err.Error(), "free_threshold") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := LoadRateTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestDefaultRateTableIsValid(t *testing.T) {
	if err := DefaultRateTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
}
