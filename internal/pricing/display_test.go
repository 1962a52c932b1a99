package pricing

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestResolveAppliesEligibleOffer(t *testing.T) {
	cases := []struct {
		name   string
		fields Fields
		pct    int
		final  float64
	}{
		{"precioNormal with precioOferta", Fields{PrecioNormal: ptr(10000), PrecioOferta: ptr(7500)}, 25, 7500},
		{"precio with offerPrice", Fields{Precio: ptr(3000), OfferPrice: ptr(1999)}, 33, 1999},
		{"rounds half away from zero", Fields{Precio: ptr(200), OfferPrice: ptr(199)}, 1, 199},
		{"precioNormal wins over precio", Fields{Precio: ptr(1), PrecioNormal: ptr(1000), PrecioOferta: ptr(500)}, 50, 500},
	}
	for _, tc := range cases {
		got := Resolve(tc.fields)
		if !got.HasDiscount {
			t.Fatalf("%s: expected discount", tc.name)
		}
		if got.Final != tc.final {
			t.Fatalf("%s: expected final %v, got %v", tc.name, tc.final, got.Final)
		}
		if got.DiscountPercentage == nil || *got.DiscountPercentage != tc.pct {
			t.Fatalf("%s: expected pct %d, got %v", tc.name, tc.pct, got.DiscountPercentage)
		}
	}
}

func TestResolveDiscountMatchesFormulaForAllEligibleOffers(t *testing.T) {
	for normal := 1.0; normal <= 500; normal += 7 {
		for offer := 1.0; offer < normal; offer += 3 {
			got := Resolve(Fields{PrecioNormal: ptr(normal), PrecioOferta: ptr(offer)})
			want := int(math.Round((1 - offer/normal) * 100))
			if !got.HasDiscount || got.DiscountPercentage == nil {
				t.Fatalf("normal=%v offer=%v: expected discount", normal, offer)
			}
			if diff := *got.DiscountPercentage - want; diff < -1 || diff > 1 {
				t.Fatalf("normal=%v offer=%v: pct %d too far from %d", normal, offer, *got.DiscountPercentage, want)
			}
		}
	}
}

func TestResolveIgnoresIneligibleOffers(t *testing.T) {
	cases := []Fields{
		{PrecioNormal: ptr(1000)},
		{PrecioNormal: ptr(1000), PrecioOferta: ptr(0)},
		{PrecioNormal: ptr(1000), PrecioOferta: ptr(-5)},
		{PrecioNormal: ptr(1000), PrecioOferta: ptr(1000)},
		{PrecioNormal: ptr(1000), PrecioOferta: ptr(1500)},
		{PrecioNormal: ptr(1000), PrecioOferta: ptr(math.NaN())},
		{PrecioNormal: ptr(1000), OfferPrice: ptr(math.Inf(-1))},
	}
	for i, f := range cases {
		got := Resolve(f)
		if got.HasDiscount || got.Final != got.Original || got.DiscountPercentage != nil {
			t.Fatalf("case %d: expected no discount, got %+v", i, got)
		}
	}
}

func TestResolveDegradesToZero(t *testing.T) {
	got := Resolve(Fields{})
	if got.Original != 0 || got.Final != 0 || got.HasDiscount {
		t.Fatalf("expected zero price, got %+v", got)
	}
	got = Resolve(Fields{OfferPrice: ptr(10)})
	if got.HasDiscount {
		t.Fatalf("offer above a zero original is never a discount: %+v", got)
	}
}

func TestFinalPesos(t *testing.T) {
	offer := int64(8990)
	if got := FinalPesos(9990, &offer); got != 8990 {
		t.Fatalf("expected offer price, got %d", got)
	}
	if got := FinalPesos(9990, nil); got != 9990 {
		t.Fatalf("expected normal price, got %d", got)
	}
}
