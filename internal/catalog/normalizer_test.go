package catalog

import (
	"reflect"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestCanonicalCategory(t *testing.T) {
	cases := map[string]struct {
		want   string
		mapped bool
	}{
		"bateria":     {"Baterías", true},
		"BATERÍAS":    {"Baterías", true},
		" Suspension": {"Suspensión", true},
		"iluminación": {"Iluminación", true},
		"aceites":     {"Lubricantes", true},
		"otros":       {"Otros", true},
		"":            {"", true},
		"Neumáticos":  {"Neumáticos", false},
	}
	for in, tc := range cases {
		got, mapped := CanonicalCategory(in)
		if got != tc.want || mapped != tc.mapped {
			t.Fatalf("CanonicalCategory(%q) = %q,%v want %q,%v", in, got, mapped, tc.want, tc.mapped)
		}
	}
}

func TestNormalize(t *testing.T) {
	var unmapped []string
	n := NewNormalizer(func(productID, category string) {
		unmapped = append(unmapped, productID+":"+category)
	})

	p := n.Normalize(RawProduct{
		ID:           "F-1",
		Name:         "Pastillas de freno",
		PrecioNormal: f64(20000),
		Precio:       f64(25000),
		OfferPrice:   f64(15000),
		Stock:        4,
		Category:     "frenos",
		Tags:         []string{" Frenos", "CERAMICA", "frenos", ""},
		Images:       []string{"", "  "},
		ImageURL:     "https://img/a.jpg",
		Imagen:       "https://img/b.jpg",
	}, 7)

	if p.Category != "Frenos" {
		t.Fatalf("expected canonical category, got %q", p.Category)
	}
	if !reflect.DeepEqual(p.Tags, []string{"frenos", "ceramica"}) {
		t.Fatalf("unexpected tags %v", p.Tags)
	}
	if !reflect.DeepEqual(p.Images, []string{"https://img/a.jpg"}) {
		t.Fatalf("expected imageUrl fallback, got %v", p.Images)
	}
	if !p.IsOffer || !p.Display.HasDiscount || p.Display.Original != 20000 || p.Display.Final != 15000 {
		t.Fatalf("unexpected pricing %+v offer=%v", p.Display, p.IsOffer)
	}
	if !p.IsActive || p.Position != 7 {
		t.Fatalf("unexpected active/position %+v", p)
	}
	if len(unmapped) != 0 {
		t.Fatalf("unexpected unmapped report %v", unmapped)
	}

	q := n.Normalize(RawProduct{ID: "X-9", Category: "Neumáticos", Imagen: "https://img/c.jpg", PrecioNormal: f64(1000), PrecioOferta: f64(1000)}, 0)
	if q.Category != "Neumáticos" {
		t.Fatalf("expected pass-through category, got %q", q.Category)
	}
	if q.IsOffer {
		t.Fatal("offer equal to original must not be an offer")
	}
	if !reflect.DeepEqual(q.Images, []string{"https://img/c.jpg"}) {
		t.Fatalf("expected imagen fallback, got %v", q.Images)
	}
	if !reflect.DeepEqual(unmapped, []string{"X-9:Neumáticos"}) {
		t.Fatalf("expected unmapped hook call, got %v", unmapped)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	inactive := false
	p := NewNormalizer(nil).Normalize(RawProduct{ID: "1", IsOffer: true, Active: &inactive}, 0)
	if p.Display.Original != 0 || p.Display.Final != 0 {
		t.Fatalf("expected zero price, got %+v", p.Display)
	}
	if !p.IsOffer {
		t.Fatal("explicit offer flag must be kept")
	}
	if p.IsActive {
		t.Fatal("expected explicit inactive flag")
	}
	if p.Tags == nil || p.Images == nil {
		t.Fatal("expected empty, non-nil slices")
	}
}

func TestNormalizeAllAssignsPositions(t *testing.T) {
	out := NewNormalizer(nil).NormalizeAll([]RawProduct{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	for i, p := range out {
		if p.Position != i {
			t.Fatalf("expected position %d, got %d", i, p.Position)
		}
	}
}
