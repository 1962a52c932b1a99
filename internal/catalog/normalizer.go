package catalog

import (
	"strings"

	"github.com/angelmondragon/autoparts-backend/internal/pricing"
)

// Product is the single internal product shape the storefront reads.
type Product struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Price       pricing.Fields       `json:"-"`
	Display     pricing.DisplayPrice `json:"price"`
	Stock       int                  `json:"stock"`
	Category    string               `json:"category"`
	Tags        []string             `json:"tags"`
	Images      []string             `json:"images"`
	IsOffer     bool                 `json:"is_offer"`
	IsFeatured  bool                 `json:"is_featured"`
	IsActive    bool                 `json:"is_active"`
	Position    int                  `json:"position"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// UnmappedHook is told about every product whose category passed through
// the alias table unchanged.
type UnmappedHook func(productID, category string)

// Normalizer maps RawProduct records onto Product. It never fails.
type Normalizer struct {
	onUnmapped UnmappedHook
}

// NewNormalizer builds a normalizer; hook may be nil.
func NewNormalizer(hook UnmappedHook) *Normalizer {
	return &Normalizer{onUnmapped: hook}
}

// Normalize converts raw. position is the record's insertion index and drives
// the featured and recent sort orders.
func (n *Normalizer) Normalize(raw RawProduct, position int) Product {
	fields := pricing.Fields{
		Precio:       raw.Precio,
		PrecioNormal: raw.PrecioNormal,
		PrecioOferta: raw.PrecioOferta,
		OfferPrice:   raw.OfferPrice,
	}
	display := pricing.Resolve(fields)

	category, mapped := CanonicalCategory(raw.Category)
	if !mapped && n != nil && n.onUnmapped != nil {
		n.onUnmapped(raw.ID, category)
	}

	active := true
	if raw.Active != nil {
		active = *raw.Active
	}

	return Product{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		Price:       fields,
		Display:     display,
		Stock:       raw.Stock,
		Category:    category,
		Tags:        NormalizeTags(raw.Tags),
		Images:      ResolveImages(raw),
		IsOffer:     raw.IsOffer || pricing.OfferEligible(fields.Offer(), fields.Original()),
		IsFeatured:  raw.Featured,
		IsActive:    active,
		Position:    position,
	}
}

// NormalizeAll normalizes records in order, using the slice index as position.
func (n *Normalizer) NormalizeAll(raws []RawProduct) []Product {
	out := make([]Product, 0, len(raws))
	for i, raw := range raws {
		out = append(out, n.Normalize(raw, i))
	}
	return out
}

// NormalizeTags trims and lowercases tags, dropping blanks and repeats while
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		value := strings.ToLower(strings.TrimSpace(tag))
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// ResolveImages picks images[] when it has any usable entry, else imageUrl,
// else imagen.
func ResolveImages(raw RawProduct) []string {
	images := make([]string, 0, len(raw.Images))
	for _, img := range raw.Images {
		if trimmed := strings.TrimSpace(img); trimmed != "" {
			images = append(images, trimmed)
		}
	}
	if len(images) > 0 {
		return images
	}
	for _, candidate := range []string{raw.ImageURL, raw.Imagen} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return []string{trimmed}
		}
	}
	return []string{}
}
