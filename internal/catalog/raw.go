package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// RawProduct is an upstream product record after strict decoding. Upstream
// uses Spanish and English aliases for most fields.
type RawProduct struct {
	ID           string   `json:"id" validate:"required"`
	Name         string   `json:"nombre"`
	Description  string   `json:"descripcion"`
	Precio       *float64 `json:"precio" validate:"omitempty,gte=0"`
	PrecioNormal *float64 `json:"precioNormal" validate:"omitempty,gte=0"`
	PrecioOferta *float64 `json:"precioOferta"`
	OfferPrice   *float64 `json:"offerPrice"`
	Stock        int      `json:"stock" validate:"gte=0"`
	Category     string   `json:"categoria"`
	Tags         []string `json:"tags"`
	Images       []string `json:"images"`
	ImageURL     string   `json:"imageUrl"`
	Imagen       string   `json:"imagen"`
	IsOffer      bool     `json:"isOffer"`
	Featured     bool     `json:"destacado"`
	Active       *bool    `json:"activo"`
}

// DecodeError names the field whose JSON shape did not match.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func decodeFailure(field, reason string) error {
	de := &DecodeError{Field: field, Reason: reason}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, de, "invalid product payload").
		WithDetails(pkgerrors.Fields{field: reason})
}

var rawValidator = newRawValidator()

func newRawValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (p *RawProduct) set(key string, raw json.RawMessage) (err error) {
	switch key {
	case "id":
		p.ID, err = decodeID(raw)
	case "name", "nombre":
		p.Name, err = decodeString(raw)
	case "description", "descripcion":
		p.Description, err = decodeString(raw)
	case "price", "precio":
		p.Precio, err = decodeNumber(raw)
	case "precioNormal":
		p.PrecioNormal, err = decodeNumber(raw)
	case "precioOferta":
		p.PrecioOferta, err = decodeNumber(raw)
	case "offerPrice":
		p.OfferPrice, err = decodeNumber(raw)
	case "stock":
		p.Stock, err = decodeInt(raw)
	case "category", "categoria":
		p.Category, err = decodeString(raw)
	case "tags":
		p.Tags, err = decodeTags(raw)
	case "images":
		p.Images, err = decodeStrings(raw)
	case "imageUrl":
		p.ImageURL, err = decodeString(raw)
	case "imagen":
		p.Imagen, err = decodeString(raw)
	case "isOffer", "oferta":
		var b bool
		b, err = decodeBool(raw)
		p.IsOffer = p.IsOffer || b
	case "featured", "destacado":
		var b bool
		b, err = decodeBool(raw)
		p.Featured = p.Featured || b
	case "active", "activo":
		p.Active, err = decodeOptionalBool(raw)
	}
	return err
}

// fieldOrder applies English aliases first so the Spanish field wins when both are sent.
var fieldOrder = []string{
	"id",
	"name", "nombre",
	"description", "descripcion",
	"price", "precio", "precioNormal", "precioOferta", "offerPrice",
	"stock",
	"category", "categoria",
	"tags", "images", "imageUrl", "imagen",
	"isOffer", "oferta", "featured", "destacado",
	"active", "activo",
}

// DecodeRawProduct parses one upstream product. A field present with the
// wrong JSON type fails with a VALIDATION_ERROR wrapping *DecodeError.
// Unknown fields are ignored; null reads as absent.
func DecodeRawProduct(data []byte) (RawProduct, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return RawProduct{}, decodeFailure("$", "expected a JSON object")
	}

	var product RawProduct
	for _, key := range fieldOrder {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		if err := product.set(key, raw); err != nil {
			return RawProduct{}, decodeFailure(key, err.Error())
		}
	}

	if err := rawValidator.Struct(product); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return RawProduct{}, decodeFailure(verrs[0].Field(), "failed "+verrs[0].Tag())
		}
		return RawProduct{}, decodeFailure("$", err.Error())
	}
	return product, nil
}

// DecodeRawProducts accepts a bare array or an object wrapping the array in
// "data", "products" or "productos". Records that fail to decode are skipped
// and returned as rejected, with their index in the field path. The payload
// only fails as a whole when its envelope is unreadable or every record is
// rejected.
func DecodeRawProducts(data []byte) ([]RawProduct, []*DecodeError, error) {
	items, err := unwrapList(data)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      = make([]RawProduct, 0, len(items))
		rejected []*DecodeError
	)
	for i, item := range items {
		product, err := DecodeRawProduct(item)
		if err != nil {
			var de *DecodeError
			if !errors.As(err, &de) {
				return nil, nil, err
			}
			rejected = append(rejected, &DecodeError{Field: fmt.Sprintf("[%d].%s", i, de.Field), Reason: de.Reason})
			continue
		}
		out = append(out, product)
	}
	if len(out) == 0 && len(rejected) > 0 {
		return nil, rejected, decodeFailure(rejected[0].Field, rejected[0].Reason)
	}
	return out, rejected, nil
}

func unwrapList(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, decodeFailure("$", "malformed product array")
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, decodeFailure("$", "expected an array or an object")
	}
	for _, key := range []string{"data", "products", "productos"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, decodeFailure(key, "expected an array")
		}
		return items, nil
	}
	return nil, decodeFailure("$", "no product list found")
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string or number")
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string")
	}
	return strings.TrimSpace(s), nil
}

// decodeNumber accepts JSON numbers and numeric strings.
func decodeNumber(raw json.RawMessage) (*float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		parsed, perr := strconv.ParseFloat(s, 64)
		if perr == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("expected number")
}

func decodeInt(raw json.RawMessage) (int, error) {
	f, err := decodeNumber(raw)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	if *f != math.Trunc(*f) {
		return 0, fmt.Errorf("expected integer")
	}
	return int(*f), nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected array of strings")
	}
	return items, nil
}

// decodeTags accepts an array of strings or a comma-separated string.
func decodeTags(raw json.RawMessage) ([]string, error) {
	if items, err := decodeStrings(raw); err == nil {
		return items, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expected array of strings or comma separated string")
	}
	return strings.Split(s, ","), nil
}

func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("expected boolean")
	}
	return b, nil
}

func decodeOptionalBool(raw json.RawMessage) (*bool, error) {
	b, err := decodeBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
