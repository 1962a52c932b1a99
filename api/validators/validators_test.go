package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
)

type nested struct {
	Region string `json:"region" validate:"required"`
}

type sampleBody struct {
	Name    string `json:"name" validate:"required,min=3"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address nested `json:"address"`
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ab","email":"nope","address":{}}`))
	var body sampleBody
	err := DecodeJSONBody(httptest.NewRecorder(), r, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(pkgerrors.Fields)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	want := pkgerrors.Fields{
		"name":           "must be at least 3",
		"email":          "must be a valid email",
		"address.region": "is required",
	}
	for field, msg := range want {
		if details[field] != msg {
			t.Fatalf("field %s: expected %q, got %q (all: %v)", field, msg, details[field], details)
		}
	}
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"name":"abc","extra":1}`,
		"trailing":      `{"name":"abc"}{"name":"def"}`,
		"empty":         ``,
		"wrong type":    `{"name":5}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
			var body sampleBody
			if err := DecodeJSONBody(httptest.NewRecorder(), r, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"name":"` + strings.Repeat("a", MaxJSONBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var body sampleBody
	err := DecodeJSONBody(httptest.NewRecorder(), r, &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected too large error, got %v", err)
	}
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&subtotal=5000&dry_run=true&tag=a,b&tag=%20c%20&bad=x", nil)

	if v, err := ParseQueryInt(r, "page", 1, 1, 100); err != nil || v != 3 {
		t.Fatalf("page: %d %v", v, err)
	}
	if _, err := ParseQueryInt(r, "bad", 1, 1, 100); err == nil {
		t.Fatal("expected numeric error")
	}
	if v, err := ParseQueryInt64(r, "subtotal", 0); err != nil || v != 5000 {
		t.Fatalf("subtotal: %d %v", v, err)
	}
	if v, err := ParseQueryBool(r, "dry_run"); err != nil || !v {
		t.Fatalf("dry_run: %v %v", v, err)
	}
	if _, err := ParseQueryBool(r, "bad"); err == nil {
		t.Fatal("expected bool error")
	}
	tags := ParseQueryList(r, "tag", 32)
	if len(tags) != 3 || tags[2] != "c" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if _, err := ParseUUIDParam("nope", "id"); err == nil {
		t.Fatal("expected uuid error")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Bater\x00ía 12V  ", 0); got != "Batería 12V" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("ñandú", 3); got != "ñan" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
