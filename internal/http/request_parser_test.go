package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseBasketRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/baskets",
		strings.NewReader(`{"name":"  Mine ","items":[{"category":" Food","weight":1,"seriesId":"CPIUFDSL "}]}`))

	b, err := ParseBasketRequest(req)
	if err != nil {
		t.Fatalf("ParseBasketRequest: %v", err)
	}
	if b.Name != "Mine" || len(b.Items) != 1 || b.Items[0].Category != "Food" || b.Items[0].SeriesID != "CPIUFDSL" {
		t.Fatalf("unexpected basket %+v", b)
	}
}

func TestParseBasketRequestErrors(t *testing.T) {
	bodies := map[string]string{
		"empty":         ``,
		"not an object": `[1,2]`,
		"trailing":      `{"name":"a","items":[]} {"name":"b"}`,
		"wrong type":    `{"name":"a","items":[{"weight":"heavy"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/baskets", strings.NewReader(body))
			if _, err := ParseBasketRequest(req); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestRequiredQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/compute?basketId=%20abc%20", nil)
	if v, err := RequiredQuery(req, "basketId"); err != nil || v != "abc" {
		t.Fatalf("RequiredQuery = %q, %v", v, err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/compute?basketId=", nil)
	if _, err := RequiredQuery(req, "basketId"); !errors.Is(err, errMissingParam) {
		t.Fatalf("expected errMissingParam, got %v", err)
	}
}
