package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"costindex/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errMissingParam = errors.New("missing required parameter")

// basketRequest is the body accepted by POST /api/baskets.
type basketRequest struct {
	Name  string            `json:"name"`
	Items []core.BasketItem `json:"items"`
}

// ParseBasketRequest decodes a basket from a JSON body. Unknown fields and
// trailing data are rejected. The basket is normalised but not validated.
func ParseBasketRequest(r *http.Request) (core.Basket, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var req basketRequest
	if err := dec.Decode(&req); err != nil {
		return core.Basket{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return core.Basket{}, errors.New("invalid JSON body: trailing data")
	}

	return core.Basket{Name: req.Name, Items: req.Items}.Normalize(), nil
}

// RequiredQuery returns a trimmed query parameter or errMissingParam.
func RequiredQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", errMissingParam, name)
	}
	return v, nil
}
