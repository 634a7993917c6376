package alpaca

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents a non-2xx API response.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// IsNotFractionable reports whether an order was rejected because the
// asset does not support fractional or notional orders. Callers retry
// such orders with whole share quantities.
func IsNotFractionable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity && apiErr.StatusCode != http.StatusForbidden {
		return false
	}
	return strings.Contains(strings.ToLower(string(apiErr.Body)), "not fractionable")
}

// IsNotFound reports whether the API returned 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
