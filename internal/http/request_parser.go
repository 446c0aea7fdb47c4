package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"buste/internal/core"
)

const (
	// OwnerHeader scopes every request to one owner's ledger.
	OwnerHeader = "X-Owner-ID"

	maxBodyBytes = 1 << 20 // 1 MiB
)

var errMissingOwner = errors.New("missing " + OwnerHeader + " header")

// OwnerID extracts the owner scope from the request headers.
func OwnerID(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		return "", errMissingOwner
	}
	return owner, nil
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields
// and oversized bodies.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// ParseAmount converts a decimal amount string ("25.00", "1.234,56") into
// money.
func ParseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.FromCents(cents), nil
}

// ParseDate parses a YYYY-MM-DD date; empty strings mean now.
func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseOptionalAmount parses an amount that may be absent.
func ParseOptionalAmount(s string) (*core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	m, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
