package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// month of now as defaults. Malformed numbers are reported, not ignored.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return params, &core.ValidationError{Field: "year", Err: err}
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return params, &core.ValidationError{Field: "month", Err: err}
		}
		params.Month = m
	}
	return params, nil
}

// parseJSON decodes a size-limited request body into T, rejecting unknown
// fields and trailing data.
func parseJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, errors.New("empty request body")
		}
		return v, err
	}
	if dec.More() {
		return v, errors.New("unexpected data after JSON body")
	}
	return v, nil
}

// amountField is a positive amount in currency units. It accepts a JSON
// number or a string using either decimal separator ("12.34", "12,34").
type amountField struct {
	core.Money
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	a.Cents = cents
	return nil
}

// optionalDate parses s as YYYY-MM-DD; an empty string yields the zero date.
func optionalDate(field, s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Err: fmt.Errorf("expected YYYY-MM-DD: %w", err)}
	}
	return d, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
