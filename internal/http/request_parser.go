package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"traffic/internal/core"
)

// maxBodyBytes bounds request bodies; a day with every product fits easily.
const maxBodyBytes = 1 << 20

// errMalformed marks requests that could not be parsed at all.
var errMalformed = errors.New("malformed request")

// ParseMonthParams extracts year and month from query parameters, using the
// current month for any that is missing.
func ParseMonthParams(query url.Values, now time.Time) (core.YearMonth, error) {
	ym := core.YearMonth{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, fmt.Errorf("%w: year %q is not a number", errMalformed, v)
		}
		ym.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, fmt.Errorf("%w: month %q is not a number", errMalformed, v)
		}
		ym.Month = m
	}
	if err := ym.Validate(); err != nil {
		return core.YearMonth{}, err
	}
	return ym, nil
}

// ParseActiveParam reads ?active=, defaulting to true.
func ParseActiveParam(query url.Values) (bool, error) {
	v := strings.TrimSpace(query.Get("active"))
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: active %q is not a boolean", errMalformed, v)
	}
	return b, nil
}

// pathID reads a positive integer route parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q is not a valid id", errMalformed, name, raw)
	}
	return id, nil
}

func pathDate(r *http.Request) (core.Date, error) {
	return core.ParseDate(chi.URLParam(r, "date"))
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrNegativeAmount) ||
			errors.Is(err, core.ErrAmountTooLarge) {
			return &core.ValidationError{Field: "amount", Reason: err.Error()}
		}
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
