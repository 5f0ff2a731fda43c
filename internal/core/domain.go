package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-day format used at every boundary.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// YearMonth identifies a calendar month.
	YearMonth struct {
		Year  int
		Month int // 1-12
	}

	// Totals holds the four numeric fields shared by entries, product rows and rollups.
	Totals struct {
		Investment Money
		Leads      int64
		Sales      int64
		Revenue    Money
	}

	Client struct {
		ID            int64
		Name          string
		MonthlyBudget Money
		Active        bool
		CreatedAt     time.Time
	}

	// Product is a funnel or sub-campaign of a client.
	Product struct {
		ID        int64
		ClientID  int64
		Name      string
		Active    bool
		CreatedAt time.Time
	}

	// Entry is one client's recorded metrics for one calendar day.
	Entry struct {
		ID        int64
		ClientID  int64
		Date      Date
		Totals    Totals
		Note      string
		CreatedAt time.Time
	}

	// ProductMetric is the per-product breakdown row of an entry.
	ProductMetric struct {
		EntryID     int64
		ProductID   int64
		ProductName string
		Totals
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("malformed date %q, want YYYY-MM-DD", s)}
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: "date", Reason: "date cannot be zero"}
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// YearMonth returns the calendar month containing the date.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: int(d.Month())}
}

func (ym YearMonth) Validate() error {
	if ym.Month < 1 || ym.Month > 12 {
		return &ValidationError{Field: "month", Reason: fmt.Sprintf("month %d out of range 1-12", ym.Month)}
	}
	if ym.Year < 1 || ym.Year > 9999 {
		return &ValidationError{Field: "year", Reason: fmt.Sprintf("year %d out of range", ym.Year)}
	}
	return nil
}

// Prev returns the previous calendar month, wrapping January to December.
func (ym YearMonth) Prev() YearMonth {
	if ym.Month <= 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

// Prefix returns the YYYY-MM prefix shared by every date of the month.
func (ym YearMonth) Prefix() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Contains reports whether d falls within the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && int(d.Month()) == ym.Month
}

func (ym YearMonth) String() string {
	return ym.Prefix()
}

// IsEmpty reports whether every field is zero.
func (t Totals) IsEmpty() bool {
	return t.Investment.Cents == 0 && t.Leads == 0 && t.Sales == 0 && t.Revenue.Cents == 0
}

// Add returns the field-by-field sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Investment: Money{Cents: t.Investment.Cents + o.Investment.Cents},
		Leads:      t.Leads + o.Leads,
		Sales:      t.Sales + o.Sales,
		Revenue:    Money{Cents: t.Revenue.Cents + o.Revenue.Cents},
	}
}

func (t Totals) Validate() error {
	if err := t.Investment.Validate(); err != nil {
		return &ValidationError{Field: "investment", Reason: err.Error()}
	}
	if err := t.Revenue.Validate(); err != nil {
		return &ValidationError{Field: "revenue", Reason: err.Error()}
	}
	if err := validateCount("leads", t.Leads); err != nil {
		return err
	}
	return validateCount("sales", t.Sales)
}

func validateCount(field string, n int64) error {
	if n < 0 {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if n > MaxCents {
		return &ValidationError{Field: field, Reason: "too large"}
	}
	return nil
}

// CheckedAdd is Add for validated totals. It fails with a ValidationError
// when any field of the sum would exceed MaxCents.
func (t Totals) CheckedAdd(o Totals) (Totals, error) {
	fields := []struct {
		name string
		a, b int64
	}{
		{"investment", t.Investment.Cents, o.Investment.Cents},
		{"leads", t.Leads, o.Leads},
		{"sales", t.Sales, o.Sales},
		{"revenue", t.Revenue.Cents, o.Revenue.Cents},
	}
	for _, f := range fields {
		if f.a > MaxCents-f.b {
			return Totals{}, &ValidationError{Field: f.name, Reason: "sum too large"}
		}
	}
	return t.Add(o), nil
}

// NormalizeName trims a client or product name and rejects blanks.
func NormalizeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: field, Reason: "cannot be empty"}
	}
	if len(name) > 200 {
		return "", &ValidationError{Field: field, Reason: "too long (max 200 characters)"}
	}
	return name, nil
}
