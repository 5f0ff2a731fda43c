package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		15000:  "150.00",
		123456: "1234.56",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: got %s, want %s", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 150.5, "b": "12,34", "c": null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Cents != 15050 || v.B.Cents != 1234 || v.C.Cents != 0 {
		t.Fatalf("got %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a": -3}`), &v); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	out, err := json.Marshal(Money{Cents: 80000})
	if err != nil || string(out) != "800.00" {
		t.Fatalf("marshal got %s, %v", out, err)
	}
}

func TestMoneyFromFloat(t *testing.T) {
	m, err := MoneyFromFloat(19.999)
	if err != nil || m.Cents != 2000 {
		t.Fatalf("got %+v, %v", m, err)
	}
	if _, err := MoneyFromFloat(-0.01); err == nil {
		t.Fatalf("expected error for negative")
	}
	if _, err := MoneyFromFloat(1e17); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestMoneyValidateBounds(t *testing.T) {
	if err := (Money{MaxCents}).Validate(); err != nil {
		t.Fatalf("max amount should be valid: %v", err)
	}
	if err := (Money{MaxCents + 1}).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("got %v, want ErrAmountTooLarge", err)
	}
	if err := (Money{-1}).Validate(); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("got %v, want ErrNegativeAmount", err)
	}
}
