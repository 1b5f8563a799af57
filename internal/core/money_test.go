package core

import (
	"encoding/json"
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
		{"500", 50000, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1,5", 150, true},
		{".5", 50, true},
		{"1.999", 200, true},
		{"1,000", 0, false},
		{"1,234.56", 0, false},
		{"1,2,3", 0, false},
		{"+1", 0, false},
		{".", 0, false},
		{"1.٣", 0, false},
		{"1.５", 0, false},
		{"٣", 0, false},
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

func TestMoneyFromFloat(t *testing.T) {
	m, err := MoneyFromFloat(12.345)
	if err != nil || m.Cents != 1235 {
		t.Fatalf("expected 1235 cents, got %d (err=%v)", m.Cents, err)
	}
	if _, err := MoneyFromFloat(-0.5); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 50000})
	if err != nil || string(b) != "500" {
		t.Fatalf("unexpected json %s (err=%v)", b, err)
	}
	var m Money
	if err := json.Unmarshal([]byte("19.99"), &m); err != nil || m.Cents != 1999 {
		t.Fatalf("unexpected money %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for string amount")
	}
}
