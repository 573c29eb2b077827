package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"250.0", 25000, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	m := Money{Cents: 25000}
	if m.String() != "250.00" {
		t.Fatalf("unexpected string %q", m.String())
	}
	if m.Rupees() != "₹250.00" {
		t.Fatalf("unexpected rupees %q", m.Rupees())
	}
	total := Sum([]Expense{{Amount: Money{Cents: 150}}, {Amount: Money{Cents: 5}}})
	if total.Cents != 155 {
		t.Fatalf("expected 155, got %d", total.Cents)
	}
}
