package phone

import (
	"errors"
	"testing"
)

func TestNormalizeInternational(t *testing.T) {
	got, err := Normalize("+1 415 555 2671", "")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "+14155552671" {
		t.Fatalf("expected +14155552671, got %s", got)
	}
}

func TestNormalizeWithRegionHint(t *testing.T) {
	got, err := Normalize("(415) 555-2671", "US")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "+14155552671" {
		t.Fatalf("expected +14155552671, got %s", got)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	first, err := Normalize("06 12 34 56 78", "FR")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Normalize("06 12 34 56 78", "FR")
		if err != nil {
			t.Fatalf("normalize run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("non-deterministic result: %s vs %s", again, first)
		}
	}
}

func TestNormalizeInvalid(t *testing.T) {
	cases := []struct {
		raw    string
		region string
	}{
		{"not a number", "US"},
		{"", "US"},
		{"+1999", ""},
		{"123", "US"},
		{"(415) 555-2671", ""}, // national format without a region hint
	}
	for _, tc := range cases {
		_, err := Normalize(tc.raw, tc.region)
		if err == nil {
			t.Fatalf("expected error for %q (region %q)", tc.raw, tc.region)
		}
		var ipe *InvalidNumberError
		if !errors.As(err, &ipe) {
			t.Fatalf("expected InvalidNumberError for %q, got %T", tc.raw, err)
		}
	}
}
