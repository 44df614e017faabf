package util

import (
	"math"
	"testing"
	"time"
)

func TestParseDateISO(t *testing.T) {
	got, ok := ParseDate("2024-10-08")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2024-10-08" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateSocrataTimestamp(t *testing.T) {
	got, ok := ParseDate("2024-10-08T00:00:00.000")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateTruncatesClock(t *testing.T) {
	got, ok := ParseDate("2024-10-08T15:04:05Z")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 0 || FormatDate(got) != "2024-10-08" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateCompactAndUS(t *testing.T) {
	for _, s := range []string{"20241008", "10/08/2024"} {
		got, ok := ParseDate(s)
		if !ok || FormatDate(got) != "2024-10-08" {
			t.Fatalf("%s: unexpected %v %v", s, got, ok)
		}
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if got := ParseDateDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if got := ParseDateDefault("yesterday", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseNumber(t *testing.T) {
	if v := ParseNumber(" 1,234 "); v != 1234 {
		t.Fatalf("unexpected %v", v)
	}
	if v := ParseNumber("-12.5"); v != -12.5 {
		t.Fatalf("unexpected %v", v)
	}
	for _, s := range []string{"", "n/a", "NaN", "null", "1e999"} {
		if v := ParseNumber(s); !math.IsNaN(v) {
			t.Fatalf("%q: expected NaN, got %v", s, v)
		}
	}
}
