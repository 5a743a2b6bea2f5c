package geolite

import (
	"os"
	"path/filepath"
	"testing"

	"proxywarden/internal/domain"
)

func TestNilCountryLookupResolvesNothing(t *testing.T) {
	var lookup *CountryLookup

	if got := lookup.Country("1.1.1.1:80"); got != "N/A" {
		t.Fatalf("Country on nil lookup = %q, want N/A", got)
	}

	rec := domain.ValidationRecord{Proxy: "1.1.1.1:80"}
	lookup.Enrich(&rec)
	if rec.Country != "" {
		t.Fatalf("Enrich on nil lookup set country %q", rec.Country)
	}

	if err := lookup.Close(); err != nil {
		t.Fatalf("Close on nil lookup returned %v", err)
	}
}

func TestCountryLookupWithoutReader(t *testing.T) {
	lookup := &CountryLookup{}

	if got := lookup.Country("not-an-ip"); got != "N/A" {
		t.Fatalf("Country(not-an-ip) = %q, want N/A", got)
	}
	if got := lookup.Country("8.8.8.8:53"); got != "N/A" {
		t.Fatalf("Country without reader = %q, want N/A", got)
	}
}

func TestOpenCountryLookupErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := OpenCountryLookup(filepath.Join(dir, "missing.mmdb")); err == nil {
		t.Fatal("expected error for missing database file")
	}

	corrupt := filepath.Join(dir, "corrupt.mmdb")
	if err := os.WriteFile(corrupt, []byte("not a maxmind database"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := OpenCountryLookup(corrupt); err == nil {
		t.Fatal("expected error for corrupt database file")
	}
}

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"1.2.3.4:8080": "1.2.3.4",
		"1.2.3.4":      "1.2.3.4",
		"":             "",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Fatalf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
