package ingest

import (
	"strings"
	"testing"
)

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "Lowercases host and drops fragment",
			in:   "https://WWW.Immobiliare.IT/annunci/123/#foto",
			want: "https://www.immobiliare.it/annunci/123/",
		},
		{
			name: "Strips tracking parameters",
			in:   "https://www.immobiliare.it/annunci/123/?utm_source=mail&gclid=x&page=2",
			want: "https://www.immobiliare.it/annunci/123/?page=2",
		},
		{
			name: "Already canonical URL is unchanged",
			in:   "https://www.immobiliare.it/annunci/123/",
			want: "https://www.immobiliare.it/annunci/123/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalizeURL(tt.in); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPropertyID_StableForSameURL(t *testing.T) {
	a := PropertyID("https://www.immobiliare.it/annunci/1/")
	b := PropertyID(CanonicalizeURL("https://WWW.immobiliare.it/annunci/1/#top"))
	if a != b {
		t.Fatalf("expected identical ids, got %s and %s", a, b)
	}
	if a == PropertyID("https://www.immobiliare.it/annunci/2/") {
		t.Fatal("expected different ids for different listings")
	}
}

func TestResolveURL(t *testing.T) {
	base := "https://www.immobiliare.it"
	if got := resolveURL(base, "/annunci/42/"); got != "https://www.immobiliare.it/annunci/42/" {
		t.Errorf("unexpected relative resolution: %s", got)
	}
	if got := resolveURL(base, "https://other.example/x"); got != "https://other.example/x" {
		t.Errorf("absolute URL should be kept, got %s", got)
	}
}

func TestTruncateText(t *testing.T) {
	long := strings.Repeat("à", 600)
	got := TruncateText(long, 500)
	if n := len([]rune(got)); n != 500 {
		t.Fatalf("expected 500 runes, got %d", n)
	}
	if TruncateText("short", 500) != "short" {
		t.Fatal("short text must be unchanged")
	}
}

func TestSanitizeText(t *testing.T) {
	got := sanitizeText("  Villa <b>con</b>   piscina &amp; vista mare ")
	if got != "Villa con piscina & vista mare" {
		t.Fatalf("unexpected sanitized text: %q", got)
	}
}
