package supplier

import (
	"strings"
	"testing"
)

func TestGenerateDrawsFromPools(t *testing.T) {
	gen := NewFingerprintGenerator(1)

	for i := 0; i < 20; i++ {
		fp := gen.Generate()
		if !contains(userAgentPool, fp.UserAgent) {
			t.Fatalf("user agent %q not from pool", fp.UserAgent)
		}
		if !contains(localePool, fp.Locale) {
			t.Fatalf("locale %q not from pool", fp.Locale)
		}
		if !contains(timezonePool, fp.Timezone) {
			t.Fatalf("timezone %q not from pool", fp.Timezone)
		}
		if fp.Viewport.Width == 0 || fp.Viewport.Height == 0 {
			t.Fatal("viewport not populated")
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	gen := NewFingerprintGenerator(42)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		fp := gen.Generate()
		seen[fp.UserAgent] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatal("expected user agents to vary across draws")
	}
}

func TestAcceptLanguage(t *testing.T) {
	fp := Fingerprint{Locale: "en-US"}
	if got := fp.AcceptLanguage(); got != "en-US,en;q=0.9" {
		t.Fatalf("unexpected accept-language %q", got)
	}

	fp.Locale = "de-DE"
	got := fp.AcceptLanguage()
	if !strings.HasPrefix(got, "de-DE,de;q=0.9") {
		t.Fatalf("unexpected accept-language %q", got)
	}
}

func contains(pool []string, value string) bool {
	for _, candidate := range pool {
		if candidate == value {
			return true
		}
	}
	return false
}
