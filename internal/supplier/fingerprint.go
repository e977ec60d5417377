package supplier

import (
	"math/rand"
	"sync"
)

// FingerprintGenerator draws a plausible client identity per scrape session
// from small curated pools. Nothing is persisted between draws.
type FingerprintGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

var viewportPool = []Viewport{
	{Width: 1920, Height: 1080},
	{Width: 1536, Height: 864},
	{Width: 1440, Height: 900},
	{Width: 1366, Height: 768},
	{Width: 2560, Height: 1440},
}

var localePool = []string{
	"en-US",
	"en-GB",
	"de-DE",
	"fr-FR",
	"es-ES",
}

var timezonePool = []string{
	"America/New_York",
	"America/Chicago",
	"America/Los_Angeles",
	"Europe/London",
	"Europe/Berlin",
}

// NewFingerprintGenerator seeds a generator. A seed of 0 uses a random source.
func NewFingerprintGenerator(seed int64) *FingerprintGenerator {
	src := rand.NewSource(seed)
	if seed == 0 {
		src = rand.NewSource(rand.Int63())
	}
	return &FingerprintGenerator{rng: rand.New(src)}
}

// Generate draws a fresh fingerprint.
func (f *FingerprintGenerator) Generate() Fingerprint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Fingerprint{
		UserAgent: userAgentPool[f.rng.Intn(len(userAgentPool))],
		Viewport:  viewportPool[f.rng.Intn(len(viewportPool))],
		Locale:    localePool[f.rng.Intn(len(localePool))],
		Timezone:  timezonePool[f.rng.Intn(len(timezonePool))],
	}
}

// AcceptLanguage renders the fingerprint's locale as an Accept-Language value.
func (fp Fingerprint) AcceptLanguage() string {
	if fp.Locale == "en-US" {
		return "en-US,en;q=0.9"
	}
	return fp.Locale + "," + fp.Locale[:2] + ";q=0.9,en;q=0.8"
}
