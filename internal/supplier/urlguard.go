package supplier

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/mkellerhals/sourcelane-backend/pkg/errors"
)

// URLGuard validates and normalizes supplier product URLs before any network
// call is made. Hosts outside the allow list, IP-literal hosts and private
// address ranges are all rejected.
type URLGuard struct {
	allowedHosts map[string]struct{}
}

// Checked in precedence order: item paths, then the productId query
// parameter, then legacy product paths.
var itemPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/item/(\d+)\.html`),
	regexp.MustCompile(`/item/(\d+)(?:/|$)`),
}

var productPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/product/(\d+)\.html`),
	regexp.MustCompile(`/product/(\d+)(?:/|$)`),
}

// NewURLGuard builds a guard for the given supplier hostnames.
func NewURLGuard(allowedHosts []string) (*URLGuard, error) {
	if len(allowedHosts) == 0 {
		return nil, fmt.Errorf("at least one allowed host is required")
	}
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		hosts[h] = struct{}{}
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("at least one allowed host is required")
	}
	return &URLGuard{allowedHosts: hosts}, nil
}

// IsValidSupplierURL reports whether raw is a safe, recognizable supplier
// product URL. This check runs before any network call.
func (g *URLGuard) IsValidSupplierURL(raw string) bool {
	return g.Validate(raw) == nil
}

// Validate returns a typed error describing why raw was rejected, or nil.
func (g *URLGuard) Validate(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.Wrap(errors.CodeInvalidSupplierURL, err, "malformed url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New(errors.CodeInvalidSupplierURL, fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New(errors.CodeInvalidSupplierURL, "missing host")
	}
	if isBlockedHost(host) {
		return errors.New(errors.CodeInvalidSupplierURL, "host resolves to a blocked address range")
	}
	if _, ok := g.allowedHosts[host]; !ok {
		return errors.New(errors.CodeInvalidSupplierURL, fmt.Sprintf("host %q is not an allowed supplier", host))
	}
	if g.ExtractProductID(raw) == "" {
		return errors.New(errors.CodeInvalidSupplierURL, "no product id in url")
	}
	return nil
}

// ExtractProductID tries the known path and query shapes in order and returns
// the first numeric match, or "".
func (g *URLGuard) ExtractProductID(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	path := parsed.Path
	for _, re := range itemPathPatterns {
		if m := re.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	if id := parsed.Query().Get("productId"); isAllDigits(id) && id != "" {
		return id
	}
	for _, re := range productPathPatterns {
		if m := re.FindStringSubmatch(path); m != nil {
			return m[1]
		}
	}
	return ""
}

// Normalize re-derives the canonical /item/{id}.html form from any accepted
// input. It fails closed: unparseable or unextractable URLs yield "".
func (g *URLGuard) Normalize(raw string) string {
	if err := g.Validate(raw); err != nil {
		return ""
	}
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	id := g.ExtractProductID(raw)
	if id == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/item/%s.html", strings.ToLower(parsed.Hostname()), id)
}

// isBlockedHost rejects IP-literal hosts outright and the obvious loopback
// hostname. Allow-listed hostnames are never IPs, so any literal is hostile.
func isBlockedHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return false
	}
	return true
}

// IsPrivateIP reports whether ip falls in a loopback, private or link-local
// range. Exposed for resolver-level checks in callers that dial directly.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
