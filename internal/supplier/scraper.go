package supplier

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/metrics"
)

const maxListingBytes = 4 << 20

// ScraperParams groups dependencies for the product scraper.
type ScraperParams struct {
	Guard        *URLGuard
	Fingerprints *FingerprintGenerator
	Queue        *RequestQueue
	Logger       *logger.Logger
	Metrics      *metrics.PipelineMetrics

	SupplierName   string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Scraper fetches supplier listings and converts them into Product
// snapshots. It owns one HTTP client; callers must Close it.
type Scraper struct {
	guard        *URLGuard
	fingerprints *FingerprintGenerator
	queue        *RequestQueue
	logg         *logger.Logger
	pipeline     *metrics.PipelineMetrics

	supplierName   string
	maxRetries     uint64
	retryBaseDelay time.Duration
	client         *http.Client
}

// NewScraper builds a scraper. The HTTP client refuses to dial loopback,
// private and link-local addresses so redirects cannot re-introduce SSRF
// after the URL guard has passed.
func NewScraper(params ScraperParams) (*Scraper, error) {
	if params.Guard == nil {
		return nil, goerrors.New("url guard is required")
	}
	if params.Fingerprints == nil {
		return nil, goerrors.New("fingerprint generator is required")
	}
	if params.Queue == nil {
		return nil, goerrors.New("request queue is required")
	}
	if params.Logger == nil {
		return nil, goerrors.New("logger is required")
	}

	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := params.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivateAddr,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Scraper{
		guard:          params.Guard,
		fingerprints:   params.Fingerprints,
		queue:          params.Queue,
		logg:           params.Logger,
		pipeline:       params.Metrics,
		supplierName:   params.SupplierName,
		maxRetries:     uint64(maxRetries),
		retryBaseDelay: baseDelay,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// Scrape validates, fetches and parses one supplier listing.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Product, error) {
	if err := s.guard.Validate(rawURL); err != nil {
		return nil, err
	}
	normalized := s.guard.Normalize(rawURL)
	if normalized == "" {
		return nil, errors.New(errors.CodeInvalidSupplierURL, "url did not normalize")
	}
	productID := s.guard.ExtractProductID(normalized)

	fp := s.fingerprints.Generate()

	body, err := s.fetch(ctx, normalized, fp)
	if err != nil {
		s.pipeline.IncSupplierRequest(s.supplierName, "fetch_error")
		return nil, err
	}
	s.pipeline.IncSupplierRequest(s.supplierName, "success")

	product, err := ParseListing(body, productID)
	if err != nil {
		logCtx := s.logg.WithSupplierProductID(ctx, productID)
		s.logg.Warn(logCtx, "listing page did not parse")
		return nil, err
	}
	return product, nil
}

// fetch routes the request through the shared queue and retries transient
// failures with exponential backoff.
func (s *Scraper) fetch(ctx context.Context, url string, fp Fingerprint) ([]byte, error) {
	value, err := s.queue.Do(ctx, func(ctx context.Context) (any, error) {
		var body []byte
		retryErr := RetryWithBackoff(ctx, s.maxRetries, s.retryBaseDelay, func(ctx context.Context) error {
			fetched, fetchErr := s.fetchOnce(ctx, url, fp)
			if fetchErr != nil {
				return fetchErr
			}
			body = fetched
			return nil
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return body, nil
	})
	if err != nil {
		if errors.HasCode(err, errors.CodeSupplierFetch) {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeSupplierFetch, err, "supplier fetch failed")
	}
	return value.([]byte), nil
}

func (s *Scraper) fetchOnce(ctx context.Context, url string, fp Fingerprint) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Permanent(err)
	}
	req.Header.Set("User-Agent", fp.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", fp.AcceptLanguage())
	req.Header.Set("Viewport-Width", fmt.Sprintf("%d", fp.Viewport.Width))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("supplier responded %d", resp.StatusCode)
	default:
		return nil, Permanent(errors.New(errors.CodeSupplierFetch, fmt.Sprintf("supplier responded %d", resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Close releases the underlying HTTP client resources.
func (s *Scraper) Close() {
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
}

// refusePrivateAddr rejects dials to loopback, private and link-local
// addresses at the socket layer.
func refusePrivateAddr(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("unresolved dial address %q", address)
	}
	if IsPrivateIP(ip) {
		return fmt.Errorf("refusing to dial private address %s", ip)
	}
	return nil
}
