package supplier

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/metrics"
)

var (
	imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif)(?:$|[?_])`)
	// CDN size/quality suffixes that point at downscaled renditions:
	// foo.jpg_640x640.jpg and foo_640x640q90.jpg both mean foo.jpg.
	cdnRenditionRe = regexp.MustCompile(`(?i)(\.(?:jpe?g|png|webp))_\d+x\d+(?:q\d+)?\.(?:jpe?g|png|webp)$`)
	cdnSuffixRe    = regexp.MustCompile(`(?i)_\d+x\d+(?:q\d+)?(\.(?:jpe?g|png|webp))$`)
)

// ImageDownloaderParams groups dependencies for the image downloader.
type ImageDownloaderParams struct {
	Limiter *IntervalLimiter
	Logger  *logger.Logger
	Metrics *metrics.PipelineMetrics

	MaxConcurrent  int
	MaxBytes       int64
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// ImageDownloader fetches product images under a hard concurrency ceiling
// shared by every import running in the process.
type ImageDownloader struct {
	limiter  *IntervalLimiter
	logg     *logger.Logger
	pipeline *metrics.PipelineMetrics

	sem            *semaphore.Weighted
	maxConcurrent  int
	maxBytes       int64
	maxRetries     uint64
	retryBaseDelay time.Duration
	client         *http.Client

	// ConvertToWebP is an optional pure transform applied to each fetched
	// buffer. When unset the buffer passes through unchanged.
	ConvertToWebP func([]byte) []byte
}

// NewImageDownloader builds a downloader.
func NewImageDownloader(params ImageDownloaderParams) (*ImageDownloader, error) {
	if params.Limiter == nil {
		return nil, goerrors.New("interval limiter is required")
	}
	if params.Logger == nil {
		return nil, goerrors.New("logger is required")
	}
	maxConcurrent := params.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	maxBytes := params.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelay := params.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	return &ImageDownloader{
		limiter:        params.Limiter,
		logg:           params.Logger,
		pipeline:       params.Metrics,
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent:  maxConcurrent,
		maxBytes:       maxBytes,
		maxRetries:     uint64(maxRetries),
		retryBaseDelay: baseDelay,
		client:         &http.Client{Timeout: timeout},
	}, nil
}

// NormalizeImageURL strips known CDN size/quality suffixes so the original
// resolution is requested.
func NormalizeImageURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = cdnRenditionRe.ReplaceAllString(trimmed, "$1")
	return cdnSuffixRe.ReplaceAllString(trimmed, "$1")
}

// IsImageURL reports whether raw plausibly points at an image resource.
func IsImageURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Hostname() == "" {
		return false
	}
	return imageExtRe.MatchString(parsed.Path) || imageExtRe.MatchString(parsed.RawQuery)
}

// FilterValidURLs normalizes, de-duplicates and shape-checks image URLs.
// Run this before DownloadImages to avoid wasted requests.
func FilterValidURLs(raws []string) []string {
	seen := make(map[string]struct{}, len(raws))
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		normalized := NormalizeImageURL(raw)
		if !IsImageURL(normalized) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// DownloadImage fetches one image, sniffing dimensions for JPEG and PNG.
func (d *ImageDownloader) DownloadImage(ctx context.Context, rawURL string) (*DownloadedImage, error) {
	if !IsImageURL(rawURL) {
		d.pipeline.IncImageFailed()
		return nil, fmt.Errorf("url does not look like an image resource")
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	if err := d.limiter.AwaitTurn(ctx); err != nil {
		return nil, err
	}

	var image *DownloadedImage
	err := RetryWithBackoff(ctx, d.maxRetries, d.retryBaseDelay, func(ctx context.Context) error {
		fetched, fetchErr := d.fetchOnce(ctx, rawURL)
		if fetchErr != nil {
			return fetchErr
		}
		image = fetched
		return nil
	})
	if err != nil {
		d.pipeline.IncImageFailed()
		return nil, err
	}

	if d.ConvertToWebP != nil {
		image.Buffer = d.ConvertToWebP(image.Buffer)
		image.Size = int64(len(image.Buffer))
	}
	d.pipeline.IncImageDownloaded()
	return image, nil
}

func (d *ImageDownloader) fetchOnce(ctx context.Context, rawURL string) (*DownloadedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, Permanent(err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("image host responded %d", resp.StatusCode)
	default:
		return nil, Permanent(fmt.Errorf("image host responded %d", resp.StatusCode))
	}

	buffer, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buffer)) > d.maxBytes {
		return nil, Permanent(fmt.Errorf("image exceeds %d byte limit", d.maxBytes))
	}

	image := &DownloadedImage{
		URL:         rawURL,
		Buffer:      buffer,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(buffer)),
	}
	if width, height, ok := SniffDimensions(buffer); ok {
		image.Width = width
		image.Height = height
	}
	return image, nil
}

// DownloadImages fetches URLs in concurrent batches sized to the configured
// concurrency ceiling, with small randomized delays between items and
// batches. Per-URL failures are logged and collected; the call returns
// whatever succeeded.
func (d *ImageDownloader) DownloadImages(ctx context.Context, urls []string) []DownloadedImage {
	batchSize := d.maxConcurrent
	results := make([]DownloadedImage, 0, len(urls))

	for start := 0; start < len(urls); start += batchSize {
		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		batch := urls[start:end]

		var (
			mu       sync.Mutex
			errs     error
			fetched  = make([]*DownloadedImage, len(batch))
			inflight sync.WaitGroup
		)
		for i, u := range batch {
			inflight.Add(1)
			go func(i int, u string) {
				defer inflight.Done()
				// Small jitter so batch members do not land in lockstep.
				jitterSleep(ctx, 50*time.Millisecond, 250*time.Millisecond)
				image, err := d.DownloadImage(ctx, u)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("image %q: %w", u, err))
					return
				}
				fetched[i] = image
			}(i, u)
		}
		inflight.Wait()

		for _, image := range fetched {
			if image != nil {
				results = append(results, *image)
			}
		}
		if errs != nil {
			logCtx := d.logg.WithFields(ctx, map[string]any{"failed": len(multierr.Errors(errs))})
			d.logg.Error(logCtx, "some image downloads failed", errs)
		}

		if end < len(urls) {
			jitterSleep(ctx, 500*time.Millisecond, 1500*time.Millisecond)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

func jitterSleep(ctx context.Context, min, max time.Duration) {
	span := max - min
	if span <= 0 {
		span = time.Millisecond
	}
	delay := min + time.Duration(rand.Int63n(int64(span)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
