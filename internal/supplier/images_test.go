package supplier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func newTestDownloader(t *testing.T) *ImageDownloader {
	t.Helper()
	downloader, err := NewImageDownloader(ImageDownloaderParams{
		Limiter:        NewIntervalLimiter(time.Millisecond, nil, "test"),
		Logger:         testLogger(),
		MaxRetries:     0,
		RetryBaseDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new downloader: %v", err)
	}
	return downloader
}

func TestDownloaderBatchWidthFollowsConfiguredConcurrency(t *testing.T) {
	downloader, err := NewImageDownloader(ImageDownloaderParams{
		Limiter:       NewIntervalLimiter(time.Millisecond, nil, "test"),
		Logger:        testLogger(),
		MaxConcurrent: 5,
	})
	if err != nil {
		t.Fatalf("new downloader: %v", err)
	}
	if downloader.maxConcurrent != 5 {
		t.Fatalf("configured concurrency ignored, got %d", downloader.maxConcurrent)
	}

	if fallback := newTestDownloader(t); fallback.maxConcurrent != 3 {
		t.Fatalf("expected default batch width 3, got %d", fallback.maxConcurrent)
	}
}

func TestNormalizeImageURLStripsRenditionSuffix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/img/a.jpg_640x640.jpg", "https://cdn.example.com/img/a.jpg"},
		{"https://cdn.example.com/img/a.jpg_50x50q75.jpg", "https://cdn.example.com/img/a.jpg"},
		{"https://cdn.example.com/img/a_640x640.jpg", "https://cdn.example.com/img/a.jpg"},
		{"https://cdn.example.com/img/a.png", "https://cdn.example.com/img/a.png"},
		{"  https://cdn.example.com/img/a.webp ", "https://cdn.example.com/img/a.webp"},
	}
	for _, tc := range cases {
		if got := NormalizeImageURL(tc.in); got != tc.want {
			t.Errorf("NormalizeImageURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilterValidURLs(t *testing.T) {
	input := []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/a.jpg_640x640.jpg", // duplicate after normalization
		"https://cdn.example.com/b.png",
		"https://cdn.example.com/page.html",
		"ftp://cdn.example.com/c.jpg",
		"not a url",
		"",
	}
	got := FilterValidURLs(input)
	want := []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.png",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDownloadImageSniffsDimensions(t *testing.T) {
	payload := minimalPNG(640, 480)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	downloader := newTestDownloader(t)
	image, err := downloader.DownloadImage(context.Background(), server.URL+"/img/a.png")
	if err != nil {
		t.Fatalf("download image: %v", err)
	}
	if image.Width != 640 || image.Height != 480 {
		t.Fatalf("expected 640x480, got %dx%d", image.Width, image.Height)
	}
	if image.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), image.Size)
	}
	if image.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", image.ContentType)
	}
}

func TestDownloadImageUnsupportedFormatOmitsDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		w.Write([]byte("GIF89a fake body"))
	}))
	defer server.Close()

	downloader := newTestDownloader(t)
	image, err := downloader.DownloadImage(context.Background(), server.URL+"/img/a.gif")
	if err != nil {
		t.Fatalf("download image: %v", err)
	}
	if image.Width != 0 || image.Height != 0 {
		t.Fatalf("expected no dimensions, got %dx%d", image.Width, image.Height)
	}
}

func TestDownloadImageRejectsNonImageURL(t *testing.T) {
	downloader := newTestDownloader(t)
	if _, err := downloader.DownloadImage(context.Background(), "https://example.com/page.html"); err == nil {
		t.Fatal("expected rejection of non-image url")
	}
}

func TestDownloadImageEnforcesByteLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	downloader, err := NewImageDownloader(ImageDownloaderParams{
		Limiter:        NewIntervalLimiter(time.Millisecond, nil, "test"),
		Logger:         testLogger(),
		MaxBytes:       1024,
		MaxRetries:     0,
		RetryBaseDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new downloader: %v", err)
	}
	if _, err := downloader.DownloadImage(context.Background(), server.URL+"/big.jpg"); err == nil {
		t.Fatal("expected oversized image to be rejected")
	}
}

func TestDownloadImagesPartialFailure(t *testing.T) {
	payload := minimalJPEG(100, 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer server.Close()

	downloader := newTestDownloader(t)
	urls := []string{
		server.URL + "/a.jpg",
		server.URL + "/broken.jpg",
		server.URL + "/b.jpg",
	}
	results := downloader.DownloadImages(context.Background(), urls)
	if len(results) != 2 {
		t.Fatalf("expected 2 successful downloads, got %d", len(results))
	}
	for _, image := range results {
		if image.URL == server.URL+"/broken.jpg" {
			t.Fatal("failed url leaked into results")
		}
	}
}

func TestDownloadImagesAppliesWebPTransform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(minimalPNG(10, 10))
	}))
	defer server.Close()

	downloader := newTestDownloader(t)
	downloader.ConvertToWebP = func(buf []byte) []byte {
		return append([]byte("webp:"), buf...)
	}

	image, err := downloader.DownloadImage(context.Background(), server.URL+"/a.png")
	if err != nil {
		t.Fatalf("download image: %v", err)
	}
	if string(image.Buffer[:5]) != "webp:" {
		t.Fatal("transform was not applied")
	}
	if image.Size != int64(len(image.Buffer)) {
		t.Fatal("size not updated after transform")
	}
}
