package supplier

import (
	"bytes"
	"testing"
)

func minimalJPEG(width, height int) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	// APP0 segment with an empty 14-byte payload.
	buf.Write([]byte{0xFF, 0xE0, 0x00, 0x10})
	buf.Write(make([]byte, 14))
	// SOF0 frame header.
	buf.Write([]byte{0xFF, 0xC0, 0x00, 0x11, 0x08})
	buf.Write([]byte{byte(height >> 8), byte(height)})
	buf.Write([]byte{byte(width >> 8), byte(width)})
	buf.Write(make([]byte, 10))
	return buf.Bytes()
}

func minimalPNG(width, height int) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	buf.Write([]byte{0x00, 0x00, 0x00, 0x0D})
	buf.WriteString("IHDR")
	buf.Write([]byte{byte(width >> 24), byte(width >> 16), byte(width >> 8), byte(width)})
	buf.Write([]byte{byte(height >> 24), byte(height >> 16), byte(height >> 8), byte(height)})
	buf.Write(make([]byte, 5))
	return buf.Bytes()
}

func TestSniffJPEGDimensions(t *testing.T) {
	width, height, ok := SniffDimensions(minimalJPEG(320, 240))
	if !ok {
		t.Fatal("expected JPEG to sniff")
	}
	if width != 320 || height != 240 {
		t.Fatalf("got %dx%d, want 320x240", width, height)
	}
}

func TestSniffJPEGProgressive(t *testing.T) {
	data := minimalJPEG(800, 600)
	// Rewrite SOF0 to SOF2 (progressive); dimensions sit at the same offsets.
	idx := bytes.Index(data, []byte{0xFF, 0xC0})
	data[idx+1] = 0xC2

	width, height, ok := SniffDimensions(data)
	if !ok || width != 800 || height != 600 {
		t.Fatalf("got %dx%d ok=%v, want 800x600", width, height, ok)
	}
}

func TestSniffPNGDimensions(t *testing.T) {
	width, height, ok := SniffDimensions(minimalPNG(1024, 768))
	if !ok {
		t.Fatal("expected PNG to sniff")
	}
	if width != 1024 || height != 768 {
		t.Fatalf("got %dx%d, want 1024x768", width, height)
	}
}

func TestSniffRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("GIF89a convincing header"),
		{0xFF, 0xD8},
		minimalJPEG(320, 240)[:6],
		minimalPNG(10, 10)[:16],
		[]byte("<html>not an image</html>"),
	}
	for i, data := range cases {
		if _, _, ok := SniffDimensions(data); ok {
			t.Errorf("case %d: expected no dimensions", i)
		}
	}
}
