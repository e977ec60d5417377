package supplier

import (
	"encoding/binary"
)

// SniffDimensions reads image width and height straight from the byte
// stream for JPEG and PNG. Any other format, or a truncated buffer, yields
// ok=false without error.
func SniffDimensions(data []byte) (width, height int, ok bool) {
	switch {
	case isJPEG(data):
		return sniffJPEG(data)
	case isPNG(data):
		return sniffPNG(data)
	default:
		return 0, 0, false
	}
}

func isJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func isPNG(data []byte) bool {
	if len(data) < len(pngSignature) {
		return false
	}
	for i, b := range pngSignature {
		if data[i] != b {
			return false
		}
	}
	return true
}

// sniffJPEG walks marker segments to the first SOF0/SOF1/SOF2 frame header,
// which carries the image dimensions.
func sniffJPEG(data []byte) (int, int, bool) {
	offset := 2
	for offset+4 <= len(data) {
		if data[offset] != 0xFF {
			return 0, 0, false
		}
		marker := data[offset+1]

		// Padding bytes between segments.
		if marker == 0xFF {
			offset++
			continue
		}
		// Standalone markers carry no length.
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) {
			offset += 2
			continue
		}

		segLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if segLen < 2 {
			return 0, 0, false
		}

		if marker == 0xC0 || marker == 0xC1 || marker == 0xC2 {
			// Frame header: length(2) precision(1) height(2) width(2).
			if offset+9 > len(data) {
				return 0, 0, false
			}
			height := int(binary.BigEndian.Uint16(data[offset+5 : offset+7]))
			width := int(binary.BigEndian.Uint16(data[offset+7 : offset+9]))
			if width == 0 || height == 0 {
				return 0, 0, false
			}
			return width, height, true
		}

		offset += 2 + segLen
	}
	return 0, 0, false
}

// sniffPNG reads the fixed-offset IHDR width and height fields.
func sniffPNG(data []byte) (int, int, bool) {
	// Signature(8) + length(4) + "IHDR"(4) + width(4) + height(4).
	if len(data) < 24 {
		return 0, 0, false
	}
	if string(data[12:16]) != "IHDR" {
		return 0, 0, false
	}
	width := int(binary.BigEndian.Uint32(data[16:20]))
	height := int(binary.BigEndian.Uint32(data[20:24]))
	if width == 0 || height == 0 {
		return 0, 0, false
	}
	return width, height, true
}
