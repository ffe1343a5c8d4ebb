package texture

import (
	"bytes"
	"encoding/binary"
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	jpegSOI      = []byte{0xff, 0xd8, 0xff}
)

// Split cuts a payload holding several encoded images written back to back
// into one slice per image. The end of each image is found from its own
// structure; TIFF and unrecognized data extend to the end of the payload.
func Split(data []byte) [][]byte {
	var parts [][]byte
	for len(data) > 0 {
		n := extent(data)
		if n <= 0 || n > len(data) {
			n = len(data)
		}
		parts = append(parts, data[:n])
		data = data[n:]
	}
	return parts
}

// extent returns the length of the image at the start of data, or
// len(data) when it cannot be determined.
func extent(data []byte) int {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return pngExtent(data)
	case bytes.HasPrefix(data, jpegSOI):
		return jpegExtent(data)
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return gifExtent(data)
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return riffExtent(data)
	case len(data) >= 26 && bytes.HasPrefix(data, []byte("BM")):
		if n := int(binary.LittleEndian.Uint32(data[2:])); n >= 26 && n <= len(data) {
			return n
		}
	}
	return len(data)
}

// pngExtent walks the chunk list up to and including IEND.
func pngExtent(data []byte) int {
	i := len(pngSignature)
	for i+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[i:]))
		typ := string(data[i+4 : i+8])
		i += 12 + n
		if i > len(data) {
			break
		}
		if typ == "IEND" {
			return i
		}
	}
	return len(data)
}

// jpegExtent walks the marker segments and entropy coded scans up to EOI.
func jpegExtent(data []byte) int {
	i := 2
	for i+2 <= len(data) {
		if data[i] != 0xff {
			break
		}
		marker := data[i+1]
		switch {
		case marker == 0xff:
			i++
			continue
		case marker == 0xd9:
			return i + 2
		case marker == 0x01, marker >= 0xd0 && marker <= 0xd7:
			i += 2
			continue
		}
		if i+4 > len(data) {
			break
		}
		i += 2 + int(binary.BigEndian.Uint16(data[i+2:]))
		if marker != 0xda {
			continue
		}
		// Scan data ends at the first marker that is neither a stuffed
		// zero, a restart nor fill.
		for ; i+1 < len(data); i++ {
			if data[i] != 0xff {
				continue
			}
			next := data[i+1]
			if next != 0 && next != 0xff && (next < 0xd0 || next > 0xd7) {
				break
			}
		}
	}
	return len(data)
}

// gifExtent walks the block stream up to the trailer.
func gifExtent(data []byte) int {
	if len(data) < 13 {
		return len(data)
	}
	i := 13
	if flags := data[10]; flags&0x80 != 0 {
		i += 3 << (flags&7 + 1)
	}
	for i >= 0 && i < len(data) {
		switch data[i] {
		case 0x3b:
			return i + 1
		case 0x21:
			i = skipSubBlocks(data, i+2)
		case 0x2c:
			if i+10 > len(data) {
				return len(data)
			}
			flags := data[i+9]
			i += 10
			if flags&0x80 != 0 {
				i += 3 << (flags&7 + 1)
			}
			// Skip the LZW minimum code size.
			i = skipSubBlocks(data, i+1)
		default:
			return len(data)
		}
	}
	return len(data)
}

// skipSubBlocks returns the index after the terminating empty sub-block, or
// -1 when data ends first.
func skipSubBlocks(data []byte, i int) int {
	for i < len(data) {
		n := int(data[i])
		i++
		if n == 0 {
			return i
		}
		i += n
	}
	return -1
}

func riffExtent(data []byte) int {
	n := 8 + int(binary.LittleEndian.Uint32(data[4:]))
	if n%2 == 1 {
		n++
	}
	if n > len(data) {
		return len(data)
	}
	return n
}
