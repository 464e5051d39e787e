package platform

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"golang.org/x/image/bmp"
)

const (
	bmpFileHeaderSize = 14
	bitmapInfoSize    = 40
	biRGB             = 0
	biBitfields       = 3
	bitfieldMasksSize = 12
)

// dibToImage decodes a packed CF_DIB block. The clipboard stores a BMP without its
// BITMAPFILEHEADER, so one is synthesized in front of it for bmp.Decode.
func dibToImage(dib []byte) (image.Image, error) {
	if len(dib) < bitmapInfoSize {
		return nil, fmt.Errorf("DIB too short: %d bytes", len(dib))
	}
	dib = normalizeDIB(dib)

	headerSize := binary.LittleEndian.Uint32(dib[0:4])
	bitCount := binary.LittleEndian.Uint16(dib[14:16])
	colorsUsed := binary.LittleEndian.Uint32(dib[32:36])

	offset := bmpFileHeaderSize + headerSize
	if bitCount <= 8 {
		if colorsUsed == 0 {
			colorsUsed = 1 << bitCount
		}
		offset += colorsUsed * 4
	}

	file := make([]byte, bmpFileHeaderSize+len(dib))
	file[0], file[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(file[2:6], uint32(len(file)))
	binary.LittleEndian.PutUint32(file[10:14], offset)
	copy(file[bmpFileHeaderSize:], dib)

	img, err := bmp.Decode(bytes.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to decode DIB: %w", err)
	}
	return img, nil
}

// normalizeDIB rewrites BITMAPINFOHEADER layouts bmp.Decode refuses into plain BI_RGB.
// 32bpp BI_BITFIELDS with the default masks, which Windows synthesizes for screen
// captures, loses its mask block, and color tables listed for 24 and 32bpp images
// are dropped. Anything else is returned unchanged.
func normalizeDIB(dib []byte) []byte {
	if binary.LittleEndian.Uint32(dib[0:4]) != bitmapInfoSize {
		return dib
	}
	bitCount := binary.LittleEndian.Uint16(dib[14:16])
	if bitCount != 24 && bitCount != 32 {
		return dib
	}
	compression := binary.LittleEndian.Uint32(dib[16:20])
	colorsUsed := binary.LittleEndian.Uint32(dib[32:36])

	skip := uint64(colorsUsed) * 4
	switch compression {
	case biRGB:
	case biBitfields:
		if bitCount != 32 || len(dib) < bitmapInfoSize+bitfieldMasksSize {
			return dib
		}
		masks := dib[bitmapInfoSize : bitmapInfoSize+bitfieldMasksSize]
		if binary.LittleEndian.Uint32(masks[0:4]) != 0x00FF0000 ||
			binary.LittleEndian.Uint32(masks[4:8]) != 0x0000FF00 ||
			binary.LittleEndian.Uint32(masks[8:12]) != 0x000000FF {
			return dib
		}
		skip += bitfieldMasksSize
	default:
		return dib
	}
	if skip == 0 || uint64(len(dib)) < bitmapInfoSize+skip {
		return dib
	}

	out := make([]byte, 0, len(dib)-int(skip))
	out = append(out, dib[:bitmapInfoSize]...)
	out = append(out, dib[bitmapInfoSize+int(skip):]...)
	binary.LittleEndian.PutUint32(out[16:20], biRGB)
	binary.LittleEndian.PutUint32(out[32:36], 0)
	return out
}

// imageToDIB renders img as a packed DIB suitable for CF_DIB
func imageToDIB(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode DIB: %w", err)
	}
	return buf.Bytes()[bmpFileHeaderSize:], nil
}
