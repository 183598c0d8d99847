package scan2pdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/image/tiff"
)

// TIFF layout constants.
const (
	maxTIFFPages       = 4096
	tiffEntrySize      = 12
	tiffTagOrientation = 0x0112
	tiffTypeShort      = 3
)

// errTIFFHeader reports a file that is not a classic TIFF.
var errTIFFHeader = errors.New("not a TIFF header")

// tiffDirectory is one image file directory of a TIFF.
type tiffDirectory struct {
	offset      uint32
	orientation int
}

// tiffDirectories returns every image file directory of a classic TIFF in
// file order. The walk stops at a zero link, an offset outside the data,
// or an offset already visited.
func tiffDirectories(data []byte) ([]tiffDirectory, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, errTIFFHeader
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, errTIFFHeader
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, nil, errTIFFHeader
	}

	var dirs []tiffDirectory
	seen := make(map[uint32]bool)
	off := order.Uint32(data[4:8])
	for off != 0 && len(dirs) < maxTIFFPages {
		if seen[off] || int64(off)+2 > int64(len(data)) {
			break
		}
		seen[off] = true

		n := int64(order.Uint16(data[off : off+2]))
		entries := int64(off) + 2
		end := entries + n*tiffEntrySize
		if end > int64(len(data)) {
			break
		}
		dirs = append(dirs, tiffDirectory{
			offset:      off,
			orientation: tiffOrientation(data[entries:end], order),
		})

		if end+4 > int64(len(data)) {
			break
		}
		off = order.Uint32(data[end : end+4])
	}
	if len(dirs) == 0 {
		return nil, nil, fmt.Errorf("%w: no image directory", errTIFFHeader)
	}
	return dirs, order, nil
}

// tiffOrientation reads the orientation tag from the entries of one
// directory. Returns 1 when the tag is missing or out of range.
func tiffOrientation(entries []byte, order binary.ByteOrder) int {
	for i := 0; i+tiffEntrySize <= len(entries); i += tiffEntrySize {
		e := entries[i : i+tiffEntrySize]
		if order.Uint16(e[0:2]) != tiffTagOrientation {
			continue
		}
		if order.Uint16(e[2:4]) != tiffTypeShort {
			return 1
		}
		v := int(order.Uint16(e[8:10]))
		if v < 1 || v > 8 {
			return 1
		}
		return v
	}
	return 1
}

// decodeTIFFFrames decodes every page of a TIFF, in order.
// Each page is decoded by pointing a private copy of the header at its
// directory. When some pages fail, the decoded frames are returned along
// with an error naming the skipped pages.
func decodeTIFFFrames(data []byte, source string) ([]*Frame, error) {
	dirs, order, err := tiffDirectories(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFrame, err)
	}

	buf := bytes.Clone(data)
	var frames []*Frame
	var skipped []string
	for i, dir := range dirs {
		order.PutUint32(buf[4:8], dir.offset)
		img, err := tiff.Decode(bytes.NewReader(buf))
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		frames = append(frames, newFrame(Orient(img, dir.orientation), imageScale, source, i))
	}

	if len(skipped) > 0 {
		return frames, fmt.Errorf("%w: %s", ErrDecodeFrame, strings.Join(skipped, "; "))
	}
	return frames, nil
}
