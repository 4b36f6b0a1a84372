package rhd

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// qstringEmpty marks an absent string in place of a byte length.
const qstringEmpty = 0xFFFFFFFF

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// readQString decodes the length-prefixed UTF-16LE string at off and returns
// it with the number of bytes consumed, prefix included.
func readQString(buf []byte, off int) (string, int, error) {
	if off+4 > len(buf) {
		return "", 0, fmt.Errorf("qstring at %d: length prefix past end of header", off)
	}
	length := binary.LittleEndian.Uint32(buf[off:])
	if length == qstringEmpty {
		return "", 4, nil
	}
	if length%2 != 0 {
		return "", 0, fmt.Errorf("qstring at %d: odd byte length %d", off, length)
	}
	end := int64(off) + 4 + int64(length)
	if end > int64(len(buf)) {
		return "", 0, fmt.Errorf("qstring at %d: length %d extends past end of buffer", off, length)
	}
	if length == 0 {
		return "", 4, nil
	}
	decoded, err := utf16le.NewDecoder().Bytes(buf[off+4 : end])
	if err != nil {
		return "", 0, fmt.Errorf("qstring at %d: %w", off, err)
	}
	return string(decoded), 4 + int(length), nil
}
