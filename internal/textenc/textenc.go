// Package textenc decodes shader source files to UTF-8.
package textenc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode converts file contents to a UTF-8 string. A UTF-8 or UTF-16 byte
// order mark selects the encoding and is stripped. Input without a BOM that
// is not valid UTF-8 is read as Windows-1252.
// Returns the original bytes if conversion fails.
func Decode(data []byte) string {
	if hasBOM(data) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		result, _, err := transform.Bytes(dec, data)
		if err != nil {
			return string(data)
		}
		return string(result)
	}
	if utf8.Valid(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// EncodeUTF16 encodes s as little-endian UTF-16 with a BOM.
func EncodeUTF16(s string) []byte {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	result, _, err := transform.Bytes(enc, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}
