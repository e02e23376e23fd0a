package document

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeText decodes raw bytes into a string, trying encodings in priority
// order: UTF-8, UTF-16 (BOM-detected), Latin-1, Windows-1252.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	// UTF-8 BOM is stripped, otherwise valid UTF-8 passes through.
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return string(data[3:]), nil
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	// UTF-16, either byte order, identified by BOM.
	if len(data) >= 2 && (data[0] == 0xFF && data[1] == 0xFE || data[0] == 0xFE && data[1] == 0xFF) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return string(out), nil
	}

	// Latin-1 decodes any byte sequence, but maps 0x80-0x9F to C1 control
	// characters; their presence indicates the content is really
	// Windows-1252, which assigns printable glyphs to that range.
	if hasC1Range(data) {
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding Windows-1252: %w", err)
		}
		return string(out), nil
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding Latin-1: %w", err)
	}
	return string(out), nil
}

func hasC1Range(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			return true
		}
	}
	return false
}
