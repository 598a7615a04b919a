package importer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText turns raw upload bytes into normalized text: the UTF-8 BOM
// is removed, bytes that are not valid UTF-8 are read as Latin-1
// (ISO-8859-1, what spreadsheet programs on Windows usually save) and
// CRLF / bare CR line endings become LF.
func DecodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		if converted, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw); err == nil {
			raw = converted
		}
	}

	text := string(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}

// SplitLines splits decoded text into lines. Trailing empty lines are
// dropped; empty lines in the middle are kept so line numbers stay
// aligned with the file.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
