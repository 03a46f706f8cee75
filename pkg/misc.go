package pkg

import (
	"bytes"
	"unicode"
)

// Printable drops the control characters of str, such as the terminators and framing
// bytes of instrument lines.
func Printable(str []byte) []byte {
	return bytes.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, str)
}
