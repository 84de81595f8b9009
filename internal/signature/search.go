package signature

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

var ErrEmptySignature = errors.New("empty signature")

// ParseSignature decodes a hex encoded signature.
// Whitespace is ignored, so "6d70 6f72 7420" and "6d706f727420" are equivalent.
// An empty signature is rejected: it would match at every offset of the file.
func ParseSignature(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if s == "" {
		return nil, ErrEmptySignature
	}
	return hex.DecodeString(s)
}

// FindAll returns the start offset of every occurrence of sig in data,
// in ascending order. Overlapping occurrences are all reported:
// searching "aa" in "aaaa" yields [0 1 2].
func FindAll(data []byte, sig []byte) []int {
	if len(sig) == 0 {
		return nil
	}

	var offsets []int
	for base := 0; base+len(sig) <= len(data); {
		idx := bytes.Index(data[base:], sig)
		if idx < 0 {
			break
		}
		offsets = append(offsets, base+idx)

		// Restart right after the previous match start so that
		// overlapping occurrences are not skipped.
		base += idx + 1
	}
	return offsets
}
