package tag

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key is a normalized item tag key. The zero value is invalid; keys are
// produced by NormalizeKey or ExtractKey and are never empty.
type Key string

// frameKeyStart and frameKeyEnd delimit the key segment inside the hex
// representation of a raw sensor frame. Fixed by the reader hardware's frame
// layout: the 12 hex characters at offsets 8..20 carry the tag identity.
const (
	frameKeyStart = 8
	frameKeyEnd   = 20
)

// ErrShortFrame reports a sensor frame too short to contain a key segment.
var ErrShortFrame = fmt.Errorf("frame shorter than %d hex characters", frameKeyEnd)

// NormalizeKey canonicalizes a raw key string: NFC normalization, surrounding
// whitespace stripped, uppercased. Returns an error for keys that are empty
// after normalization.
//
// NFC first, then case mapping: uppercasing a decomposed sequence can produce
// a different code point sequence than uppercasing the composed form.
func NormalizeKey(raw string) (Key, error) {
	s := strings.ToUpper(strings.TrimSpace(norm.NFC.String(raw)))
	if s == "" {
		return "", fmt.Errorf("empty key")
	}
	return Key(s), nil
}

// ExtractKey decodes an item key from the uppercase hex representation of a
// raw sensor frame, using the fixed byte-offset rule: hex characters
// [frameKeyStart, frameKeyEnd). Frames shorter than frameKeyEnd hex
// characters are malformed and yield ErrShortFrame.
func ExtractKey(frameHex string) (Key, error) {
	if len(frameHex) < frameKeyEnd {
		return "", ErrShortFrame
	}
	return NormalizeKey(frameHex[frameKeyStart:frameKeyEnd])
}

// String returns the key as a plain string.
func (k Key) String() string { return string(k) }
