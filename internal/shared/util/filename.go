package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidFileName is returned for names that are empty after cleaning or
// try to escape their directory.
var ErrInvalidFileName = errors.New("invalid file name")

const maxFileNameBytes = 120

// CleanFileName makes an uploaded name safe to embed in an object key.
// Hangul names exported on macOS arrive decomposed, so the result is NFC.
func CleanFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := norm.NFC.String(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", ErrInvalidFileName
	}
	return truncateKeepingExt(s, maxFileNameBytes), nil
}

// truncateKeepingExt shortens s to at most limit bytes without splitting a
// rune and keeps the extension.
func truncateKeepingExt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	ext := ""
	if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= 8 {
		ext, s = s[i:], s[:i]
	}
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ext
}

// StudentPrefix is the storage namespace for a student ID. Raw student
// numbers never appear in object keys.
func StudentPrefix(id string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(id)))
	return hex.EncodeToString(sum[:8])
}
