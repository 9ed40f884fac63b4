package util

import (
	"path"
	"strings"
)

// DefaultContentType is used when nothing better is known.
const DefaultContentType = "application/octet-stream"

var contentTypesByExt = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// IsTranscriptType reports whether contentType (parameters ignored) is one of
// the accepted transcript formats.
func IsTranscriptType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	for _, ct := range contentTypesByExt {
		if ct == base {
			return true
		}
	}
	return false
}

// ContentTypeFor guesses a transcript's MIME type from its extension.
func ContentTypeFor(fileName string) string {
	if ct, ok := contentTypesByExt[strings.ToLower(path.Ext(fileName))]; ok {
		return ct
	}
	return DefaultContentType
}
