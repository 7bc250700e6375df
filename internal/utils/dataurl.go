package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// DataURL is a decoded base64 "data:" URL.
type DataURL struct {
	MIMEType string
	Data     []byte
}

var dataURLPattern = regexp.MustCompile(`^data:([^,]+?);base64,(.+)$`)

// ParseDataURL decodes data:<mime>;base64,<payload>. When mimePrefix is non-empty the
// media type must start with it (e.g. "audio/").
func ParseDataURL(raw, mimePrefix string) (*DataURL, error) {
	m := dataURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || !hasSubtype(m[1], mimePrefix) {
		return nil, fmt.Errorf("invalid %sdata URL format", describePrefix(mimePrefix))
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return &DataURL{MIMEType: m[1], Data: data}, nil
}

// EncodeDataURL is the inverse of ParseDataURL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsDataURL(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "data:")
}

// ImageReference is what gets persisted for an analysed image: remote URLs as-is, inline
// images as their media type plus content hash.
func ImageReference(raw string) string {
	raw = strings.TrimSpace(raw)
	if !IsDataURL(raw) {
		return raw
	}
	mime := "application/octet-stream"
	if m := dataURLPattern.FindStringSubmatch(raw); m != nil {
		mime = m[1]
	}
	sum := sha256.Sum256([]byte(raw))
	return "data:" + mime + ";sha256=" + hex.EncodeToString(sum[:])
}

func hasSubtype(mime, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(mime, prefix) && len(mime) > len(prefix)
}

func describePrefix(p string) string {
	switch strings.TrimSuffix(p, "/") {
	case "audio":
		return "audio "
	case "image":
		return "image "
	default:
		return ""
	}
}
