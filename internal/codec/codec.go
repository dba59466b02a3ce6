// Package codec converts raw file bytes to a self-describing text form and back.
//
// The text form is a data URL, "data:<media type>;base64,<payload>", which is
// what the persisted document collection stores in each record's data field.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// BinarySentinel replaces content that cannot be shown as text.
const BinarySentinel = "[Binary file content - cannot display as text]"

const (
	dataPrefix   = "data:"
	base64Marker = ";base64"
	defaultMedia = "application/octet-stream"
	utf8BOM      = "\xef\xbb\xbf"
)

// ErrMalformed is returned when an encoded string is not a base64 data URL.
var ErrMalformed = errors.New("codec: malformed encoded content")

// Encode returns the data URL for b. The media type is sniffed from the content.
func Encode(b []byte) string {
	return encode(detect(b), b)
}

// EncodeNamed is Encode with a filename hint. The extension is only consulted
// when sniffing cannot tell what the bytes are.
func EncodeNamed(name string, b []byte) string {
	media := detect(b)
	if media == defaultMedia {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			media = byExt
		}
	}
	return encode(media, b)
}

func encode(media string, b []byte) string {
	var sb strings.Builder
	sb.Grow(len(dataPrefix) + len(media) + len(base64Marker) + 1 + base64.StdEncoding.EncodedLen(len(b)))
	sb.WriteString(dataPrefix)
	sb.WriteString(media)
	sb.WriteString(base64Marker)
	sb.WriteByte(',')
	sb.WriteString(base64.StdEncoding.EncodeToString(b))
	return sb.String()
}

func detect(b []byte) string {
	if len(b) == 0 {
		return defaultMedia
	}
	// Parameters such as charset are dropped; the header only names the type.
	media, _, _ := strings.Cut(mimetype.Detect(b).String(), ";")
	return strings.TrimSpace(media)
}

// DecodeToBytes is the exact inverse of Encode. A bare base64 payload
// without the data URL header is accepted as well.
func DecodeToBytes(s string) ([]byte, error) {
	_, payload, err := split(s)
	if err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return b, nil
}

// DecodeToDisplayText interprets the decoded bytes as UTF-8 text. Anything that
// fails to decode, is not valid UTF-8, or contains a NUL byte yields
// BinarySentinel. NUL never occurs in text files but is common in binary
// formats whose leading bytes happen to be valid UTF-8.
func DecodeToDisplayText(s string) string {
	b, err := DecodeToBytes(s)
	if err != nil {
		return BinarySentinel
	}
	b = bytes.TrimPrefix(b, []byte(utf8BOM))
	if !utf8.Valid(b) || bytes.IndexByte(b, 0) >= 0 {
		return BinarySentinel
	}
	return string(b)
}

// MediaType returns the declared media type of s, without parameters.
func MediaType(s string) string {
	media, _, err := split(s)
	if err != nil || media == "" {
		return defaultMedia
	}
	return media
}

// split separates a data URL into its media type and base64 payload.
func split(s string) (media, payload string, err error) {
	if !strings.HasPrefix(s, dataPrefix) {
		return "", s, nil
	}
	header, payload, ok := strings.Cut(s[len(dataPrefix):], ",")
	if !ok {
		return "", "", fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}
	if !strings.HasSuffix(header, base64Marker) {
		return "", "", fmt.Errorf("%w: not base64 encoded", ErrMalformed)
	}
	media = strings.TrimSuffix(header, base64Marker)
	if i := strings.IndexByte(media, ';'); i >= 0 {
		media = media[:i]
	}
	return media, payload, nil
}
