package security

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Sensitive header names that are redacted when redaction is enabled.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

const redactedValue = "[REDACTED]"

// FlattenHeaders turns an HTTP header map into name -> value, joining
// repeated values with ", ". With redact set, sensitive values are replaced.
func FlattenHeaders(headers http.Header, redact bool) map[string]string {
	flat := make(map[string]string, len(headers))

	for key, values := range headers {
		if redact && sensitiveHeaders[strings.ToLower(key)] {
			flat[key] = redactedValue
			continue
		}
		flat[key] = strings.Join(values, ", ")
	}

	return flat
}

// maxInflatedSize bounds gzip inflation when no capture limit is configured.
const maxInflatedSize = 1 << 20

// CaptureBody renders a body as storable text. Gzip payloads are inflated up
// to maxSize (or maxInflatedSize when unbounded); a payload that inflates past
// that is kept in its compressed form. Bytes that are not UTF-8, or that
// contain NUL, are base64 encoded with a "base64:" prefix. With maxSize > 0
// the text is cut at a rune boundary and marked.
func CaptureBody(body []byte, maxSize int) string {
	if len(body) == 0 {
		return ""
	}

	// gzip magic number: 0x1f 0x8b
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		limit := maxInflatedSize
		if maxSize > 0 {
			limit = maxSize
		}
		if inflated, err := inflateGzip(body, limit); err == nil {
			body = inflated
		}
	}

	if !utf8.Valid(body) || bytes.IndexByte(body, 0) >= 0 {
		return truncate("base64:"+base64.StdEncoding.EncodeToString(body), maxSize)
	}
	return truncate(string(body), maxSize)
}

func truncate(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	cut := maxSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + fmt.Sprintf("...[truncated %d bytes]", len(text)-cut)
}

var errInflateLimit = errors.New("inflated body exceeds capture limit")

// inflateGzip decompresses data, reading at most limit bytes of output.
func inflateGzip(data []byte, limit int) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	inflated, err := io.ReadAll(io.LimitReader(reader, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(inflated) > limit {
		return nil, errInflateLimit
	}
	return inflated, nil
}
