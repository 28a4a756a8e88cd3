package superclip

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const defaultMime = "application/octet-stream"

// ParseDataURL decodes a data URL of the form
// "data:<mime>[;base64],<payload>" into its mime type and raw bytes.
// Base64 payloads are tried with the standard alphabet first and the
// URL-safe alphabet second; without the base64 flag the payload is
// percent-decoded text. A missing mime type falls back to
// application/octet-stream.
func ParseDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	header, encoded, found := strings.Cut(dataURL, ",")
	if !found {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	mimeType, params, _ := strings.Cut(header[len("data:"):], ";")
	if mimeType == "" {
		mimeType = defaultMime
	}

	if params == "base64" || strings.HasSuffix(params, ";base64") {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			data, err = base64.URLEncoding.DecodeString(encoded)
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		return mimeType, data, nil
	}

	text, err := url.PathUnescape(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mimeType, []byte(text), nil
}
