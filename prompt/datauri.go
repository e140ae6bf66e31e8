package prompt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// PDFMIMEType is the only media type the OCR stage accepts
const PDFMIMEType = "application/pdf"

// ErrMalformedDataURI is returned when a data URI is not base64 encoded or has no media type
var ErrMalformedDataURI = errors.New("malformed data URI")

// DataURI encodes data as data:<mime>;base64,<payload>
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its media type and decoded payload
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrMalformedDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformedDataURI
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mimeType == "" {
		return "", nil, ErrMalformedDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return mimeType, data, nil
}
