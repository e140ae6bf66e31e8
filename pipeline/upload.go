package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AnTengye/contractwatch/prompt"
)

// ErrInvalidUpload is returned when an upload is rejected before a contract is created
var ErrInvalidUpload = errors.New("invalid upload")

// DefaultMaxUploadBytes is the PDF size limit. Configured limits above it are capped.
const DefaultMaxUploadBytes = 5 << 20

const minNameLength = 3

// Input is one contract submission: either a PDF or pasted text
type Input struct {
	Name              string
	FileName          string
	PDF               []byte
	Text              string
	LayoutDescription string
	UserInstructions  string
}

// IsPDF reports whether the input carries a PDF rather than text
func (in *Input) IsPDF() bool {
	return len(in.PDF) > 0
}

func validateInput(in *Input, maxBytes int64) error {
	if len([]rune(strings.TrimSpace(in.Name))) < minNameLength {
		return fmt.Errorf("%w: name must be at least %d characters", ErrInvalidUpload, minNameLength)
	}

	hasText := strings.TrimSpace(in.Text) != ""
	switch {
	case in.IsPDF() && hasText:
		return fmt.Errorf("%w: provide either a PDF or text, not both", ErrInvalidUpload)
	case in.IsPDF():
		if int64(len(in.PDF)) > maxBytes {
			return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, maxBytes)
		}
		if ct := http.DetectContentType(in.PDF); ct != prompt.PDFMIMEType {
			return fmt.Errorf("%w: expected %s, got %s", ErrInvalidUpload, prompt.PDFMIMEType, ct)
		}
	case hasText:
	default:
		return fmt.Errorf("%w: no document provided", ErrInvalidUpload)
	}
	return nil
}
