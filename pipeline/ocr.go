package pipeline

import (
	"context"

	"github.com/AnTengye/contractwatch/prompt"
)

// OCREngine turns an uploaded PDF, given as a base64 data URI, into raw text
type OCREngine interface {
	ExtractText(ctx context.Context, contractID, dataURI string) (string, error)
}

// Archiver keeps a copy of uploaded files and returns where it put them
type Archiver interface {
	ArchiveUpload(ctx context.Context, contractID, fileName string, data []byte) (string, error)
}

// ModelOCR runs OCR through the model's OCR stage
type ModelOCR struct {
	stage *prompt.Stage[prompt.OCRInput, prompt.OCROutput]
}

// NewModelOCR creates a ModelOCR
func NewModelOCR(stage *prompt.Stage[prompt.OCRInput, prompt.OCROutput]) *ModelOCR {
	return &ModelOCR{stage: stage}
}

// ExtractText implements OCREngine
func (m *ModelOCR) ExtractText(ctx context.Context, _ string, dataURI string) (string, error) {
	out, err := m.stage.Invoke(ctx, prompt.OCRInput{PDFDataURI: dataURI})
	if err != nil {
		return "", err
	}
	return out.ExtractedText, nil
}
