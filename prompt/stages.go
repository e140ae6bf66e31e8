package prompt

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/AnTengye/contractwatch/llm"
	"github.com/AnTengye/contractwatch/model"
)

// Stage names
const (
	StageOCR        = "ocr"
	StageOCRImprove = "ocr_improve"
	StageExtraction = "extraction"
	StageQuality    = "quality"
	StageBreach     = "breach_detection"
)

// OCRInput is the OCR stage input
type OCRInput struct {
	PDFDataURI string `json:"pdfDataUri" jsonschema:"The PDF document content as a data URI with the application/pdf MIME type and Base64 encoding."`
}

// OCROutput is the OCR stage output
type OCROutput struct {
	ExtractedText string `json:"extractedText" jsonschema:"The text extracted from the PDF document."`
}

// ImproveInput is the OCR improvement stage input
type ImproveInput struct {
	OCRText        string `json:"ocrText" jsonschema:"The raw OCR text extracted from the document."`
	DocumentLayout string `json:"documentLayout" jsonschema:"Description of the document layout."`
}

// ExtractInput is the extraction stage input
type ExtractInput struct {
	DocumentText     string `json:"documentText" jsonschema:"The text content of the contract document."`
	UserInstructions string `json:"userInstructions,omitempty" jsonschema:"Optional user-provided instructions or specific questions to guide the data extraction process."`
}

// QualityInput is the quality assessment stage input
type QualityInput struct {
	ExtractedData string `json:"extractedData" jsonschema:"The extracted data from the contract."`
	ContractText  string `json:"contractText" jsonschema:"The original contract text."`
}

// BreachInput is the breach detection stage input
type BreachInput struct {
	ContractData     string `json:"contractData" jsonschema:"Extracted data from the contract in JSON format."`
	BreachConditions string `json:"breachConditions" jsonschema:"Predefined rules and conditions for breach detection in JSON format."`
}

// Stages holds every prompt stage of the pipeline
type Stages struct {
	OCR        *Stage[OCRInput, OCROutput]
	OCRImprove *Stage[ImproveInput, model.OCRImprovement]
	Extraction *Stage[ExtractInput, model.ExtractionResult]
	Quality    *Stage[QualityInput, model.QualityAssessment]
	Breach     *Stage[BreachInput, model.BreachResult]
}

const pdfDataURIPattern = `^data:application/pdf;base64,[A-Za-z0-9+/]+={0,2}$`

// NewStages builds all five stages on one invoker
func NewStages(inv *Invoker) (*Stages, error) {
	var (
		s   Stages
		err error
	)

	s.OCR, err = NewStage[OCRInput, OCROutput](inv, Definition[OCRInput]{
		Name:   StageOCR,
		System: "You are an Optical Character Recognition (OCR) assistant.",
		Template: `Your task is to extract all textual content from the provided PDF document.
Ensure the output contains only the extracted text.

PDF Document: attached.
`,
		TightenInput: func(s *jsonschema.Schema) {
			s.Properties["pdfDataUri"].Pattern = pdfDataURIPattern
		},
		Media: func(in OCRInput) ([]llm.Media, error) {
			mimeType, data, err := ParseDataURI(in.PDFDataURI)
			if err != nil {
				return nil, err
			}
			return []llm.Media{{MIMEType: mimeType, Data: data}}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.OCRImprove, err = NewStage[ImproveInput, model.OCRImprovement](inv, Definition[ImproveInput]{
		Name:   StageOCRImprove,
		System: "You are an AI assistant specialized in improving the accuracy of OCR-extracted text from legal documents.",
		Template: `You will receive raw OCR text and a description of the document's layout.
Your goal is to correct errors in the OCR text that may be caused by formatting or layout issues in the document. You should also provide an assessment of the document layout, pointing out any potential problems that could affect OCR accuracy.

Here is the raw OCR text:
{{.OCRText}}

Here is a description of the document layout:
{{.DocumentLayout}}

Based on the above information, provide the improved OCR text and layout assessment.
`,
		TightenInput: requireNonEmpty("ocrText", "documentLayout"),
	})
	if err != nil {
		return nil, err
	}

	s.Extraction, err = NewStage[ExtractInput, model.ExtractionResult](inv, Definition[ExtractInput]{
		Name:   StageExtraction,
		System: "You are an AI assistant tasked with extracting key data points from contract documents.",
		Template: `Analyze the following contract text and extract the relevant information to provide a concise summary and specific details as requested in the output schema.

When extracting dates (like effective date or expiration date), please adhere to the following:
- Recognize various common date formats (e.g., "Month DD, YYYY", "MM/DD/YYYY", "YYYY-MM-DD", "DD Month YYYY", "MM-DD-YY").
- Interpret natural language descriptions of dates. For example, "four months after start date", "the first Monday of June 2025", or "upon signing".
- If a date is relative to another date and that base date is also being extracted or is clearly identifiable in the text, calculate and provide the absolute date in YYYY-MM-DD format.
- If an absolute date cannot be confidently calculated, provide the natural language description as extracted in the date field.

Example for relative dates:
If "SOW Estimated Start Date" is "Aug, 5 2024" and "SOW Estimated End Date" is "Four months after start date", then:
- effectiveDate should ideally be "2024-08-05"
- expirationDate should ideally be "2024-12-05". If you cannot confidently calculate this, "Four months after start date" is an acceptable fallback.
{{if .UserInstructions}}
Additionally, please consider the following specific instructions or questions while performing the extraction:
{{.UserInstructions}}
{{end}}
Contract Text: {{.DocumentText}}
`,
		TightenInput: requireNonEmpty("documentText"),
		TightenOutput: func(s *jsonschema.Schema) {
			s.Properties["contractSummary"].MinLength = jsonschema.Ptr(1)
		},
	})
	if err != nil {
		return nil, err
	}

	s.Quality, err = NewStage[QualityInput, model.QualityAssessment](inv, Definition[QualityInput]{
		Name:   StageQuality,
		System: "You are an expert in contract analysis and data extraction quality assessment.",
		Template: `You are provided with the original contract text and the extracted data.
Your task is to assess the quality and completeness of the extracted data and provide a quality score, confidence level, a completeness boolean, and a justification.

Contract Text: {{.ContractText}}

Extracted Data: {{.ExtractedData}}

Consider the following when determining the quality score and confidence level:
- Accuracy of the extracted data compared to the original contract text.
- Completeness of the extracted data (i.e., whether all key data points have been extracted).
- Consistency of the extracted data.
- Potential ambiguity or errors in the extracted data.

Quality Score (0-1): Assign a score between 0 and 1 (inclusive) representing the overall quality of the extracted data.
Confidence Level: Assign a confidence level of "low", "medium", or "high" based on your assessment.
Is Complete: Is the data extraction complete, where no manual review is needed? (true/false)
Justification: Provide a brief justification for the assigned quality score and confidence level.
`,
		TightenInput: requireNonEmpty("extractedData", "contractText"),
		TightenOutput: func(s *jsonschema.Schema) {
			score := s.Properties["qualityScore"]
			score.Minimum = jsonschema.Ptr(0.0)
			score.Maximum = jsonschema.Ptr(1.0)
			s.Properties["confidenceLevel"].Enum = []any{model.ConfidenceLow, model.ConfidenceMedium, model.ConfidenceHigh}
		},
	})
	if err != nil {
		return nil, err
	}

	s.Breach, err = NewStage[BreachInput, model.BreachResult](inv, Definition[BreachInput]{
		Name:   StageBreach,
		System: "You are an AI assistant specialized in legal contract analysis.",
		Template: `You will receive extracted data from a contract and a set of predefined rules and conditions for breach detection.
Your task is to analyze the contract data against these rules and identify any potential breaches or non-compliance issues.

Contract Data:
{{.ContractData}}

Breach Conditions:
{{.BreachConditions}}

Based on the contract data and breach conditions, identify any potential breaches and provide a summary of your analysis.
`,
		TightenInput: requireNonEmpty("contractData", "breachConditions"),
	})
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func requireNonEmpty(props ...string) func(*jsonschema.Schema) {
	return func(s *jsonschema.Schema) {
		for _, p := range props {
			prop, ok := s.Properties[p]
			if !ok {
				panic(fmt.Sprintf("schema has no property %q", p))
			}
			prop.MinLength = jsonschema.Ptr(1)
		}
	}
}
