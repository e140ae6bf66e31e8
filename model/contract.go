package model

import (
	"time"
)

// Contract is one uploaded contract document and everything derived from it
type Contract struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	UploadedAt        time.Time              `json:"uploadedAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	Status            string                 `json:"status"` // new, processing, analyzed, error
	OriginalText      string                 `json:"originalText,omitempty"`
	LayoutDescription string                 `json:"layoutDescription,omitempty"`
	UserInstructions  string                 `json:"userInstructions,omitempty"`
	SourceObject      string                 `json:"sourceObject,omitempty"`
	OCRImproved       *OCRImprovement        `json:"ocrImproved,omitempty"`
	ExtractedData     *ExtractionResult      `json:"extractedData,omitempty"`
	QualityAssessment *QualityAssessment     `json:"qualityAssessment,omitempty"`
	BreachDetection   *BreachDetectionRecord `json:"breachDetection,omitempty"`
	Penalties         []CalculatedPenalty    `json:"penalties,omitempty"`
	Alerts            []Alert                `json:"alerts,omitempty"`
	FailedStage       string                 `json:"failedStage,omitempty"`
	ErrorMsg          string                 `json:"errorMsg,omitempty"`
}

// Contract status constants
const (
	StatusNew        = "new"
	StatusProcessing = "processing"
	StatusAnalyzed   = "analyzed"
	StatusError      = "error"
)

var statusRank = map[string]int{
	StatusNew:        0,
	StatusProcessing: 1,
	StatusAnalyzed:   2,
	StatusError:      2,
}

// ValidStatus reports whether s is a known lifecycle status
func ValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether a contract may move from one status to another.
// Statuses only move forward; analyzed and error are terminal.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	f, ok := statusRank[from]
	if !ok {
		return false
	}
	t, ok := statusRank[to]
	if !ok {
		return false
	}
	return t > f
}

// OCRImprovement is the output of the layout-aware OCR correction stage
type OCRImprovement struct {
	ImprovedOCRText  string `json:"improvedOcrText" jsonschema:"The OCR text, improved by AI to account for layout."`
	LayoutAssessment string `json:"layoutAssessment" jsonschema:"An assessment of the document layout, highlighting potential issues."`
}

// ExtractionResult holds the structured fields pulled from contract text
type ExtractionResult struct {
	ContractSummary    string   `json:"contractSummary" jsonschema:"A concise summary of the contract including key data points."`
	EffectiveDate      string   `json:"effectiveDate,omitempty" jsonschema:"The date when the contract becomes effective. Should be in YYYY-MM-DD format if possible."`
	ExpirationDate     string   `json:"expirationDate,omitempty" jsonschema:"The date when the contract expires. Should be in YYYY-MM-DD format if possible."`
	PartiesInvolved    []string `json:"partiesInvolved" jsonschema:"List of parties involved in the contract."`
	FinancialTerms     string   `json:"financialTerms,omitempty" jsonschema:"Summary of financial terms (amounts, payment terms, etc.)."`
	Conditions         []string `json:"conditions,omitempty" jsonschema:"Key conditions, obligations, and penalties in the contract."`
	BreachClauses      []string `json:"breachClauses,omitempty" jsonschema:"Clauses specifying conditions that constitute a breach of contract."`
	TerminationClauses []string `json:"terminationClauses,omitempty" jsonschema:"Clauses outlining the conditions for contract termination."`
}

// ExtractionFields lists the JSON names of ExtractionResult, in declaration order.
// Breach and penalty rules may only reference these.
var ExtractionFields = []string{
	"contractSummary",
	"effectiveDate",
	"expirationDate",
	"partiesInvolved",
	"financialTerms",
	"conditions",
	"breachClauses",
	"terminationClauses",
}

// IsExtractionField reports whether name is a field of ExtractionResult
func IsExtractionField(name string) bool {
	for _, f := range ExtractionFields {
		if f == name {
			return true
		}
	}
	return false
}

// Confidence levels
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// QualityAssessment scores an extraction against its source text
type QualityAssessment struct {
	QualityScore    float64 `json:"qualityScore" jsonschema:"A score between 0 and 1 indicating the quality of the data extraction, where 1 is perfect."`
	ConfidenceLevel string  `json:"confidenceLevel" jsonschema:"The confidence level of the data extraction."`
	IsComplete      bool    `json:"isComplete" jsonschema:"Whether or not the data extraction is complete and no manual review is needed."`
	Justification   string  `json:"justification" jsonschema:"A justification for the assigned quality score and confidence level."`
}

// Rule operators
const (
	OpExists      = "exists"
	OpNotExists   = "not_exists"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpEquals      = "equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// Operators lists every rule operator
var Operators = []string{OpExists, OpNotExists, OpContains, OpNotContains, OpEquals, OpGreaterThan, OpLessThan}

// BreachRule is one user-declared condition the breach stage checks the extraction against.
// Value is a string, number or boolean when present.
type BreachRule struct {
	Field       string `json:"field"`
	Operator    string `json:"operator"`
	Value       any    `json:"value,omitempty"`
	Description string `json:"description"`
}

// BreachResult is the breach detection stage output
type BreachResult struct {
	PotentialBreaches []string `json:"potentialBreaches" jsonschema:"A list of potential breaches identified in the contract data."`
	Summary           string   `json:"summary" jsonschema:"A summary of the breach detection analysis."`
}

// BreachDetectionRecord keeps the rules a detection ran with next to its result
type BreachDetectionRecord struct {
	Rules      []BreachRule  `json:"rules"`
	Conditions string        `json:"conditions"`
	Result     *BreachResult `json:"result,omitempty"`
	DetectedAt *time.Time    `json:"detectedAt,omitempty"`
}

// Penalty types
const (
	PenaltyFixed      = "fixed"
	PenaltyPercentage = "percentage"
)

// PenaltyRule is a user-declared penalty
type PenaltyRule struct {
	ID             string   `json:"id,omitempty"`
	ConditionText  string   `json:"conditionText"`
	PenaltyType    string   `json:"penaltyType"`
	Amount         *float64 `json:"amount,omitempty"`
	Percentage     *float64 `json:"percentage,omitempty"`
	AppliesToField string   `json:"appliesToField,omitempty"`
}

// CalculatedPenalty is one monetary line item
type CalculatedPenalty struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	BreachID    string  `json:"breachId,omitempty"`
}

// Alert types
const (
	AlertExpiration = "expiration"
	AlertPaymentDue = "payment_due"
	AlertCustom     = "custom"
)

// Severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert is a notification either attached to a contract or standing alone
type Alert struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Message      string     `json:"message"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	Severity     string     `json:"severity"`
	TriggeredAt  *time.Time `json:"triggeredAt,omitempty"`
	Acknowledged bool       `json:"acknowledged"`
	ContractID   string     `json:"contractId,omitempty"`
	ContractName string     `json:"contractName,omitempty"`
}

// ValidAlert checks the enum fields of an alert
func ValidAlert(a *Alert) bool {
	switch a.Type {
	case AlertExpiration, AlertPaymentDue, AlertCustom:
	default:
		return false
	}
	switch a.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return false
	}
	return a.Message != ""
}

// ContractPatch carries the fields to overwrite on a stored contract. Nil fields are left alone.
type ContractPatch struct {
	Name              *string
	Status            *string
	OriginalText      *string
	SourceObject      *string
	OCRImproved       *OCRImprovement
	ExtractedData     *ExtractionResult
	QualityAssessment *QualityAssessment
	BreachDetection   *BreachDetectionRecord
	Penalties         []CalculatedPenalty
	Alerts            []Alert
	FailedStage       *string
	ErrorMsg          *string
}

// Clone returns a copy of c that shares no slices or pointers with it
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	out := *c
	if c.OCRImproved != nil {
		v := *c.OCRImproved
		out.OCRImproved = &v
	}
	if c.ExtractedData != nil {
		out.ExtractedData = c.ExtractedData.Clone()
	}
	if c.QualityAssessment != nil {
		v := *c.QualityAssessment
		out.QualityAssessment = &v
	}
	out.BreachDetection = c.BreachDetection.Clone()
	out.Penalties = append([]CalculatedPenalty(nil), c.Penalties...)
	out.Alerts = CloneAlerts(c.Alerts)
	return &out
}

// Clone returns a copy of a with its own DueDate and TriggeredAt
func (a Alert) Clone() Alert {
	if a.DueDate != nil {
		v := *a.DueDate
		a.DueDate = &v
	}
	if a.TriggeredAt != nil {
		v := *a.TriggeredAt
		a.TriggeredAt = &v
	}
	return a
}

// CloneAlerts deep-copies alerts. A nil slice stays nil.
func CloneAlerts(alerts []Alert) []Alert {
	if alerts == nil {
		return nil
	}
	out := make([]Alert, len(alerts))
	for i, a := range alerts {
		out[i] = a.Clone()
	}
	return out
}

// Clone returns a deep copy of e
func (e *ExtractionResult) Clone() *ExtractionResult {
	if e == nil {
		return nil
	}
	out := *e
	out.PartiesInvolved = append([]string(nil), e.PartiesInvolved...)
	out.Conditions = append([]string(nil), e.Conditions...)
	out.BreachClauses = append([]string(nil), e.BreachClauses...)
	out.TerminationClauses = append([]string(nil), e.TerminationClauses...)
	return &out
}

// Clone returns a deep copy of b
func (b *BreachDetectionRecord) Clone() *BreachDetectionRecord {
	if b == nil {
		return nil
	}
	out := *b
	out.Rules = append([]BreachRule(nil), b.Rules...)
	if b.Result != nil {
		r := *b.Result
		r.PotentialBreaches = append([]string(nil), b.Result.PotentialBreaches...)
		out.Result = &r
	}
	if b.DetectedAt != nil {
		t := *b.DetectedAt
		out.DetectedAt = &t
	}
	return &out
}
