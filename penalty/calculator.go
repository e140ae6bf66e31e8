// Package penalty turns user-declared penalty rules into monetary line items
package penalty

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/AnTengye/contractwatch/breach"
	"github.com/AnTengye/contractwatch/config"
	"github.com/AnTengye/contractwatch/model"
)

// ErrInvalidRule is returned for rules with an unknown type or a negative figure
var ErrInvalidRule = errors.New("invalid penalty rule")

const (
	defaultDescription  = "Calculated Penalty"
	fallbackDescription = "General penalty for detected breaches"
)

// Calculator computes penalties for a contract
type Calculator struct {
	Extractor      BaseAmountExtractor
	DefaultBase    float64
	FallbackAmount float64
	Currency       string
	newID          func() string
}

// NewCalculator creates a Calculator using the FirstNumber extractor
func NewCalculator(cfg *config.PenaltyConfig) *Calculator {
	return &Calculator{
		Extractor:      FirstNumber{},
		DefaultBase:    cfg.DefaultBaseAmount,
		FallbackAmount: cfg.FallbackAmount,
		Currency:       cfg.Currency,
		newID:          func() string { return uuid.New().String() },
	}
}

// Validate checks rule types and figures. AppliesToField is a free-form label and is not checked.
func Validate(rules []model.PenaltyRule) error {
	var errs []error
	for i, r := range rules {
		switch r.PenaltyType {
		case model.PenaltyFixed, model.PenaltyPercentage:
		default:
			errs = append(errs, fmt.Errorf("rule %d: unknown penalty type %q", i, r.PenaltyType))
		}
		if r.Amount != nil && *r.Amount < 0 {
			errs = append(errs, fmt.Errorf("rule %d: negative amount", i))
		}
		if r.Percentage != nil && *r.Percentage < 0 {
			errs = append(errs, fmt.Errorf("rule %d: negative percentage", i))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRule, errors.Join(errs...))
}

// Calculate returns the full penalty list for c under rules. The result is meant to replace
// the contract's existing penalties.
func (calc *Calculator) Calculate(c *model.Contract, rules []model.PenaltyRule) ([]model.CalculatedPenalty, error) {
	if err := Validate(rules); err != nil {
		return nil, err
	}

	var breaches []string
	if c.BreachDetection != nil && c.BreachDetection.Result != nil {
		breaches = c.BreachDetection.Result.PotentialBreaches
	}

	penalties := []model.CalculatedPenalty{}
	for _, r := range rules {
		amount := calc.amount(c.ExtractedData, r)
		if amount <= 0 {
			continue
		}
		description := r.ConditionText
		if strings.TrimSpace(description) == "" {
			description = defaultDescription
		}
		p := model.CalculatedPenalty{
			ID:          calc.newID(),
			Description: description,
			Amount:      amount,
			Currency:    calc.Currency,
		}
		if i := breach.MatchesCondition(r.ConditionText, breaches); i >= 0 {
			p.BreachID = breach.BreachID(i)
		}
		penalties = append(penalties, p)
	}

	if len(penalties) == 0 && len(breaches) > 0 {
		penalties = append(penalties, model.CalculatedPenalty{
			ID:          calc.newID(),
			Description: fallbackDescription,
			Amount:      calc.FallbackAmount,
			Currency:    calc.Currency,
		})
	}
	return penalties, nil
}

func (calc *Calculator) amount(e *model.ExtractionResult, r model.PenaltyRule) float64 {
	switch r.PenaltyType {
	case model.PenaltyFixed:
		if r.Amount == nil {
			return 0
		}
		return *r.Amount
	case model.PenaltyPercentage:
		if r.Percentage == nil {
			return 0
		}
		return calc.baseAmount(e) * *r.Percentage / 100
	}
	return 0
}

// baseAmount is the first number in the financial terms, or DefaultBase when there is none
func (calc *Calculator) baseAmount(e *model.ExtractionResult) float64 {
	if e == nil {
		return calc.DefaultBase
	}
	if v, ok := calc.Extractor.Extract(e.FinancialTerms); ok {
		return v
	}
	return calc.DefaultBase
}
