package breach

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AnTengye/contractwatch/model"
)

// ErrInvalidRule is returned for rules naming an unknown field or operator, or missing a value
var ErrInvalidRule = errors.New("invalid breach rule")

// DefaultRules returns the rule set used when a contract has none of its own
func DefaultRules() []model.BreachRule {
	return []model.BreachRule{
		{Field: "expirationDate", Operator: model.OpExists, Description: "Contract must have an expiration date."},
		{Field: "partiesInvolved", Operator: model.OpGreaterThan, Value: float64(1), Description: "Contract must involve at least two parties."},
		{Field: "financialTerms", Operator: model.OpExists, Description: "Contract should specify financial terms."},
		{Field: "terminationClauses", Operator: model.OpExists, Description: "Contract should include termination clauses."},
	}
}

// Serialize renders rules as the JSON array handed to the model, in rule order
func Serialize(rules []model.BreachRule) (string, error) {
	if rules == nil {
		rules = []model.BreachRule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("serialize rules: %w", err)
	}
	return string(data), nil
}

// Parse reads rules back from their serialized form
func Parse(conditions string) ([]model.BreachRule, error) {
	var rules []model.BreachRule
	if err := json.Unmarshal([]byte(conditions), &rules); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return rules, nil
}

// Validate checks every rule against the extraction fields and operator set
func Validate(rules []model.BreachRule) error {
	var errs []error
	for i, r := range rules {
		if err := validateRule(r); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRule, errors.Join(errs...))
}

func validateRule(r model.BreachRule) error {
	if !model.IsExtractionField(r.Field) {
		return fmt.Errorf("unknown field %q", r.Field)
	}
	if !slices.Contains(model.Operators, r.Operator) {
		return fmt.Errorf("unknown operator %q", r.Operator)
	}

	switch r.Operator {
	case model.OpExists, model.OpNotExists:
		return nil
	case model.OpGreaterThan, model.OpLessThan:
		if _, ok := numeric(r.Value); !ok {
			return fmt.Errorf("operator %s needs a numeric value", r.Operator)
		}
	default:
		switch v := r.Value.(type) {
		case nil:
			return fmt.Errorf("operator %s needs a value", r.Operator)
		case string:
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("operator %s needs a value", r.Operator)
			}
		case float64, int, bool, json.Number:
		default:
			return fmt.Errorf("unsupported value type %T", r.Value)
		}
	}
	return nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// MatchesCondition reports the index of the first breach mentioning the first word of
// conditionText, case-insensitively. It returns -1 when nothing matches.
func MatchesCondition(conditionText string, breaches []string) int {
	fields := strings.Fields(strings.ToLower(conditionText))
	if len(fields) == 0 {
		return -1
	}
	word := fields[0]
	for i, b := range breaches {
		if strings.Contains(strings.ToLower(b), word) {
			return i
		}
	}
	return -1
}

// BreachID names the i-th potential breach of a detection result
func BreachID(i int) string {
	return "breach-" + strconv.Itoa(i)
}
