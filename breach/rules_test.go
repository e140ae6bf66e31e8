package breach

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AnTengye/contractwatch/model"
)

func TestSerializeKeepsOrder(t *testing.T) {
	got, err := Serialize(DefaultRules())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	want := `[{"field":"expirationDate","operator":"exists","description":"Contract must have an expiration date."},` +
		`{"field":"partiesInvolved","operator":"greater_than","value":1,"description":"Contract must involve at least two parties."},` +
		`{"field":"financialTerms","operator":"exists","description":"Contract should specify financial terms."},` +
		`{"field":"terminationClauses","operator":"exists","description":"Contract should include termination clauses."}]`
	if got != want {
		t.Errorf("Serialize() =\n%s\nwant\n%s", got, want)
	}

	empty, _ := Serialize(nil)
	if empty != "[]" {
		t.Errorf("Expected [] for no rules, got %s", empty)
	}
}

func TestParseRoundTrip(t *testing.T) {
	s, _ := Serialize(DefaultRules())
	rules, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(DefaultRules(), rules); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := Parse("not json"); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("Expected ErrInvalidRule, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    model.BreachRule
		wantErr bool
	}{
		{"exists", model.BreachRule{Field: "expirationDate", Operator: model.OpExists}, false},
		{"not exists", model.BreachRule{Field: "breachClauses", Operator: model.OpNotExists}, false},
		{"contains", model.BreachRule{Field: "contractSummary", Operator: model.OpContains, Value: "indemnity"}, false},
		{"equals bool", model.BreachRule{Field: "financialTerms", Operator: model.OpEquals, Value: true}, false},
		{"greater than number", model.BreachRule{Field: "partiesInvolved", Operator: model.OpGreaterThan, Value: float64(1)}, false},
		{"less than numeric string", model.BreachRule{Field: "partiesInvolved", Operator: model.OpLessThan, Value: "5"}, false},
		{"unknown field", model.BreachRule{Field: "total_contract_value", Operator: model.OpExists}, true},
		{"unknown operator", model.BreachRule{Field: "expirationDate", Operator: "before"}, true},
		{"contains without value", model.BreachRule{Field: "contractSummary", Operator: model.OpContains}, true},
		{"contains blank value", model.BreachRule{Field: "contractSummary", Operator: model.OpContains, Value: "  "}, true},
		{"greater than text", model.BreachRule{Field: "partiesInvolved", Operator: model.OpGreaterThan, Value: "many"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]model.BreachRule{tt.rule})
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("Expected ErrInvalidRule, got %v", err)
			}
		})
	}

	if err := Validate(DefaultRules()); err != nil {
		t.Errorf("Expected default rules to be valid, got %v", err)
	}
}

func TestMatchesCondition(t *testing.T) {
	breaches := []string{"Missing termination clause", "Late payment of invoice #42"}

	tests := []struct {
		condition string
		want      int
	}{
		{"Late Payment", 1},
		{"termination without notice", 0},
		{"Confidentiality breach", -1},
		{"", -1},
		{"   ", -1},
	}
	for _, tt := range tests {
		if got := MatchesCondition(tt.condition, breaches); got != tt.want {
			t.Errorf("MatchesCondition(%q) = %d, want %d", tt.condition, got, tt.want)
		}
	}
	if BreachID(1) != "breach-1" {
		t.Errorf("Unexpected breach id %s", BreachID(1))
	}
}
