package model

import (
	"testing"
	"time"
)

func TestContractStatusConstants(t *testing.T) {
	statuses := []string{StatusNew, StatusProcessing, StatusAnalyzed, StatusError}
	expected := []string{"new", "processing", "analyzed", "error"}

	for i, status := range statuses {
		if status != expected[i] {
			t.Errorf("Expected '%s', got '%s'", expected[i], status)
		}
		if !ValidStatus(status) {
			t.Errorf("Expected %s to be a valid status", status)
		}
	}
	if ValidStatus("completed") {
		t.Error("Expected unknown status to be invalid")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusNew, StatusProcessing, true},
		{StatusProcessing, StatusAnalyzed, true},
		{StatusProcessing, StatusError, true},
		{StatusNew, StatusError, true},
		{StatusProcessing, StatusProcessing, true},
		{StatusAnalyzed, StatusProcessing, false},
		{StatusError, StatusAnalyzed, false},
		{StatusAnalyzed, StatusError, false},
		{StatusProcessing, StatusNew, false},
		{"bogus", StatusAnalyzed, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsExtractionField(t *testing.T) {
	for _, f := range ExtractionFields {
		if !IsExtractionField(f) {
			t.Errorf("Expected %s to be an extraction field", f)
		}
	}
	if IsExtractionField("total_contract_value") {
		t.Error("Expected unknown field to be rejected")
	}
}

func TestContractClone(t *testing.T) {
	now := time.Now()
	c := &Contract{
		ID:     "test-id",
		Name:   "MSA",
		Status: StatusAnalyzed,
		ExtractedData: &ExtractionResult{
			ContractSummary: "summary",
			PartiesInvolved: []string{"Acme", "Globex"},
		},
		BreachDetection: &BreachDetectionRecord{
			Rules:  []BreachRule{{Field: "expirationDate", Operator: OpExists}},
			Result: &BreachResult{PotentialBreaches: []string{"late"}},
		},
		Alerts: []Alert{{ID: "a1", Type: AlertExpiration, DueDate: &now, TriggeredAt: &now}},
	}

	clone := c.Clone()
	clone.ExtractedData.PartiesInvolved[0] = "Changed"
	clone.BreachDetection.Result.PotentialBreaches[0] = "changed"
	clone.Alerts[0].Acknowledged = true
	*clone.Alerts[0].DueDate = now.AddDate(1, 0, 0)
	*clone.Alerts[0].TriggeredAt = now.AddDate(-1, 0, 0)

	if c.ExtractedData.PartiesInvolved[0] != "Acme" {
		t.Error("Expected clone to not share parties slice")
	}
	if c.BreachDetection.Result.PotentialBreaches[0] != "late" {
		t.Error("Expected clone to not share breach result")
	}
	if c.Alerts[0].Acknowledged {
		t.Error("Expected clone to not share alerts")
	}
	if !c.Alerts[0].DueDate.Equal(now) || !c.Alerts[0].TriggeredAt.Equal(now) {
		t.Error("Expected clone to not share alert timestamps")
	}
	if c.Alerts[0].DueDate == clone.Alerts[0].DueDate {
		t.Error("Expected distinct DueDate pointers")
	}

	var nilContract *Contract
	if nilContract.Clone() != nil {
		t.Error("Expected nil clone of nil contract")
	}
}

func TestValidAlert(t *testing.T) {
	if !ValidAlert(&Alert{Type: AlertCustom, Severity: SeverityLow, Message: "check"}) {
		t.Error("Expected alert to be valid")
	}
	if ValidAlert(&Alert{Type: "reminder", Severity: SeverityLow, Message: "check"}) {
		t.Error("Expected unknown type to be invalid")
	}
	if ValidAlert(&Alert{Type: AlertCustom, Severity: "urgent", Message: "check"}) {
		t.Error("Expected unknown severity to be invalid")
	}
	if ValidAlert(&Alert{Type: AlertCustom, Severity: SeverityHigh}) {
		t.Error("Expected empty message to be invalid")
	}
}
