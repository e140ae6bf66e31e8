package handler

import (
	"net/http"
	"testing"

	"github.com/AnTengye/contractwatch/llm/llmtest"
	"github.com/AnTengye/contractwatch/model"
)

func TestDashboardHandler(t *testing.T) {
	s := newTestServer(t, llmtest.New())
	extracted := &model.ExtractionResult{ContractSummary: "s", PartiesInvolved: []string{"Acme"}}
	addContract(t, s.store, "First", model.StatusAnalyzed, extracted)
	addContract(t, s.store, "Second", model.StatusAnalyzed, extracted)
	addContract(t, s.store, "Third", model.StatusError, nil)
	addContract(t, s.store, "Fourth", model.StatusNew, nil)
	s.store.AddAlert(model.Alert{Type: model.AlertCustom, Message: "open", Severity: model.SeverityMedium})

	w := s.do(http.MethodGet, "/api/dashboard", nil, "")
	assertStatus(t, w, http.StatusOK)

	type dashboard struct {
		Total      int              `json:"total"`
		New        int              `json:"new"`
		Analyzed   int              `json:"analyzed"`
		Error      int              `json:"error"`
		OpenAlerts int              `json:"openAlerts"`
		Recent     []map[string]any `json:"recent"`
	}
	resp := decode[dashboard](t, w)

	if resp.Total != 4 || resp.New != 1 || resp.Analyzed != 2 || resp.Error != 1 {
		t.Errorf("Unexpected counts %+v", resp)
	}
	if resp.OpenAlerts != 1 {
		t.Errorf("Expected 1 open alert, got %d", resp.OpenAlerts)
	}
	if len(resp.Recent) != 3 {
		t.Fatalf("Expected 3 recent contracts, got %d", len(resp.Recent))
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, llmtest.New())

	w := s.do(http.MethodGet, "/health", nil, "")
	assertStatus(t, w, http.StatusOK)

	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", resp["status"])
	}
	if resp["model"] != "scripted" {
		t.Errorf("Expected model name, got %v", resp["model"])
	}
}
