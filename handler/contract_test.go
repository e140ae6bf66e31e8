package handler

import (
	"bytes"
	"encoding/csv"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/AnTengye/contractwatch/breach"
	"github.com/AnTengye/contractwatch/export"
	"github.com/AnTengye/contractwatch/llm/llmtest"
	"github.com/AnTengye/contractwatch/model"
)

func multipartUpload(t *testing.T, fields map[string]string, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart failed: %v", err)
		}
		part.Write(data)
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func TestContractHandlerUpload(t *testing.T) {
	s := newTestServer(t, scriptAnalysis(llmtest.New()))

	body, ct := multipartUpload(t, map[string]string{"userInstructions": "Who pays rent?"}, "office lease.pdf", "application/pdf", samplePDF)
	w := s.do(http.MethodPost, "/api/contracts/upload", body, ct)
	assertStatus(t, w, http.StatusAccepted)

	resp := decode[map[string]string](t, w)
	if resp["name"] != "office lease" {
		t.Errorf("Expected name from file name, got %q", resp["name"])
	}
	if resp["status"] != model.StatusNew {
		t.Errorf("Expected status new, got %q", resp["status"])
	}

	s.runner.Wait()

	w = s.do(http.MethodGet, "/api/contracts/"+resp["id"], nil, "")
	assertStatus(t, w, http.StatusOK)
	contract := decode[model.Contract](t, w)
	if contract.Status != model.StatusAnalyzed {
		t.Fatalf("Expected analyzed, got %s (%s)", contract.Status, contract.ErrorMsg)
	}
	if contract.ExtractedData.ExpirationDate != "2024-12-05" {
		t.Errorf("Expected normalized expiration date, got %s", contract.ExtractedData.ExpirationDate)
	}
	if contract.UserInstructions != "Who pays rent?" {
		t.Errorf("Expected user instructions to be kept, got %q", contract.UserInstructions)
	}
}

func TestContractHandlerUploadRejected(t *testing.T) {
	s := newTestServer(t, llmtest.New())

	tests := []struct {
		name        string
		fields      map[string]string
		fileName    string
		contentType string
		data        []byte
	}{
		{"no file", map[string]string{"name": "Lease"}, "", "", nil},
		{"declared non pdf", map[string]string{"name": "Lease"}, "lease.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK")},
		{"sniffed non pdf", map[string]string{"name": "Lease"}, "lease.pdf", "application/octet-stream", []byte("just some text")},
		{"short name", map[string]string{"name": "ab"}, "lease.pdf", "application/pdf", samplePDF},
		{"oversized", map[string]string{"name": "Lease"}, "lease.pdf", "application/pdf", append(append([]byte{}, samplePDF...), make([]byte, 5<<20)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartUpload(t, tt.fields, tt.fileName, tt.contentType, tt.data)
			w := s.do(http.MethodPost, "/api/contracts/upload", body, ct)
			assertStatus(t, w, http.StatusBadRequest)
		})
	}

	if s.store.Count() != 0 {
		t.Errorf("Expected no contract to be created, got %d", s.store.Count())
	}
	if s.model.CallCount() != 0 {
		t.Errorf("Expected no model calls, got %d", s.model.CallCount())
	}
}

func TestContractHandlerSubmitText(t *testing.T) {
	s := newTestServer(t, scriptAnalysis(llmtest.New()))

	w := s.doJSON(http.MethodPost, "/api/contracts/text", map[string]string{
		"name": "Pasted lease",
		"text": "Lease between Acme and Globex.",
	})
	assertStatus(t, w, http.StatusAccepted)
	id := decode[map[string]string](t, w)["id"]

	s.runner.Wait()

	w = s.do(http.MethodGet, "/api/contracts/"+id+"/status", nil, "")
	assertStatus(t, w, http.StatusOK)
	status := decode[map[string]string](t, w)
	if status["status"] != model.StatusAnalyzed {
		t.Errorf("Expected analyzed, got %v", status)
	}
	if s.model.CallCount() != 2 {
		t.Errorf("Expected extraction and quality calls only, got %d", s.model.CallCount())
	}

	w = s.doJSON(http.MethodPost, "/api/contracts/text", map[string]string{"name": "Lease", "text": "  "})
	assertStatus(t, w, http.StatusBadRequest)
}

func TestContractHandlerStatusReportsFailedStage(t *testing.T) {
	m := llmtest.New().On(keyExtraction, llmtest.Fail("quota exceeded"))
	s := newTestServer(t, m)

	w := s.doJSON(http.MethodPost, "/api/contracts/text", map[string]string{"name": "Lease", "text": "text"})
	assertStatus(t, w, http.StatusAccepted)
	id := decode[map[string]string](t, w)["id"]

	s.runner.Wait()

	w = s.do(http.MethodGet, "/api/contracts/"+id+"/status", nil, "")
	status := decode[map[string]string](t, w)
	if status["status"] != model.StatusError {
		t.Errorf("Expected error, got %s", status["status"])
	}
	if status["failedStage"] != "extraction" {
		t.Errorf("Expected failed stage extraction, got %q", status["failedStage"])
	}
	if !strings.Contains(status["errorMsg"], "quota exceeded") {
		t.Errorf("Expected error message, got %q", status["errorMsg"])
	}
}

func TestContractHandlerList(t *testing.T) {
	s := newTestServer(t, llmtest.New())
	addContract(t, s.store, "Office Lease", model.StatusAnalyzed, &model.ExtractionResult{ContractSummary: "s", PartiesInvolved: []string{"Acme"}})
	addContract(t, s.store, "NDA", model.StatusNew, nil)
	addContract(t, s.store, "Supply deal", model.StatusError, &model.ExtractionResult{ContractSummary: "s", PartiesInvolved: []string{"Globex"}})

	tests := []struct {
		name     string
		query    string
		expected int
		status   int
	}{
		{"all", "", 3, http.StatusOK},
		{"by status", "?status=analyzed", 1, http.StatusOK},
		{"search name", "?search=lease", 1, http.StatusOK},
		{"search party", "?search=GLOBEX", 1, http.StatusOK},
		{"no match", "?search=zzz", 0, http.StatusOK},
		{"unknown status", "?status=completed", 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/contracts"+tt.query, nil, "")
			assertStatus(t, w, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			resp := decode[map[string][]map[string]any](t, w)
			if len(resp["contracts"]) != tt.expected {
				t.Errorf("Expected %d contracts, got %d", tt.expected, len(resp["contracts"]))
			}
		})
	}
}

func TestContractHandlerNotFound(t *testing.T) {
	s := newTestServer(t, llmtest.New())

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/contracts/missing", nil},
		{http.MethodGet, "/api/contracts/missing/status", nil},
		{http.MethodGet, "/api/contracts/missing/breach-rules", nil},
		{http.MethodPost, "/api/contracts/missing/breaches", nil},
		{http.MethodPost, "/api/contracts/missing/penalties", map[string]any{"rules": []any{}}},
		{http.MethodPost, "/api/contracts/missing/alerts", map[string]string{"message": "m", "severity": "low"}},
		{http.MethodGet, "/api/contracts/missing/export", nil},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := s.doJSON(p.method, p.path, p.body)
			assertStatus(t, w, http.StatusNotFound)
		})
	}
}

func TestContractHandlerBreaches(t *testing.T) {
	m := llmtest.New().On(keyBreach, llmtest.JSON(model.BreachResult{
		PotentialBreaches: []string{"Late payment of rent"},
		Summary:           "One issue",
	}))
	s := newTestServer(t, m)
	c := addContract(t, s.store, "Lease", model.StatusAnalyzed, &model.ExtractionResult{
		ContractSummary: "Lease", PartiesInvolved: []string{"Acme", "Globex"},
	})
	pending := addContract(t, s.store, "Draft", model.StatusNew, nil)

	w := s.do(http.MethodGet, "/api/contracts/"+c.ID+"/breach-rules", nil, "")
	assertStatus(t, w, http.StatusOK)
	rules := decode[map[string][]model.BreachRule](t, w)["rules"]
	if len(rules) != len(breach.DefaultRules()) {
		t.Errorf("Expected default rules, got %d", len(rules))
	}

	custom := []model.BreachRule{{Field: "financialTerms", Operator: model.OpContains, Value: "late fee", Description: "late fees defined"}}
	w = s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/breaches", map[string]any{"rules": custom})
	assertStatus(t, w, http.StatusOK)
	record := decode[model.BreachDetectionRecord](t, w)
	if record.Result == nil || len(record.Result.PotentialBreaches) != 1 {
		t.Fatalf("Expected one breach, got %+v", record.Result)
	}

	w = s.do(http.MethodGet, "/api/contracts/"+c.ID+"/breach-rules", nil, "")
	rules = decode[map[string][]model.BreachRule](t, w)["rules"]
	if len(rules) != 1 || rules[0].Field != "financialTerms" {
		t.Errorf("Expected the custom rules to be remembered, got %+v", rules)
	}

	w = s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/breaches", nil)
	assertStatus(t, w, http.StatusOK)

	w = s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/breaches", map[string]any{
		"rules": []model.BreachRule{{Field: "total_value", Operator: model.OpExists}},
	})
	assertStatus(t, w, http.StatusBadRequest)

	w = s.doJSON(http.MethodPost, "/api/contracts/"+pending.ID+"/breaches", nil)
	assertStatus(t, w, http.StatusConflict)

	w = s.do(http.MethodPost, "/api/contracts/"+c.ID+"/breaches", strings.NewReader("{"), "application/json")
	assertStatus(t, w, http.StatusBadRequest)

	if m.CallCount() != 2 {
		t.Errorf("Expected 2 model calls, got %d", m.CallCount())
	}
}

func TestContractHandlerBreachesModelFailure(t *testing.T) {
	m := llmtest.New().On(keyBreach, llmtest.Reply{Text: `{"summary": "missing list"}`})
	s := newTestServer(t, m)
	c := addContract(t, s.store, "Lease", model.StatusAnalyzed, &model.ExtractionResult{ContractSummary: "Lease", PartiesInvolved: []string{"Acme"}})

	w := s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/breaches", nil)
	assertStatus(t, w, http.StatusBadGateway)
	if resp := decode[map[string]string](t, w); resp["stage"] != "breach_detection" {
		t.Errorf("Expected stage breach_detection, got %q", resp["stage"])
	}
}

func TestContractHandlerPenalties(t *testing.T) {
	s := newTestServer(t, llmtest.New())
	c := addContract(t, s.store, "Lease", model.StatusAnalyzed, &model.ExtractionResult{ContractSummary: "Lease", PartiesInvolved: []string{"Acme"}})

	rules := []model.PenaltyRule{{ConditionText: "Late delivery", PenaltyType: model.PenaltyPercentage, Percentage: ptr(5.0)}}
	w := s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/penalties", map[string]any{"rules": rules})
	assertStatus(t, w, http.StatusOK)

	penalties := decode[map[string][]model.CalculatedPenalty](t, w)["penalties"]
	if len(penalties) != 1 || penalties[0].Amount != 500 {
		t.Fatalf("Expected a single 500 penalty, got %+v", penalties)
	}

	stored, _ := s.store.Get(c.ID)
	if len(stored.Penalties) != 1 {
		t.Errorf("Expected penalties to be stored, got %d", len(stored.Penalties))
	}

	w = s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/penalties", map[string]any{
		"rules": []model.PenaltyRule{{ConditionText: "x", PenaltyType: "compound"}},
	})
	assertStatus(t, w, http.StatusBadRequest)
}

func TestContractHandlerAddAlert(t *testing.T) {
	s := newTestServer(t, llmtest.New())
	c := addContract(t, s.store, "Lease", model.StatusNew, nil)

	w := s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/alerts", map[string]string{
		"type": model.AlertPaymentDue, "message": "Rent due", "severity": model.SeverityMedium,
	})
	assertStatus(t, w, http.StatusCreated)
	alerts := decode[map[string][]model.Alert](t, w)["alerts"]
	if len(alerts) != 1 || alerts[0].ID == "" {
		t.Fatalf("Expected one alert with an id, got %+v", alerts)
	}

	w = s.doJSON(http.MethodPost, "/api/contracts/"+c.ID+"/alerts", map[string]string{"message": "x", "severity": "urgent"})
	assertStatus(t, w, http.StatusBadRequest)
}

func TestContractHandlerExport(t *testing.T) {
	s := newTestServer(t, llmtest.New())
	c := addContract(t, s.store, "Office Lease", model.StatusAnalyzed, &model.ExtractionResult{
		ContractSummary: "Lease, with commas", PartiesInvolved: []string{"Acme", "Globex"},
	})
	addContract(t, s.store, "NDA", model.StatusNew, nil)

	w := s.do(http.MethodGet, "/api/contracts/"+c.ID+"/export", nil, "")
	assertStatus(t, w, http.StatusOK)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, export.FileName("Office Lease")) {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Unexpected Content-Type %q", ct)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected header and one row, got %d", len(records))
	}
	if records[1][0] != c.ID || records[1][6] != "Lease, with commas" || records[1][9] != "Acme; Globex" {
		t.Errorf("Unexpected row %v", records[1])
	}

	w = s.do(http.MethodGet, "/api/export", nil, "")
	assertStatus(t, w, http.StatusOK)
	records, err = csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected header and two rows, got %d", len(records))
	}
}
