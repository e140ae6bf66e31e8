package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractwatch/breach"
	"github.com/AnTengye/contractwatch/export"
	"github.com/AnTengye/contractwatch/model"
	"github.com/AnTengye/contractwatch/penalty"
	"github.com/AnTengye/contractwatch/pipeline"
	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/service"
)

type ContractHandler struct {
	store          *service.SessionStore
	runner         *pipeline.Runner
	detector       *breach.Detector
	calculator     *penalty.Calculator
	maxUploadBytes int64
}

func NewContractHandler(store *service.SessionStore, runner *pipeline.Runner, detector *breach.Detector, calculator *penalty.Calculator, maxUploadBytes int64) *ContractHandler {
	if maxUploadBytes <= 0 || maxUploadBytes > pipeline.DefaultMaxUploadBytes {
		maxUploadBytes = pipeline.DefaultMaxUploadBytes
	}
	return &ContractHandler{
		store:          store,
		runner:         runner,
		detector:       detector,
		calculator:     calculator,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload accepts a PDF and starts its analysis in the background
func (h *ContractHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File exceeds %d bytes", h.maxUploadBytes)})
		return
	}

	// A declared type other than PDF is rejected; a missing or generic one is sniffed
	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.Contains(contentType, "pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	h.submit(c, &pipeline.Input{
		Name:              name,
		FileName:          header.Filename,
		PDF:               data,
		LayoutDescription: c.PostForm("layoutDescription"),
		UserInstructions:  c.PostForm("userInstructions"),
	})
}

type textRequest struct {
	Name              string `json:"name"`
	Text              string `json:"text"`
	LayoutDescription string `json:"layoutDescription"`
	UserInstructions  string `json:"userInstructions"`
}

// SubmitText accepts pasted contract text and starts its analysis in the background
func (h *ContractHandler) SubmitText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.submit(c, &pipeline.Input{
		Name:              req.Name,
		Text:              req.Text,
		LayoutDescription: req.LayoutDescription,
		UserInstructions:  req.UserInstructions,
	})
}

func (h *ContractHandler) submit(c *gin.Context, in *pipeline.Input) {
	contract, err := h.runner.Submit(in)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := logger.WithContract(c.Request.Context(), contract.ID)
	logger.Info(ctx, "contract submitted", "name", contract.Name, "pdf", in.IsPDF(), "bytes", len(in.PDF))
	h.runner.Start(ctx, contract.ID, in)

	c.JSON(http.StatusAccepted, gin.H{
		"id":     contract.ID,
		"name":   contract.Name,
		"status": contract.Status,
	})
}

// List returns contract summaries, newest first
func (h *ContractHandler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !model.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status " + status})
		return
	}

	contracts := h.store.List(service.ListFilter{Search: c.Query("search"), Status: status})

	result := make([]gin.H, len(contracts))
	for i, contract := range contracts {
		result[i] = summary(contract)
	}

	c.JSON(http.StatusOK, gin.H{"contracts": result})
}

func summary(contract *model.Contract) gin.H {
	s := gin.H{
		"id":         contract.ID,
		"name":       contract.Name,
		"status":     contract.Status,
		"uploadedAt": contract.UploadedAt,
		"updatedAt":  contract.UpdatedAt,
	}
	if contract.ExtractedData != nil {
		s["partiesInvolved"] = contract.ExtractedData.PartiesInvolved
		s["expirationDate"] = contract.ExtractedData.ExpirationDate
	}
	if contract.QualityAssessment != nil {
		s["qualityScore"] = contract.QualityAssessment.QualityScore
	}
	return s
}

// Get returns a single contract with everything derived from it
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.store.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// GetStatus returns the processing status of a contract
func (h *ContractHandler) GetStatus(c *gin.Context) {
	contract, err := h.store.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          contract.ID,
		"status":      contract.Status,
		"failedStage": contract.FailedStage,
		"errorMsg":    contract.ErrorMsg,
	})
}

// BreachRules returns the rules a contract will be checked with
func (h *ContractHandler) BreachRules(c *gin.Context) {
	contract, err := h.store.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": breach.RulesFor(contract)})
}

type breachRequest struct {
	Rules []model.BreachRule `json:"rules"`
}

// DetectBreaches runs breach detection. Without a body the contract's previous rules are used.
func (h *ContractHandler) DetectBreaches(c *gin.Context) {
	var req breachRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	record, err := h.detector.Detect(c.Request.Context(), c.Param("id"), req.Rules)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

type penaltyRequest struct {
	Rules []model.PenaltyRule `json:"rules"`
}

// CalculatePenalties replaces the contract's penalties with those computed from the rules
func (h *ContractHandler) CalculatePenalties(c *gin.Context) {
	var req penaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id := c.Param("id")
	contract, err := h.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	penalties, err := h.calculator.Calculate(contract, req.Rules)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.store.SetPenalties(id, penalties); err != nil {
		writeError(c, err)
		return
	}

	logger.Info(logger.WithContract(c.Request.Context(), id), "penalties calculated", "count", len(penalties))
	c.JSON(http.StatusOK, gin.H{"penalties": penalties})
}

// AddAlert attaches an alert to a contract
func (h *ContractHandler) AddAlert(c *gin.Context) {
	alert, ok := bindAlert(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.store.AppendAlerts(id, alert); err != nil {
		writeError(c, err)
		return
	}
	contract, err := h.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"alerts": contract.Alerts})
}

// Export downloads one contract as CSV
func (h *ContractHandler) Export(c *gin.Context) {
	contract, err := h.store.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	writeCSV(c, export.FileName(contract.Name), contract)
}

// ExportAll downloads every contract as CSV
func (h *ContractHandler) ExportAll(c *gin.Context) {
	writeCSV(c, "contracts_export.csv", h.store.List(service.ListFilter{})...)
}

func writeCSV(c *gin.Context, fileName string, contracts ...*model.Contract) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, contracts...); err != nil {
		logger.Error(c.Request.Context(), "csv export failed", "error", err)
	}
}
