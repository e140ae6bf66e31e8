// Package pipeline runs uploaded contracts through OCR, extraction and quality assessment
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/AnTengye/contractwatch/model"
	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/prompt"
	"github.com/AnTengye/contractwatch/service"
)

// Options configures a Runner. Zero values select the defaults.
type Options struct {
	OCR            OCREngine // defaults to ModelOCR
	Archive        Archiver  // nil disables archiving
	MaxUploadBytes int64
}

// Runner owns the analysis of contracts from upload to quality assessment
type Runner struct {
	store    *service.SessionStore
	stages   *prompt.Stages
	ocr      OCREngine
	archive  Archiver
	maxBytes int64
	wg       sync.WaitGroup
}

// NewRunner creates a Runner
func NewRunner(store *service.SessionStore, stages *prompt.Stages, opts Options) *Runner {
	r := &Runner{
		store:    store,
		stages:   stages,
		ocr:      opts.OCR,
		archive:  opts.Archive,
		maxBytes: opts.MaxUploadBytes,
	}
	if r.ocr == nil {
		r.ocr = NewModelOCR(stages.OCR)
	}
	if r.maxBytes <= 0 || r.maxBytes > DefaultMaxUploadBytes {
		r.maxBytes = DefaultMaxUploadBytes
	}
	return r
}

// Submit validates the input and creates the contract record in status new.
// Nothing is stored when validation fails.
func (r *Runner) Submit(in *Input) (*model.Contract, error) {
	if err := validateInput(in, r.maxBytes); err != nil {
		return nil, err
	}
	c := &model.Contract{
		Name:              strings.TrimSpace(in.Name),
		Status:            model.StatusNew,
		LayoutDescription: in.LayoutDescription,
		UserInstructions:  in.UserInstructions,
	}
	if !in.IsPDF() {
		c.OriginalText = in.Text
	}
	return r.store.Add(c), nil
}

// Start runs the pipeline for a submitted contract in the background.
// The run is detached from ctx cancellation; use Wait to drain running pipelines.
func (r *Runner) Start(ctx context.Context, contractID string, in *Input) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.Run(ctx, contractID, in); err != nil {
			logger.Warn(logger.WithContract(ctx, contractID), "pipeline run failed", "error", err)
		}
	}()
}

// Wait blocks until every pipeline started with Start has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Analyze submits and runs a contract synchronously
func (r *Runner) Analyze(ctx context.Context, in *Input) (*model.Contract, error) {
	c, err := r.Submit(in)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, c.ID, in)
}

// Run executes every stage in order for the contract. Each stage's result is stored as soon as
// it is available. The first failure stops the run and moves the contract to status error.
func (r *Runner) Run(ctx context.Context, contractID string, in *Input) (*model.Contract, error) {
	ctx = logger.WithContract(ctx, contractID)
	logger.Info(ctx, "pipeline started", "pdf", in.IsPDF(), "layout", strings.TrimSpace(in.LayoutDescription) != "")

	if _, err := r.store.Update(contractID, model.ContractPatch{Status: ptr(model.StatusProcessing)}); err != nil {
		return nil, err
	}

	text, err := r.sourceText(ctx, contractID, in)
	if err != nil {
		return r.fail(ctx, contractID, prompt.StageOCR, err)
	}

	if strings.TrimSpace(in.LayoutDescription) != "" {
		improved, err := r.stages.OCRImprove.Invoke(ctx, prompt.ImproveInput{
			OCRText:        text,
			DocumentLayout: in.LayoutDescription,
		})
		if err != nil {
			return r.fail(ctx, contractID, prompt.StageOCRImprove, err)
		}
		if _, err := r.store.Update(contractID, model.ContractPatch{OCRImproved: improved}); err != nil {
			return nil, err
		}
		text = improved.ImprovedOCRText
	}

	extracted, err := r.stages.Extraction.Invoke(ctx, prompt.ExtractInput{
		DocumentText:     text,
		UserInstructions: in.UserInstructions,
	})
	if err != nil {
		return r.fail(ctx, contractID, prompt.StageExtraction, err)
	}
	model.NormalizeDates(extracted)
	if _, err := r.store.Update(contractID, model.ContractPatch{ExtractedData: extracted}); err != nil {
		return nil, err
	}

	extractedJSON, err := json.Marshal(extracted)
	if err != nil {
		return r.fail(ctx, contractID, prompt.StageQuality, err)
	}
	quality, err := r.stages.Quality.Invoke(ctx, prompt.QualityInput{
		ExtractedData: string(extractedJSON),
		ContractText:  text,
	})
	if err != nil {
		return r.fail(ctx, contractID, prompt.StageQuality, err)
	}

	c, err := r.store.Update(contractID, model.ContractPatch{
		QualityAssessment: quality,
		Status:            ptr(model.StatusAnalyzed),
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "pipeline finished", "quality_score", quality.QualityScore, "confidence", quality.ConfidenceLevel)
	return c, nil
}

// sourceText returns the text the analysis starts from: OCR output for PDFs, the pasted text otherwise
func (r *Runner) sourceText(ctx context.Context, contractID string, in *Input) (string, error) {
	if !in.IsPDF() {
		return in.Text, nil
	}

	if r.archive != nil {
		object, err := r.archive.ArchiveUpload(ctx, contractID, in.FileName, in.PDF)
		if err != nil {
			logger.Warn(ctx, "failed to archive upload", "error", err)
		} else if _, err := r.store.Update(contractID, model.ContractPatch{SourceObject: &object}); err != nil {
			return "", err
		}
	}

	text, err := r.ocr.ExtractText(ctx, contractID, prompt.DataURI(prompt.PDFMIMEType, in.PDF))
	if err != nil {
		return "", err
	}
	if _, err := r.store.Update(contractID, model.ContractPatch{OriginalText: &text}); err != nil {
		return "", err
	}
	return text, nil
}

func (r *Runner) fail(ctx context.Context, contractID, stage string, cause error) (*model.Contract, error) {
	logger.Error(ctx, "pipeline stage failed", "failed_stage", stage, "error", cause)

	msg := cause.Error()
	c, err := r.store.Update(contractID, model.ContractPatch{
		Status:      ptr(model.StatusError),
		FailedStage: &stage,
		ErrorMsg:    &msg,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (recording failure: %v)", cause, err)
	}
	if prompt.StageOf(cause) != "" {
		return c, cause
	}
	return c, fmt.Errorf("stage %s: %w", stage, cause)
}

func ptr[T any](v T) *T {
	return &v
}
