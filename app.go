package main

import (
	"context"
	"fmt"

	"github.com/AnTengye/contractwatch/breach"
	"github.com/AnTengye/contractwatch/config"
	"github.com/AnTengye/contractwatch/llm"
	"github.com/AnTengye/contractwatch/penalty"
	"github.com/AnTengye/contractwatch/pipeline"
	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/prompt"
	"github.com/AnTengye/contractwatch/service"
)

// newModel builds the model backend; tests swap it for a scripted one
var newModel = llm.New

// app holds the services shared by the serve and analyze commands
type app struct {
	cfg        *config.Config
	model      llm.Model
	store      *service.SessionStore
	runner     *pipeline.Runner
	detector   *breach.Detector
	calculator *penalty.Calculator
	mineru     *service.MineruService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	m, err := newModel(ctx, &cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	stages, err := prompt.NewStages(prompt.NewInvoker(m, prompt.PolicyFromConfig(&cfg.Pipeline)))
	if err != nil {
		return nil, fmt.Errorf("init prompt stages: %w", err)
	}

	a := &app{
		cfg:        cfg,
		model:      m,
		store:      service.NewSessionStore(&cfg.Store),
		calculator: penalty.NewCalculator(&cfg.Penalty),
	}

	opts := pipeline.Options{MaxUploadBytes: cfg.Upload.MaxBytes}
	if cfg.MinioEnabled() {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		if cfg.OCR.ArchiveUploads {
			opts.Archive = minioSvc
		}
		if cfg.OCR.Engine == config.EngineMineru {
			a.mineru = service.NewMineruService(&cfg.Mineru, minioSvc)
			opts.OCR = a.mineru
		}
	}

	a.runner = pipeline.NewRunner(a.store, stages, opts)
	a.detector = breach.NewDetector(stages.Breach, a.store)

	logger.Info(ctx, "services initialized",
		"model", m.Name(),
		"ocr_engine", cfg.OCR.Engine,
		"archive_uploads", opts.Archive != nil,
	)
	return a, nil
}
