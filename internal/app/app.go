// Package app wires the services behind both the HTTP server and the CLI.
package app

import (
	"context"
	"time"

	"github.com/ChaseRain/pdf2deck/internal/infra/config"
	"github.com/ChaseRain/pdf2deck/internal/infra/httpclient"
	"github.com/ChaseRain/pdf2deck/internal/infra/limiter"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/internal/service/imagegen"
	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
	"github.com/ChaseRain/pdf2deck/internal/service/ppt"
	"github.com/ChaseRain/pdf2deck/internal/service/storage"
)

type App struct {
	Orchestrator *orchestrator.Orchestrator
	Reader       *document.Reader
	Storage      *storage.Service

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{}

	httpClient := httpclient.New(httpclient.Options{
		Timeout:    time.Duration(cfg.HTTPClient.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.HTTPClient.MaxRetries,
	})

	lim := limiter.New(cfg.Limiter.MaxConcurrent, cfg.Limiter.RatePerSecond)
	if !lim.Unbounded() {
		log.Warn("image requests are capped; a hung request holds its slot",
			"max_concurrent", cfg.Limiter.MaxConcurrent,
			"rate_per_second", cfg.Limiter.RatePerSecond,
		)
	}

	transport, err := a.newTransport(ctx, cfg, httpClient, log)
	if err != nil {
		return nil, err
	}

	geminiSvc := gemini.New(cfg.Gemini.APIKey,
		[]string{cfg.Gemini.PrimaryModel, cfg.Gemini.FallbackModel},
		transport, log)
	imageGenSvc := imagegen.New(cfg.ImageGen.APIKey, cfg.ImageGen.BaseURL, cfg.ImageGen.Model, httpClient, log)
	pptSvc := ppt.New(cfg.PPT.FilePrefix, log)

	storageSvc, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Reader = document.NewReader(cfg.Document.MaxBytes, log)
	a.Storage = storageSvc
	a.Orchestrator = orchestrator.New(geminiSvc, imageGenSvc, pptSvc, storageSvc, lim, cfg.PPT.Title, log)
	return a, nil
}

// newTransport picks the outline transport. Without a key the SDK client
// cannot be built, and no request will be sent anyway, so REST is used.
func (a *App) newTransport(ctx context.Context, cfg *config.Config, client *httpclient.Client, log *logger.Logger) (gemini.Transport, error) {
	if cfg.Gemini.Transport == "sdk" && cfg.Gemini.APIKey != "" {
		sdk, err := gemini.NewSDKTransport(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sdk.Close)
		log.Info("using genai sdk transport")
		return sdk, nil
	}
	return gemini.NewRESTTransport(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, client, log), nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}
