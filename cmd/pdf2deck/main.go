package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ChaseRain/pdf2deck/internal/app"
	"github.com/ChaseRain/pdf2deck/internal/infra/config"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
)

func main() {
	cliApp := &cli.App{
		Name:  "pdf2deck",
		Usage: "Turn a PDF into a PowerPoint deck with Gemini",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "PDF document to convert",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "instruction",
				Aliases: []string{"p"},
				Usage:   "Extra guidance appended to the outline prompt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   ".",
				Usage:   "Directory the .pptx is written to",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Write service logs to stderr",
				EnvVars: []string{"PDF2DECK_VERBOSE"},
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		newUI(os.Stdout, os.Stderr).Error("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// The CLI always writes next to the user, whatever the server stores to.
	cfg.Storage = config.StorageConfig{
		Type:     "local",
		BasePath: c.String("output"),
		BaseURL:  c.String("output"),
	}

	log := logger.NewNop()
	if c.Bool("verbose") {
		if log, err = logger.New(cfg.Log.Level, "console"); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		defer log.Sync()
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer application.Close()

	ui := newUI(os.Stdout, os.Stderr)

	input := c.String("input")
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	doc, err := application.Reader.Read(filepath.Base(input), f)
	f.Close()
	if err != nil {
		return err
	}
	ui.Info("Loaded %s (%d pages, %d bytes)", doc.Name, doc.Pages, doc.Size())

	application.Orchestrator.Load(doc)
	state, err := application.Orchestrator.Run(ctx, c.String("instruction"), ui.Progress)
	if err != nil {
		return err
	}
	if state.Status == orchestrator.StatusError {
		// Progress already printed the message.
		return cli.Exit("", 1)
	}

	result, err := application.Orchestrator.Export(ctx)
	if err != nil {
		return err
	}
	ui.Success("Wrote %s", filepath.Join(c.String("output"), result.Filename))
	return nil
}
