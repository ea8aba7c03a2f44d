package gemini

import (
	"context"

	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

// Service generates slide outlines. Models are tried in order and the first
// schema-valid answer wins.
type Service struct {
	apiKey    string
	models    []string
	transport Transport
	logger    *logger.Logger
}

func New(apiKey string, models []string, transport Transport, log *logger.Logger) *Service {
	var ordered []string
	for _, m := range models {
		if m != "" {
			ordered = append(ordered, m)
		}
	}
	return &Service{
		apiKey:    apiKey,
		models:    ordered,
		transport: transport,
		logger:    log,
	}
}

// Configured reports whether a credential is available.
func (s *Service) Configured() bool {
	return s.apiKey != ""
}

// GenerateOutline returns the slides for doc or a GENERATION_ERROR.
//
// When every model fails, a credential failure on the first model is reported
// in preference to whatever the later attempts returned, so that a bad key is
// not hidden behind an unrelated fallback error.
func (s *Service) GenerateOutline(ctx context.Context, doc *document.Document, instruction string) ([]Slide, error) {
	if len(s.models) == 0 {
		return nil, errors.New(errors.ErrCodeConfiguration, "no gemini model configured")
	}

	prompt := buildPrompt(instruction)

	var primaryErr, lastErr error
	for i, model := range s.models {
		slides, err := s.attempt(ctx, model, doc, prompt)
		if err == nil {
			s.logger.Info("outline generated", "model", model, "slides", len(slides), "attempt", i+1)
			return slides, nil
		}

		s.logger.Warn("outline attempt failed", "model", model, "attempt", i+1, "error", err)
		if i == 0 {
			primaryErr = err
		}
		lastErr = err
	}

	cause := lastErr
	if errors.Is(primaryErr, errors.ErrCodeCredential) {
		cause = primaryErr
	}
	return nil, errors.Wrap(cause, errors.ErrCodeGeneration, "outline generation failed")
}

func (s *Service) attempt(ctx context.Context, model string, doc *document.Document, prompt string) ([]Slide, error) {
	text, err := s.transport.GenerateOutline(ctx, model, doc, prompt)
	if err != nil {
		return nil, err
	}
	slides, err := ParseSlides(text)
	if err != nil {
		s.logger.Debug("rejected outline response", "model", model, "text", text)
		return nil, err
	}
	return slides, nil
}
