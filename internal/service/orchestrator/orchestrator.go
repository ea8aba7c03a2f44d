package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChaseRain/pdf2deck/internal/infra/limiter"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/internal/service/ppt"
	"github.com/ChaseRain/pdf2deck/internal/service/storage"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

const (
	MsgMissingKey     = "Gemini API key is not configured. Set GEMINI_API_KEY."
	MsgCredential     = "The Gemini API key is invalid or lacks permission."
	MsgInvalidContent = "The document could not be processed. It may be too large or malformed."
	MsgUnavailable    = "The AI service is temporarily unavailable. Please try again later."
	MsgExportFailed   = "failed to export presentation"
)

// Progress stages.
const (
	StageLoading          = string(StatusLoading)
	StageGeneratingImages = string(StatusGeneratingImages)
	StageImage            = "image"
	StageSuccess          = string(StatusSuccess)
	StageError            = string(StatusError)
)

type OutlineGenerator interface {
	Configured() bool
	GenerateOutline(ctx context.Context, doc *document.Document, instruction string) ([]gemini.Slide, error)
}

type ImageGenerator interface {
	GenerateSlideImage(ctx context.Context, description string) (string, bool)
}

// ProgressEvent is emitted once per state transition and once per settled
// image.
type ProgressEvent struct {
	Stage    string
	Message  string
	Progress int
	Data     interface{}
}

// ImageEvent is the Data of a StageImage event.
type ImageEvent struct {
	Index     int  `json:"index"`
	Succeeded bool `json:"succeeded"`
	Settled   int  `json:"settled"`
	Total     int  `json:"total"`
}

type ProgressCallback func(event ProgressEvent)

type ExportResult struct {
	Filename string
	URL      string
	Data     []byte
}

type Orchestrator struct {
	outline    OutlineGenerator
	images     ImageGenerator
	pptSvc     *ppt.Service
	storageSvc *storage.Service
	limiter    *limiter.Limiter
	logger     *logger.Logger
	deckTitle  string
	session    *Session
	now        func() time.Time
}

func New(
	outline OutlineGenerator,
	images ImageGenerator,
	pptSvc *ppt.Service,
	storageSvc *storage.Service,
	lim *limiter.Limiter,
	deckTitle string,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		outline:    outline,
		images:     images,
		pptSvc:     pptSvc,
		storageSvc: storageSvc,
		limiter:    lim,
		logger:     log,
		deckTitle:  deckTitle,
		session:    NewSession(),
		now:        time.Now,
	}
}

// Load replaces the current document and resets the session.
func (o *Orchestrator) Load(doc *document.Document) {
	o.session.Reset(doc)
	o.logger.ForDocument(doc.Name, doc.Size()).Info("session reset for new document")
}

func (o *Orchestrator) Clear() {
	o.session.Reset(nil)
	o.logger.Info("document cleared")
}

func (o *Orchestrator) Snapshot() State {
	return o.session.Snapshot()
}

// Run generates the outline and slide images for the loaded document.
//
// Precondition failures are returned as errors and leave the session as it
// was. Everything after that ends in a terminal state that is both returned
// and published; the error return is nil in that case even when the run
// failed. The run ignores cancellation of ctx.
func (o *Orchestrator) Run(ctx context.Context, instruction string, onProgress ProgressCallback) (State, error) {
	ctx = context.WithoutCancel(ctx)

	runID, doc, err := o.session.Begin(o.now())
	if err != nil {
		return State{}, err
	}

	var emitMu sync.Mutex
	emit := func(stage, message string, progress int, data interface{}) {
		if onProgress == nil {
			return
		}
		emitMu.Lock()
		defer emitMu.Unlock()
		onProgress(ProgressEvent{
			Stage:    stage,
			Message:  message,
			Progress: progress,
			Data:     data,
		})
	}

	log := o.logger.ForRun(runID)
	log.Info("starting generation",
		"document", doc.Name,
		"has_instruction", strings.TrimSpace(instruction) != "",
	)
	emit(StageLoading, "Generating outline", 10, nil)

	if !o.outline.Configured() {
		return o.fail(log, runID, errors.New(errors.ErrCodeConfiguration, MsgMissingKey), emit), nil
	}

	slides, err := o.outline.GenerateOutline(ctx, doc, instruction)
	if err != nil {
		return o.fail(log, runID, err, emit), nil
	}

	pending := o.session.imagesPending(runID, slides)
	log.Info("outline ready", "slides", len(slides))
	emit(StageGeneratingImages, "Generating slide images", 40, pending.Slides)

	enriched := o.generateImages(ctx, log, slides, emit)

	state := o.session.succeed(runID, enriched, o.now())
	log.Info("generation complete",
		"slides", len(enriched),
		"duration", state.FinishedAt.Sub(state.StartedAt).String(),
	)
	emit(StageSuccess, "Presentation ready", 100, state)
	return state, nil
}

// generateImages requests an image for every slide with a description. Tasks
// never fail the group: a missing image only leaves ImageURL empty.
func (o *Orchestrator) generateImages(
	ctx context.Context,
	log *logger.Logger,
	slides []gemini.Slide,
	emit func(string, string, int, interface{}),
) []gemini.Slide {
	enriched := make([]gemini.Slide, len(slides))
	copy(enriched, slides)

	var pending []int
	for i, slide := range slides {
		if strings.TrimSpace(slide.ImageDescription) != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return enriched
	}

	var (
		g       errgroup.Group
		settled atomic.Int32
	)
	total := len(pending)

	for _, i := range pending {
		i := i
		g.Go(func() error {
			ok := o.generateImage(ctx, log, i, slides[i].ImageDescription, &enriched[i])

			n := int(settled.Add(1))
			emit(StageImage, fmt.Sprintf("Image %d of %d settled", n, total), 40+50*n/total, ImageEvent{
				Index:     i,
				Succeeded: ok,
				Settled:   n,
				Total:     total,
			})
			return nil
		})
	}
	_ = g.Wait()

	return enriched
}

func (o *Orchestrator) generateImage(ctx context.Context, log *logger.Logger, index int, description string, slide *gemini.Slide) bool {
	release, err := o.limiter.Acquire(ctx)
	if err != nil {
		log.Warn("image slot unavailable", "slide", index, "error", err)
		return false
	}
	defer release()

	url, ok := o.images.GenerateSlideImage(ctx, description)
	if !ok {
		return false
	}
	slide.ImageURL = url
	return true
}

func (o *Orchestrator) fail(log *logger.Logger, runID string, err error, emit func(string, string, int, interface{})) State {
	code, message := userFacing(err)
	state := o.session.fail(runID, code, message, o.now())

	log.Error("generation failed", "code", code, "error", err)
	emit(StageError, message, 100, state)
	return state
}

// userFacing maps a generation failure to the code and message shown to the
// user.
func userFacing(err error) (string, string) {
	switch {
	case errors.Is(err, errors.ErrCodeConfiguration):
		cfgErr, _ := errors.Find(err, errors.ErrCodeConfiguration)
		return errors.ErrCodeConfiguration, cfgErr.Message
	case errors.Is(err, errors.ErrCodeCredential):
		return errors.ErrCodeCredential, MsgCredential
	case errors.Is(err, errors.ErrCodeInvalidData):
		return errors.ErrCodeInvalidData, MsgInvalidContent
	case errors.Is(err, errors.ErrCodeUnavailable):
		return errors.ErrCodeUnavailable, MsgUnavailable
	default:
		return errors.ErrCodeGeneration, "Failed to generate presentation: " + rawCause(err)
	}
}

// rawCause describes what actually went wrong underneath the generation
// wrapper.
func rawCause(err error) string {
	if genErr, ok := errors.Find(err, errors.ErrCodeGeneration); ok && genErr.Cause != nil {
		err = genErr.Cause
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Cause != nil {
			return appErr.Message + ": " + appErr.Cause.Error()
		}
		return appErr.Message
	}
	return err.Error()
}

// Export renders the current presentation and stores it. The session is not
// modified, whatever the outcome.
func (o *Orchestrator) Export(ctx context.Context) (*ExportResult, error) {
	state := o.session.Snapshot()
	if state.Status != StatusSuccess {
		return nil, errors.New(errors.ErrCodeInvalidReq, "no generated presentation to export")
	}

	log := o.logger.ForRun(state.ID)
	file, err := o.pptSvc.Render(ppt.Deck{
		Title:    o.deckTitle,
		Subtitle: state.Document,
		Slides:   state.Slides,
	}, o.now())
	if err != nil {
		log.Error("export render failed", "error", err)
		return nil, errors.Wrap(err, errors.ErrCodeExport, MsgExportFailed)
	}

	url, err := o.storageSvc.SaveDeck(ctx, file.Name, file.Data)
	if err != nil {
		log.Error("export save failed", "file", file.Name, "error", err)
		return nil, errors.Wrap(err, errors.ErrCodeExport, MsgExportFailed)
	}

	log.Info("presentation exported", "file", file.Name, "url", url)
	return &ExportResult{
		Filename: file.Name,
		URL:      url,
		Data:     file.Data,
	}, nil
}
