package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
	"github.com/ChaseRain/pdf2deck/internal/service/ppt"
	"github.com/ChaseRain/pdf2deck/internal/service/storage"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
	"github.com/ChaseRain/pdf2deck/pkg/util"
)

const (
	defaultDocumentName = "document.pdf"

	// uploadOverhead covers the JSON envelope or multipart framing around the
	// document itself.
	uploadOverhead = 64 << 10
)

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	reader       *document.Reader
	storage      *storage.Service
	logger       *logger.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, reader *document.Reader, store *storage.Service, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		reader:       reader,
		storage:      store,
		logger:       log,
	}
}

// LoadDocument accepts either a multipart "file" field or a JSON body with a
// base64 document.
func (h *Handler) LoadDocument(c *gin.Context) {
	var (
		doc *document.Document
		err error
	)
	if limit := uploadLimit(h.reader.MaxBytes()); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		doc, err = h.readMultipart(c)
	} else {
		doc, err = h.readJSON(c)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.orchestrator.Load(doc)
	c.JSON(http.StatusOK, DocumentResponse{
		Name:     doc.Name,
		MimeType: doc.MimeType,
		Pages:    doc.Pages,
		Size:     doc.Size(),
	})
}

func (h *Handler) readMultipart(c *gin.Context) (*document.Document, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			return nil, h.uploadTooLarge(err)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInvalidReq, "missing file field")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidReq, "failed to open upload")
	}
	defer f.Close()

	name := fh.Filename
	if name == "" {
		name = defaultDocumentName
	}
	return h.reader.Read(name, f)
}

func (h *Handler) readJSON(c *gin.Context) (*document.Document, error) {
	var req LoadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			return nil, h.uploadTooLarge(err)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInvalidReq, "invalid request body")
	}

	// data:application/pdf;base64,xxxx is accepted as well as bare base64.
	data, err := base64.StdEncoding.DecodeString(util.StripDataURLPrefix(req.DocumentBase64))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidReq, "failed to decode base64 document")
	}

	name := req.Name
	if name == "" {
		name = defaultDocumentName
	}
	return h.reader.Read(name, bytes.NewReader(data))
}

// uploadLimit bounds a request body carrying a document of at most maxBytes,
// allowing for base64 expansion. Zero means unlimited.
func uploadLimit(maxBytes int64) int64 {
	if maxBytes <= 0 {
		return 0
	}
	return (maxBytes+2)/3*4 + uploadOverhead
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}

func (h *Handler) uploadTooLarge(err error) error {
	return errors.Wrap(err, errors.ErrCodeInvalidReq, fmt.Sprintf("document exceeds %d bytes", h.reader.MaxBytes()))
}

func (h *Handler) ClearDocument(c *gin.Context) {
	h.orchestrator.Clear()
	c.JSON(http.StatusOK, toSessionResponse(h.orchestrator.Snapshot()))
}

func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, toSessionResponse(h.orchestrator.Snapshot()))
}

// Generate runs the pipeline. A failed run is still a 200 carrying the error
// state; only refused runs get an error status.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		h.handleError(c, errors.Wrap(err, errors.ErrCodeInvalidReq, "invalid request body"))
		return
	}

	if req.Stream {
		h.handleStreamingResponse(c, req.Instruction)
		return
	}

	state, err := h.orchestrator.Run(c.Request.Context(), req.Instruction, nil)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(state))
}

func (h *Handler) handleStreamingResponse(c *gin.Context, instruction string) {
	started := false
	var runID string

	sendEvent := func(eventType string, data interface{}) {
		if !started {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.Header().Set("X-Accel-Buffering", "no")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}
		event := StreamEvent{
			Event: eventType,
			Data:  data,
			RunID: runID,
		}
		jsonData, _ := json.Marshal(event)
		fmt.Fprintf(c.Writer, "event: %s\n", eventType)
		fmt.Fprintf(c.Writer, "data: %s\n\n", jsonData)
		c.Writer.Flush()
	}

	onProgress := func(event orchestrator.ProgressEvent) {
		switch event.Stage {
		case orchestrator.StageLoading, orchestrator.StageGeneratingImages:
			if runID == "" {
				runID = h.orchestrator.Snapshot().ID
			}
			slides, _ := event.Data.([]gemini.Slide)
			sendEvent(EventTypeStatus, EventStatus{
				Status:   event.Stage,
				Message:  event.Message,
				Progress: event.Progress,
				Slides:   slides,
			})
		case orchestrator.StageImage:
			img, _ := event.Data.(orchestrator.ImageEvent)
			sendEvent(EventTypeImage, EventImage{
				Message:    event.Message,
				Progress:   event.Progress,
				ImageEvent: img,
			})
		case orchestrator.StageSuccess:
			state, _ := event.Data.(orchestrator.State)
			sendEvent(EventTypeComplete, EventComplete{
				Message: event.Message,
				Session: toSessionResponse(state),
			})
		case orchestrator.StageError:
			state, _ := event.Data.(orchestrator.State)
			sendEvent(EventTypeError, EventError{
				Code:    state.ErrorCode,
				Message: state.Error,
			})
		}
	}

	if _, err := h.orchestrator.Run(c.Request.Context(), instruction, onProgress); err != nil {
		if !started {
			h.handleError(c, err)
			return
		}
		sendEvent(EventTypeError, EventError{
			Code:    errors.Code(err),
			Message: err.Error(),
		})
	}
}

func (h *Handler) Export(c *gin.Context) {
	result, err := h.orchestrator.Export(c.Request.Context())
	if err != nil {
		if errors.Is(err, errors.ErrCodeInvalidReq) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: ErrorBody{
				Code:    errors.ErrCodeInvalidReq,
				Message: "no generated presentation to export",
			}})
			return
		}
		h.logger.Error("export failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
			Code:    errors.ErrCodeExport,
			Message: orchestrator.MsgExportFailed,
		}})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header(headerDeckURL, result.URL)
	c.Data(http.StatusOK, ppt.ContentType, result.Data)
}

func (h *Handler) GetFile(c *gin.Context) {
	name := c.Param("name")
	data, err := h.storage.GetFile(c.Request.Context(), name)
	if err != nil {
		h.handleError(c, err)
		return
	}

	contentType := ppt.ContentType
	if !strings.HasSuffix(name, ".pptx") {
		contentType = mimetype.Detect(data).String()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	code := errors.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		h.logger.Warn("request rejected", "path", c.Request.URL.Path, "code", code, "error", err)
	}

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Cause != nil && status < http.StatusInternalServerError {
			message += ": " + appErr.Cause.Error()
		}
	}

	c.JSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func statusFor(code string) int {
	switch code {
	case errors.ErrCodeInvalidReq:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSessionBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
