package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

type Status string

const (
	StatusIdle             Status = "idle"
	StatusLoading          Status = "loading"
	StatusGeneratingImages Status = "generating_images"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
)

// Busy reports whether a run is in progress.
func (s Status) Busy() bool {
	return s == StatusLoading || s == StatusGeneratingImages
}

// State is a point-in-time copy of the session.
type State struct {
	ID         string
	Status     Status
	Document   string
	Slides     []gemini.Slide
	Error      string
	ErrorCode  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Session holds the single live generation session. Every write made on
// behalf of a run carries the run ID and is dropped once the session has been
// reset, so a run that outlives its document cannot overwrite newer state.
type Session struct {
	mu    sync.RWMutex
	doc   *document.Document
	state State
}

func NewSession() *Session {
	return &Session{state: State{Status: StatusIdle}}
}

// Reset replaces the document (nil clears it) and returns the session to idle.
func (s *Session) Reset(doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	s.state = State{Status: StatusIdle}
	if doc != nil {
		s.state.Document = doc.Name
	}
}

// Begin starts a run: it checks the preconditions and moves to loading in one
// step.
func (s *Session) Begin(now time.Time) (string, *document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return "", nil, errors.New(errors.ErrCodeInvalidReq, "no document loaded")
	}
	if s.state.Status.Busy() {
		return "", nil, errors.New(errors.ErrCodeSessionBusy, "generation already in progress")
	}

	s.state = State{
		ID:        uuid.NewString(),
		Status:    StatusLoading,
		Document:  s.doc.Name,
		StartedAt: now,
	}
	return s.state.ID, s.doc, nil
}

func (s *Session) imagesPending(runID string, slides []gemini.Slide) State {
	return s.update(runID, func(st *State) {
		st.Status = StatusGeneratingImages
		st.Slides = slides
	})
}

func (s *Session) succeed(runID string, slides []gemini.Slide, now time.Time) State {
	return s.update(runID, func(st *State) {
		st.Status = StatusSuccess
		st.Slides = slides
		st.FinishedAt = now
	})
}

func (s *Session) fail(runID, code, message string, now time.Time) State {
	return s.update(runID, func(st *State) {
		st.Status = StatusError
		st.Slides = nil
		st.Error = message
		st.ErrorCode = code
		st.FinishedAt = now
	})
}

// update applies fn when runID is still current and returns the resulting
// state. A stale run gets back what it would have written, unpublished.
func (s *Session) update(runID string, fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.ID != runID {
		stale := State{ID: runID}
		fn(&stale)
		return copyState(stale)
	}
	fn(&s.state)
	return copyState(s.state)
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

func copyState(st State) State {
	if st.Slides == nil {
		return st
	}
	slides := make([]gemini.Slide, len(st.Slides))
	for i, slide := range st.Slides {
		slide.Content = append([]string(nil), slide.Content...)
		slides[i] = slide
	}
	st.Slides = slides
	return st
}
