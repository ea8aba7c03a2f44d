package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
)

type ui struct {
	out io.Writer
	err io.Writer

	info    *color.Color
	success *color.Color
	warning *color.Color
	failure *color.Color
}

func newUI(out, err io.Writer) *ui {
	return &ui{
		out:     out,
		err:     err,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
}

func (u *ui) Info(format string, args ...interface{}) {
	u.info.Fprintf(u.out, "• %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) Success(format string, args ...interface{}) {
	u.success.Fprintf(u.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) Warning(format string, args ...interface{}) {
	u.warning.Fprintf(u.out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func (u *ui) Error(format string, args ...interface{}) {
	u.failure.Fprintf(u.err, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Progress prints one line per orchestrator event.
func (u *ui) Progress(event orchestrator.ProgressEvent) {
	switch event.Stage {
	case orchestrator.StageImage:
		img, _ := event.Data.(orchestrator.ImageEvent)
		if img.Succeeded {
			u.Success("[%3d%%] Slide %d image ready (%d/%d)", event.Progress, img.Index+1, img.Settled, img.Total)
		} else {
			u.Warning("[%3d%%] Slide %d has no image (%d/%d)", event.Progress, img.Index+1, img.Settled, img.Total)
		}
	case orchestrator.StageSuccess:
		state, _ := event.Data.(orchestrator.State)
		u.Success("[%3d%%] %s: %d slides", event.Progress, event.Message, len(state.Slides))
	case orchestrator.StageError:
		u.Error("%s", event.Message)
	default:
		u.Info("[%3d%%] %s", event.Progress, event.Message)
	}
}
