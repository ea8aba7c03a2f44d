package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
)

func TestProgressOutput(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	u := newUI(&out, &errOut)

	u.Progress(orchestrator.ProgressEvent{Stage: orchestrator.StageLoading, Message: "Generating outline", Progress: 10})
	u.Progress(orchestrator.ProgressEvent{Stage: orchestrator.StageImage, Progress: 65,
		Data: orchestrator.ImageEvent{Index: 0, Succeeded: true, Settled: 1, Total: 2}})
	u.Progress(orchestrator.ProgressEvent{Stage: orchestrator.StageImage, Progress: 90,
		Data: orchestrator.ImageEvent{Index: 2, Succeeded: false, Settled: 2, Total: 2}})
	u.Progress(orchestrator.ProgressEvent{Stage: orchestrator.StageSuccess, Message: "Presentation ready", Progress: 100,
		Data: orchestrator.State{Slides: make([]gemini.Slide, 3)}})

	assert.Equal(t, "• [ 10%] Generating outline\n"+
		"✓ [ 65%] Slide 1 image ready (1/2)\n"+
		"⚠ [ 90%] Slide 3 has no image (2/2)\n"+
		"✓ [100%] Presentation ready: 3 slides\n", out.String())
	assert.Empty(t, errOut.String())

	u.Progress(orchestrator.ProgressEvent{Stage: orchestrator.StageError, Message: orchestrator.MsgMissingKey})
	assert.Equal(t, "✗ "+orchestrator.MsgMissingKey+"\n", errOut.String())
}
