package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] file not found", New(ErrCodeNotFound, "file not found").Error())

	wrapped := Wrap(stderrors.New("boom"), ErrCodeStorage, "failed to write file")
	assert.Equal(t, "[STORAGE_ERROR] failed to write file: boom", wrapped.Error())
}

func TestIsWalksChain(t *testing.T) {
	cause := New(ErrCodeCredential, "API key not valid")
	generation := Wrap(cause, ErrCodeGeneration, "outline generation failed")
	outer := fmt.Errorf("run: %w", generation)

	assert.True(t, Is(outer, ErrCodeGeneration))
	assert.True(t, Is(outer, ErrCodeCredential))
	assert.False(t, Is(outer, ErrCodeUnavailable))
	assert.False(t, Is(nil, ErrCodeGeneration))
	assert.False(t, Is(stderrors.New("plain"), ErrCodeInternal))
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrCodeExport, Code(fmt.Errorf("x: %w", New(ErrCodeExport, "y"))))
	assert.Equal(t, ErrCodeInternal, Code(stderrors.New("plain")))
}

func TestFind(t *testing.T) {
	cause := New(ErrCodeConfiguration, "no model configured")
	err := Wrap(cause, ErrCodeGeneration, "outline generation failed")

	found, ok := Find(err, ErrCodeConfiguration)
	assert.True(t, ok)
	assert.Same(t, cause, found)

	_, ok = Find(err, ErrCodeExport)
	assert.False(t, ok)
}
