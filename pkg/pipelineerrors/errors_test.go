package pipelineerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindError_Wrapping(t *testing.T) {
	base := errors.New("boom")
	err := New(KindProviderError, base)

	require.Error(t, err)
	assert.True(t, Is(err, KindProviderError))
	assert.False(t, Is(err, KindSchemaError))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "provider_error: boom", err.Error())
}

func TestKindError_NilWrapped(t *testing.T) {
	err := New(KindLockBusy, nil)
	assert.Equal(t, "lock_busy", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestIs_NonKindError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindInvalidJSON))
}
