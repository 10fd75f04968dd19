package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFound("quest", "q-1")
	wrapped := fmt.Errorf("update progress: %w", err)

	assert.True(t, stderrors.Is(wrapped, New(CodeNotFound, "")))
	assert.False(t, stderrors.Is(wrapped, New(CodeValidation, "")))
	assert.Equal(t, "q-1", err.Metadata["id"])
}

func TestCodeOf(t *testing.T) {
	testcases := []struct {
		name       string
		err        error
		want       Code
		validation bool
	}{
		{name: "nil", err: nil, want: CodeUnknown},
		{name: "plain", err: stderrors.New("x"), want: CodeUnknown},
		{name: "validation", err: Validation("bad"), want: CodeValidation, validation: true},
		{name: "wrapped-not-found", err: fmt.Errorf("ctx: %w", NotFound("npc", "n")), want: CodeNotFound, validation: true},
		{name: "in-flight", err: New(CodeGenerationInFlight, "busy"), want: CodeGenerationInFlight, validation: true},
		{name: "upstream", err: Wrap(CodeUpstreamGeneration, "gen", stderrors.New("timeout")), want: CodeUpstreamGeneration},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeOf(tc.err))
			assert.Equal(t, tc.validation, IsValidation(tc.err))
		})
	}
}

func TestWrap_MessageIncludesCause(t *testing.T) {
	err := Wrap(CodeSideEffect, "record memory", stderrors.New("disk full"))
	assert.Equal(t, "record memory: disk full", err.Error())
	assert.ErrorIs(t, err, err.Cause)
}
