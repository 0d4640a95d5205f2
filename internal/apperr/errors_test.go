package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("content", "too long"), CodeValidation},
		{"not found", ErrNotFound, CodeNotFound},
		{"wrapped not found", fmt.Errorf("lookup mem_1: %w", ErrNotFound), CodeNotFound},
		{"cross user", ErrUnauthorizedCrossUser, CodeCrossUser},
		{"conflict", ErrConflict, CodeConflict},
		{"already exists", ErrAlreadyExists, CodeConflict},
		{"embedding", ErrEmbedding, CodeEmbeddingError},
		{"llm", ErrLLM, CodeLLMError},
		{"storage", ErrStorage, CodeStorageError},
		{"unrecognized", fmt.Errorf("boom"), CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("persona_tags", "max 10 tags")
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "persona_tags")
	assert.Contains(t, err.Error(), "max 10 tags")

	assert.False(t, IsValidationError(ErrNotFound))
}
