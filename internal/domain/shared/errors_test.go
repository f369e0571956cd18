package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewDomainError(CodeNotFound, "case not found")
	wrapped := fmt.Errorf("load case: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestIsReferenceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing", NewDomainError(CodeReferenceDataMissing, "no rate card"), true},
		{"ambiguous", fmt.Errorf("wrap: %w", NewDomainError(CodeReferenceDataAmbiguous, "two cards")), true},
		{"validation", NewDomainError(CodeValidation, "negative"), false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReferenceError(tt.err))
		})
	}
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 10, Filter{Page: 2, PageSize: 10}.Offset())
	assert.Equal(t, 0, DefaultFilter().Offset())
}
