package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceConstants(t *testing.T) {
	tests := []struct {
		name     string
		ns       Namespace
		expected string
		indexed  bool
	}{
		{"NEC", NamespaceNEC, "nec", true},
		{"Wattmonk", NamespaceWattmonk, "wattmonk", true},
		{"General", NamespaceGeneral, "general", false},
		{"Unknown", Namespace("other"), "other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.ns.String())
			assert.Equal(t, tt.indexed, tt.ns.IsIndexed())
		})
	}
}

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("nec")
	require.NoError(t, err)
	assert.Equal(t, NamespaceNEC, ns)

	_, err = ParseNamespace("general")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownNamespace))
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
}

func TestValidateChunk(t *testing.T) {
	valid := Chunk{ID: "c1", Namespace: NamespaceNEC, Text: "grounding", Position: 0}

	t.Run("valid", func(t *testing.T) {
		c := valid
		assert.NoError(t, ValidateChunk(&c))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Error(t, ValidateChunk(nil))
	})

	t.Run("blank text", func(t *testing.T) {
		c := valid
		c.Text = "  \n"
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("general namespace", func(t *testing.T) {
		c := valid
		c.Namespace = NamespaceGeneral
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("negative position", func(t *testing.T) {
		c := valid
		c.Position = -1
		assert.Error(t, ValidateChunk(&c))
	})
}

func TestChunk_DisplaySource(t *testing.T) {
	c := Chunk{Namespace: NamespaceWattmonk, Source: "docs/a.pdf", FileName: "a.pdf"}
	assert.Equal(t, "docs/a.pdf", c.DisplaySource())

	c.Source = ""
	assert.Equal(t, "a.pdf", c.DisplaySource())

	c.FileName = ""
	assert.Equal(t, "wattmonk", c.DisplaySource())
}

func TestValidateTurns(t *testing.T) {
	err := ValidateTurns([]ChatTurn{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}})
	assert.NoError(t, err)

	err = ValidateTurns([]ChatTurn{{Role: "robot", Content: "beep"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRole))
}

func TestGeneration_AnswerText(t *testing.T) {
	ok := Generation{Text: "Article 250 covers grounding."}
	assert.False(t, ok.Degraded())
	assert.Equal(t, "Article 250 covers grounding.", ok.AnswerText())

	failed := Generation{Failure: &GenerationFailure{Kind: FailureRateLimited, Message: "rate limited"}}
	assert.True(t, failed.Degraded())
	assert.Equal(t, "Error generating answer: rate limited", failed.AnswerText())
}

func TestDomainError_IsAndCode(t *testing.T) {
	wrapped := fmt.Errorf("search: %w", Wrap(ErrDimensionMismatch, errors.New("query 3, index 4")))

	assert.True(t, errors.Is(wrapped, ErrDimensionMismatch))
	assert.False(t, errors.Is(wrapped, ErrRateLimited))
	assert.Equal(t, ErrCodeDimensionMismatch, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternalError, CodeOf(errors.New("plain")))
	assert.Contains(t, wrapped.Error(), "query 3, index 4")
}
