package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptBuilder_Default(t *testing.T) {
	b, err := NewPromptBuilder()
	require.NoError(t, err)

	out, err := b.Build("What is Go?", []string{"Go is a language.", "It has goroutines."})
	require.NoError(t, err)
	assert.Equal(t, "Context:\nGo is a language.\nIt has goroutines.\n\nUser Query: What is Go?", out)

	out, err = b.Build("empty", nil)
	require.NoError(t, err)
	assert.Equal(t, "Context:\n\n\nUser Query: empty", out)
}

func TestPromptBuilder_CustomTemplateWithSprig(t *testing.T) {
	b, err := NewPromptBuilder(WithTemplate(`{{range $i, $s := .Snippets}}[{{add1 $i}}] {{$s}}
{{end}}Q: {{.Query | upper}}`))
	require.NoError(t, err)

	out, err := b.Build("why", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "[1] a\n[2] b\nQ: WHY", out)
}

func TestPromptBuilder_InvalidTemplate(t *testing.T) {
	_, err := NewPromptBuilder(WithTemplate("{{.Query"))
	assert.Error(t, err)
}

func TestPromptBuilder_TokenBudget(t *testing.T) {
	b, err := NewPromptBuilder(WithTemplate("{{.Context}}"), WithTokenBudget(8))
	require.NoError(t, err)

	first := "alpha beta gamma"
	second := strings.Repeat("delta ", 50)
	out, err := b.Build("q", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, first, out, "the second snippet does not fit and is dropped")

	long := strings.Repeat("word ", 100)
	out, err = b.Build("q", []string{long})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.True(t, strings.HasPrefix(long, out))
	assert.Less(t, len(out), len(long))
}
