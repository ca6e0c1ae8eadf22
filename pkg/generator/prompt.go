package generator

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

const DefaultPromptTemplate = "Context:\n{{.Context}}\n\nUser Query: {{.Query}}"

// PromptData is what a prompt template can reference.
type PromptData struct {
	Query    string
	Context  string
	Snippets []string
}

// PromptBuilder renders the user prompt sent along with the system
// instruction. When a token budget is set, the knowledge base context is cut
// to fit: lower ranked snippets go first, then the tail of the best one.
type PromptBuilder struct {
	tmpl        *template.Template
	tokenBudget int
	codec       tokenizer.Codec
}

type PromptOption func(*PromptBuilder) error

func WithTemplate(text string) PromptOption {
	return func(b *PromptBuilder) error {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		tmpl, err := template.New("prompt").Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return errors.Wrap(err, "parse prompt template")
		}
		b.tmpl = tmpl
		return nil
	}
}

// WithTokenBudget caps the context at budget cl100k tokens. Zero disables the cap.
func WithTokenBudget(budget int) PromptOption {
	return func(b *PromptBuilder) error {
		if budget <= 0 {
			b.tokenBudget = 0
			return nil
		}
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return errors.Wrap(err, "load tokenizer")
		}
		b.codec = codec
		b.tokenBudget = budget
		return nil
	}
}

func NewPromptBuilder(opts ...PromptOption) (*PromptBuilder, error) {
	b := &PromptBuilder{}
	if err := WithTemplate(DefaultPromptTemplate)(b); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *PromptBuilder) Build(query string, snippets []string) (string, error) {
	snippets, err := b.fit(snippets)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	err = b.tmpl.Execute(&sb, PromptData{
		Query:    query,
		Context:  strings.Join(snippets, "\n"),
		Snippets: snippets,
	})
	if err != nil {
		return "", errors.Wrap(err, "render prompt")
	}
	return sb.String(), nil
}

func (b *PromptBuilder) countTokens(s string) (int, error) {
	ids, _, err := b.codec.Encode(s)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (b *PromptBuilder) fit(snippets []string) ([]string, error) {
	if b.tokenBudget <= 0 || len(snippets) == 0 {
		return snippets, nil
	}

	ret := []string{}
	used := 0
	for i, s := range snippets {
		n, err := b.countTokens(s)
		if err != nil {
			return nil, errors.Wrap(err, "count tokens")
		}
		if used+n <= b.tokenBudget {
			ret = append(ret, s)
			used += n
			continue
		}
		if i == 0 {
			truncated, err := b.truncate(s, b.tokenBudget)
			if err != nil {
				return nil, err
			}
			ret = append(ret, truncated)
		}
		break
	}
	return ret, nil
}

func (b *PromptBuilder) truncate(s string, budget int) (string, error) {
	ids, _, err := b.codec.Encode(s)
	if err != nil {
		return "", errors.Wrap(err, "encode")
	}
	if len(ids) <= budget {
		return s, nil
	}
	out, err := b.codec.Decode(ids[:budget])
	if err != nil {
		return "", errors.Wrap(err, "decode")
	}
	return out, nil
}
