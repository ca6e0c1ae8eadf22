// Package generator produces assistant replies from a hosted chat model.
package generator

import (
	"context"

	"github.com/pkg/errors"
)

var ErrGeneration = errors.New("response generation failure")

const DefaultSystemPrompt = "You are an AI assistant. Answer questions using provided knowledge base context."

type Generator interface {
	Complete(ctx context.Context, systemInstruction string, userPrompt string) (string, error)
}

type Func func(ctx context.Context, systemInstruction string, userPrompt string) (string, error)

func (f Func) Complete(ctx context.Context, systemInstruction string, userPrompt string) (string, error) {
	return f(ctx, systemInstruction, userPrompt)
}
