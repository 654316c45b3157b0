// Package ai defines the remote inference contract used by the relevance
// scorer and the profile matcher, plus helpers for reading model output.
package ai

import (
	"context"
)

// Generator sends a prompt to a text model and returns its raw answer.
// The answer is untrusted free text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Provider names accepted by the configuration.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)
