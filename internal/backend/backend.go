// Package backend manages the configured LLM providers: validation, model
// listing, and dispatch of assembled chat contexts.
package backend

import (
	"context"
	"fmt"
)

// Kind identifies how a backend is driven.
type Kind string

const (
	// KindAIChat shells out to the aichat CLI binary.
	KindAIChat Kind = "aichat"
	// KindOpenAICompatible speaks the OpenAI chat completions API.
	KindOpenAICompatible Kind = "openaicompatible"
)

// Model is one model declared for a backend. HTTP backends cannot be
// queried for their models, so they are declared in the config.
type Model struct {
	Name string `yaml:"name"`
}

// Backend is the configuration record for a single provider. Immutable
// after load; identified by its display name.
type Backend struct {
	Kind      Kind    `yaml:"type"`
	Name      string  `yaml:"name,omitempty"`
	APIBase   string  `yaml:"api_base,omitempty"`
	APIKey    string  `yaml:"api_key,omitempty"`
	Models    []Model `yaml:"models,omitempty"`
	ConfigDir string  `yaml:"config_dir,omitempty"`
}

// DisplayName returns the explicit name, or a kind-derived default. It is
// the prefix used to namespace model names when several backends exist.
func (b Backend) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	if b.Kind == KindOpenAICompatible {
		return "openai"
	}
	return "aichat"
}

// stripPrefix removes this backend's name prefix from a model name, if
// present.
func (b Backend) stripPrefix(model string) string {
	prefix := b.DisplayName() + ":"
	if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
		return model[len(prefix):]
	}
	return model
}

// LLM is the uniform capability surface every backend adapter exposes.
type LLM interface {
	// ListModels returns the models known locally. The list may be
	// incomplete; unlisted models can still be valid.
	ListModels() []string
	// DefaultModel returns the backend's default model, if it has one.
	DefaultModel() (string, bool)
	// Execute sends the chat context and returns the completion text.
	Execute(ctx context.Context, chat *ChatContext) (string, error)
}

// adapterFor builds the adapter for a backend record. The kind set is
// closed; unknown kinds fall back to aichat for config compatibility.
func adapterFor(b Backend) LLM {
	if b.Kind == KindOpenAICompatible {
		return NewOpenAI(b)
	}
	return NewAIChat(b)
}

// ValidationError reports a model name that cannot be routed to any
// configured backend.
type ValidationError struct {
	Model  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConfigError reports a backend that is missing required configuration.
type ConfigError struct {
	Backend string
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %s: missing %s", e.Backend, e.Missing)
}
