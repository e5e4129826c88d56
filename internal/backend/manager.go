package backend

import (
	"context"
	"errors"
	"strings"
)

// Manager owns the ordered list of configured backends. Index 0 is the
// default for both model resolution and execution fallback.
type Manager struct {
	backends []Backend
	adapter  func(Backend) LLM
}

// NewManager creates a manager over the given ordered backend list.
func NewManager(backends []Backend) *Manager {
	return &Manager{backends: backends, adapter: adapterFor}
}

// ListKnownBackends returns the display names of every configured backend.
func (m *Manager) ListKnownBackends() []string {
	names := make([]string, 0, len(m.backends))
	for _, b := range m.backends {
		names = append(names, b.DisplayName())
	}
	return names
}

// ListKnownModels returns every locally known model. With a single backend
// the names are bare; with several, each is namespaced as "backend:model".
func (m *Manager) ListKnownModels() []string {
	if len(m.backends) == 1 {
		return m.adapter(m.backends[0]).ListModels()
	}
	var models []string
	for _, b := range m.backends {
		prefix := b.DisplayName() + ":"
		for _, name := range m.adapter(b).ListModels() {
			models = append(models, prefix+name)
		}
	}
	return models
}

// IsKnownModel reports whether the model is locally known. Unknown models
// may still be valid.
func (m *Manager) IsKnownModel(model string) bool {
	for _, known := range m.ListKnownModels() {
		if known == model {
			return true
		}
	}
	return false
}

// ValidateModel checks that the model name can be routed. With one backend
// any name is accepted, since it cannot be verified locally. With several,
// the name must carry a configured backend's prefix.
func (m *Manager) ValidateModel(model string) error {
	if m.IsKnownModel(model) {
		return nil
	}
	if len(m.backends) <= 1 {
		return nil
	}
	for _, b := range m.backends {
		if strings.HasPrefix(model, b.DisplayName()+":") {
			return nil
		}
	}
	return &ValidationError{
		Model:  model,
		Reason: "multiple backends exist, please specify the model name with the backend prepended, e.g. openai:gpt-4o or aichat:ollama:llama3",
	}
}

// DefaultModel is the first backend's default, namespaced when more than
// one backend is configured.
func (m *Manager) DefaultModel() (string, bool) {
	if len(m.backends) == 0 {
		return "", false
	}
	b := m.backends[0]
	model, ok := m.adapter(b).DefaultModel()
	if !ok {
		return "", false
	}
	if len(m.backends) > 1 {
		model = b.DisplayName() + ":" + model
	}
	return model, true
}

// Execute dispatches the context to the backend named by the model prefix,
// falling back to the first backend when no model is set or nothing
// matches.
func (m *Manager) Execute(ctx context.Context, chat *ChatContext) (string, error) {
	if len(m.backends) == 0 {
		return "", errors.New("no backends configured")
	}
	target := m.backends[0]
	if chat.Model != "" {
		prefix, _, _ := strings.Cut(chat.Model, ":")
		for _, b := range m.backends {
			if b.DisplayName() == prefix {
				target = b
				break
			}
		}
	}
	return m.adapter(target).Execute(ctx, chat)
}
