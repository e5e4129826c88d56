// Package role resolves named personas to a system prompt bundle.
//
// A role is a system prompt plus an optional example conversation. Chat
// models take a dedicated system prompt; for plain-text backends the prompt
// is injected ahead of the transcript instead.
package role

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Speaker identifies who says a line in an example conversation.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// String renders the speaker in the transcript form used in prompts.
func (s Speaker) String() string {
	if s == SpeakerAssistant {
		return "ASSISTANT"
	}
	return "USER"
}

// UnmarshalYAML accepts the speaker name in any case.
func (s *Speaker) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch strings.ToLower(raw) {
	case "user":
		*s = SpeakerUser
	case "assistant":
		*s = SpeakerAssistant
	default:
		return fmt.Errorf("invalid speaker %q: want user or assistant", raw)
	}
	return nil
}

// ExampleMessage is a single line of an example conversation.
type ExampleMessage struct {
	Speaker Speaker `yaml:"user"`
	Text    string  `yaml:"message"`
}

// Details describes one role.
type Details struct {
	// Name of the role, used to reference it.
	Name string `yaml:"name"`
	// Description of the role.
	Description string `yaml:"description,omitempty"`
	// The system prompt for the model.
	Prompt string `yaml:"prompt,omitempty"`
	// Example conversation, prepended after the prompt.
	Example []ExampleMessage `yaml:"example,omitempty"`
}

// Lookup finds a role by name, searching the user-defined list before the
// built-in defaults. Returns nil if the name is empty or unknown.
func Lookup(name string, userRoles, defaultRoles []Details) *Details {
	if name == "" {
		return nil
	}
	for _, list := range [][]Details{userRoles, defaultRoles} {
		for i := range list {
			if list[i].Name == name {
				d := list[i]
				return &d
			}
		}
	}
	return nil
}

// PrependTo places the role's prompt and example conversation ahead of the
// given prompt text.
func (d *Details) PrependTo(prompt string) string {
	var sb strings.Builder
	if d.Prompt != "" {
		sb.WriteString(d.Prompt)
		sb.WriteByte('\n')
	}
	for _, m := range d.Example {
		sb.WriteString(fmt.Sprintf("%s: %s\n", m.Speaker, m.Text))
	}
	sb.WriteString(prompt)
	return sb.String()
}
