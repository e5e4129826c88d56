package backend

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI speaks the OpenAI-compatible chat completions API.
type OpenAI struct {
	backend Backend
}

// NewOpenAI creates an adapter for the given backend record.
func NewOpenAI(b Backend) *OpenAI {
	return &OpenAI{backend: b}
}

// ListModels returns the models declared in the config. The API cannot be
// queried for them.
func (o *OpenAI) ListModels() []string {
	models := make([]string, 0, len(o.backend.Models))
	for _, m := range o.backend.Models {
		models = append(models, m.Name)
	}
	return models
}

// DefaultModel is the first declared model.
func (o *OpenAI) DefaultModel() (string, bool) {
	if len(o.backend.Models) == 0 {
		return "", false
	}
	return o.backend.Models[0].Name, true
}

// Execute converts the chat context into a chat completion request and
// returns the first choice's content.
func (o *OpenAI) Execute(ctx context.Context, chat *ChatContext) (string, error) {
	if o.backend.APIKey == "" {
		return "", &ConfigError{Backend: o.backend.DisplayName(), Missing: "api_key"}
	}
	if o.backend.APIBase == "" {
		return "", &ConfigError{Backend: o.backend.DisplayName(), Missing: "api_base"}
	}

	client := openai.NewClient(
		option.WithAPIKey(o.backend.APIKey),
		option.WithBaseURL(o.backend.APIBase),
	)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.resolveModel(chat)),
		Messages: o.messages(chat),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "(empty model response)", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// messages builds the request messages: an optional leading system message
// from the role prompt, then the conversation in order.
func (o *OpenAI) messages(chat *ChatContext) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if chat.Role != nil && chat.Role.Prompt != "" {
		msgs = append(msgs, openai.SystemMessage(chat.Role.Prompt))
	}
	for _, m := range chat.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}

// resolveModel strips this backend's name prefix, falling back to the first
// declared model when nothing remains.
func (o *OpenAI) resolveModel(chat *ChatContext) string {
	model := o.backend.stripPrefix(chat.Model)
	if model == "" {
		model, _ = o.DefaultModel()
	}
	return model
}
