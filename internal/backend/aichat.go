package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// AIChat drives the aichat CLI binary as a general LLM backend.
type AIChat struct {
	binary  string
	backend Backend
}

// NewAIChat creates an adapter for the given backend record.
func NewAIChat(b Backend) *AIChat {
	return &AIChat{binary: "aichat", backend: b}
}

func (a *AIChat) env() []string {
	env := os.Environ()
	if a.backend.ConfigDir != "" {
		env = append(env, "AICHAT_CONFIG_DIR="+a.backend.ConfigDir)
	}
	return env
}

// ListModels queries the binary for its known models. The list may not be
// comprehensive.
func (a *AIChat) ListModels() []string {
	cmd := exec.Command(a.binary, "--list-models")
	cmd.Env = a.env()
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	return modelLines(out)
}

// DefaultModel queries the binary's --info output for the configured model.
func (a *AIChat) DefaultModel() (string, bool) {
	cmd := exec.Command(a.binary, "--info")
	cmd.Env = a.env()
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return defaultModelFromInfo(out)
}

// Execute runs the binary with the rendered prompt and returns its stdout.
// Empty stdout is treated as a failure with stderr as the message, even on
// a zero exit status.
func (a *AIChat) Execute(ctx context.Context, chat *ChatContext) (string, error) {
	cmd := exec.CommandContext(ctx, a.binary, a.args(chat)...)
	cmd.Env = a.env()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if stdout.Len() == 0 {
		if !utf8.Valid(stderr.Bytes()) {
			return "", errors.New("aichat: error decoding stderr")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && runErr != nil {
			msg = runErr.Error()
		}
		if msg == "" {
			msg = "aichat produced no output"
		}
		return "", errors.New(msg)
	}
	if !utf8.Valid(stdout.Bytes()) {
		return "", errors.New("aichat: error decoding stdout")
	}
	return stdout.String(), nil
}

// args builds the full argument list for an execution. Media handles are
// passed as file paths and must remain valid until the process exits.
func (a *AIChat) args(chat *ChatContext) []string {
	args := []string{"--no-stream"}
	if chat.Model != "" {
		args = append(args, "--model", a.backend.stripPrefix(chat.Model))
	}
	if len(chat.Media) > 0 {
		args = append(args, "--file")
		for _, h := range chat.Media {
			args = append(args, h.Path())
		}
	}
	return append(args, "--", chat.StringPromptWithRole())
}

// modelLines splits newline-delimited output, discarding blank lines.
func modelLines(out []byte) []string {
	var models []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			models = append(models, line)
		}
	}
	return models
}

// defaultModelFromInfo finds the line beginning with "model" and takes its
// second whitespace-delimited token.
func defaultModelFromInfo(out []byte) (string, bool) {
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "model") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", false
		}
		return fields[1], true
	}
	return "", false
}
