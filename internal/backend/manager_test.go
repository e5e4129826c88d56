package backend

import (
	"context"
	"strings"
	"testing"
)

// fakeLLM records executions and serves canned model lists.
type fakeLLM struct {
	models   []string
	deflt    string
	reply    string
	executed *string
}

func (f *fakeLLM) ListModels() []string { return f.models }

func (f *fakeLLM) DefaultModel() (string, bool) {
	if f.deflt == "" {
		return "", false
	}
	return f.deflt, true
}

func (f *fakeLLM) Execute(ctx context.Context, chat *ChatContext) (string, error) {
	if f.executed != nil {
		*f.executed = chat.Model
	}
	return f.reply, nil
}

func fakeManager(fakes map[string]*fakeLLM, backends ...Backend) *Manager {
	m := NewManager(backends)
	m.adapter = func(b Backend) LLM {
		if f, ok := fakes[b.DisplayName()]; ok {
			return f
		}
		return &fakeLLM{}
	}
	return m
}

func TestValidateModel_SingleBackendAcceptsAnything(t *testing.T) {
	m := fakeManager(nil, Backend{Kind: KindOpenAICompatible})
	if err := m.ValidateModel("anything"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestValidateModel_MultipleBackendsRequirePrefix(t *testing.T) {
	m := fakeManager(nil,
		Backend{Kind: KindOpenAICompatible, Name: "a"},
		Backend{Kind: KindOpenAICompatible, Name: "b"},
	)
	if err := m.ValidateModel("b:gpt-x"); err != nil {
		t.Fatalf("unexpected err for prefixed model: %v", err)
	}
	err := m.ValidateModel("gpt-x")
	if err == nil {
		t.Fatal("expected validation error for bare model name")
	}
	if !strings.Contains(err.Error(), "backend prepended") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestValidateModel_KnownModelSkipsPrefixCheck(t *testing.T) {
	fakes := map[string]*fakeLLM{
		"a": {models: []string{"gpt-x"}},
		"b": {},
	}
	m := fakeManager(fakes,
		Backend{Kind: KindOpenAICompatible, Name: "a"},
		Backend{Kind: KindOpenAICompatible, Name: "b"},
	)
	if err := m.ValidateModel("a:gpt-x"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestListKnownModels_PrefixedOnlyWithMultipleBackends(t *testing.T) {
	fakes := map[string]*fakeLLM{"a": {models: []string{"m1", "m2"}}}
	m := fakeManager(fakes, Backend{Kind: KindOpenAICompatible, Name: "a"})
	got := m.ListKnownModels()
	if len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
		t.Fatalf("unexpected single-backend models: %v", got)
	}

	fakes["b"] = &fakeLLM{models: []string{"m3"}}
	m = fakeManager(fakes,
		Backend{Kind: KindOpenAICompatible, Name: "a"},
		Backend{Kind: KindOpenAICompatible, Name: "b"},
	)
	got = m.ListKnownModels()
	want := []string{"a:m1", "a:m2", "b:m3"}
	if len(got) != len(want) {
		t.Fatalf("unexpected models: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected models: got %v want %v", got, want)
		}
	}
}

func TestDefaultModel_NamespacedWithMultipleBackends(t *testing.T) {
	fakes := map[string]*fakeLLM{"a": {deflt: "m1"}}
	m := fakeManager(fakes, Backend{Kind: KindOpenAICompatible, Name: "a"})
	if model, ok := m.DefaultModel(); !ok || model != "m1" {
		t.Fatalf("unexpected default: %q ok=%v", model, ok)
	}

	m = fakeManager(fakes,
		Backend{Kind: KindOpenAICompatible, Name: "a"},
		Backend{Kind: KindOpenAICompatible, Name: "b"},
	)
	if model, ok := m.DefaultModel(); !ok || model != "a:m1" {
		t.Fatalf("unexpected namespaced default: %q ok=%v", model, ok)
	}

	if _, ok := NewManager(nil).DefaultModel(); ok {
		t.Fatal("expected no default model with no backends")
	}
}

func TestExecute_RoutesByModelPrefix(t *testing.T) {
	var gotA, gotB string
	fakes := map[string]*fakeLLM{
		"a": {reply: "from a", executed: &gotA},
		"b": {reply: "from b", executed: &gotB},
	}
	m := fakeManager(fakes,
		Backend{Kind: KindOpenAICompatible, Name: "a"},
		Backend{Kind: KindOpenAICompatible, Name: "b"},
	)

	out, err := m.Execute(context.Background(), &ChatContext{Model: "b:gpt-x"})
	if err != nil || out != "from b" {
		t.Fatalf("unexpected routing: out=%q err=%v", out, err)
	}
	if gotB != "b:gpt-x" {
		t.Fatalf("adapter did not receive the model: %q", gotB)
	}

	// No model and no prefix match both fall back to the first backend.
	out, err = m.Execute(context.Background(), &ChatContext{})
	if err != nil || out != "from a" {
		t.Fatalf("unexpected fallback: out=%q err=%v", out, err)
	}
	out, err = m.Execute(context.Background(), &ChatContext{Model: "zzz:gpt"})
	if err != nil || out != "from a" {
		t.Fatalf("unexpected no-match fallback: out=%q err=%v", out, err)
	}
}

func TestExecute_NoBackendsConfigured(t *testing.T) {
	_, err := NewManager(nil).Execute(context.Background(), &ChatContext{})
	if err == nil || !strings.Contains(err.Error(), "no backends configured") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestListKnownBackends_UsesDisplayNames(t *testing.T) {
	m := NewManager([]Backend{
		{Kind: KindAIChat},
		{Kind: KindOpenAICompatible},
		{Kind: KindOpenAICompatible, Name: "local"},
	})
	got := m.ListKnownBackends()
	want := []string{"aichat", "openai", "local"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected names: got %v want %v", got, want)
		}
	}
}
