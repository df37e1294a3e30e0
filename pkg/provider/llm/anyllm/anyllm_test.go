package anyllm

import (
	"strings"
	"testing"

	"github.com/pagecoach/lectern/pkg/provider/llm"
)

func TestNewValidation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New with empty providerName should fail")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("New with empty model should fail")
	}
	if _, err := New("nonexistent-provider", "some-model"); err == nil {
		t.Error("New with unknown provider should fail")
	}
}

func TestBuildParamsSystemPrompt(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You summarise textbook segments.",
		Messages: []llm.Message{
			{Role: "user", Content: "Summarise pages 1-5."},
		},
	})

	if params.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("Messages[0].Role = %q, want system", params.Messages[0].Role)
	}
	if !strings.Contains(params.Messages[0].Content.(string), "summarise") {
		t.Errorf("system message content lost: %q", params.Messages[0].Content)
	}
	if params.Messages[1].Role != "user" {
		t.Errorf("Messages[1].Role = %q, want user", params.Messages[1].Role)
	}
}

func TestBuildParamsOptionalFields(t *testing.T) {
	p := &Provider{model: "m"}

	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Error("zero Temperature should be omitted")
	}
	if params.MaxTokens != nil {
		t.Error("zero MaxTokens should be omitted")
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("MaxTokens = %v, want 256", params.MaxTokens)
	}
}
