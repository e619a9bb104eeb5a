package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

func TestOpenRouterForRoleOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:           "key",
		Model:            "openai/gpt-4o",
		Temperature:      0.3,
		ToolModel:        "anthropic/claude-sonnet",
		ToolTemperature:  0,
		ReplyTemperature: -1,
	}

	tools := cfg.OpenRouterFor(RoleTools)
	if tools.Model != "anthropic/claude-sonnet" || tools.Temperature != 0 {
		t.Fatalf("tools config = %#v", tools)
	}
	reply := cfg.OpenRouterFor(RoleReply)
	if reply.Model != "openai/gpt-4o" || reply.Temperature != 0.3 {
		t.Fatalf("reply config = %#v", reply)
	}
	if cfg.SameModel() {
		t.Fatalf("SameModel() = true, want false")
	}
}

func TestOpenAIFallsBackToChatEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: "chat-key", BaseURL: "https://openrouter.ai/api/v1", OpenAIBaseURL: "https://api.openai.com/v1"}
	if got := cfg.OpenAI(); got.APIKey != "chat-key" || got.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("OpenAI() = %#v", got)
	}

	cfg.OpenAIAPIKey = "oa-key"
	if got := cfg.OpenAI(); got.APIKey != "oa-key" || got.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("OpenAI() = %#v", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
