package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/openrouter"
)

// Role selects which model call a configuration is for.
type Role string

const (
	// RoleTools is the first call of a turn, offered the tool set.
	RoleTools Role = "tools"
	// RoleReply is the follow-up call that turns tool results into a reply.
	RoleReply Role = "reply"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ToolModel        string  `envconfig:"TOOL_MODEL" split_words:"true"`
	ReplyModel       string  `envconfig:"REPLY_MODEL" split_words:"true"`
	ToolTemperature  float32 `envconfig:"TOOL_TEMPERATURE" split_words:"true" default:"-1"`
	ReplyTemperature float32 `envconfig:"REPLY_TEMPERATURE" split_words:"true" default:"-1"`

	// OpenAI endpoint for embeddings, transcription and speech. These APIs
	// are not proxied by OpenRouter.
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleTools:
		if v := strings.TrimSpace(c.ToolModel); v != "" {
			modelName = v
		}
		if c.ToolTemperature >= 0 {
			temp = c.ToolTemperature
		}
	case RoleReply:
		if v := strings.TrimSpace(c.ReplyModel); v != "" {
			modelName = v
		}
		if c.ReplyTemperature >= 0 {
			temp = c.ReplyTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// SameModel reports whether both roles resolve to one model configuration,
// so a single chat model instance can serve the whole turn.
func (c Config) SameModel() bool {
	return c.OpenRouterFor(RoleTools).Model == c.OpenRouterFor(RoleReply).Model &&
		c.OpenRouterFor(RoleTools).Temperature == c.OpenRouterFor(RoleReply).Temperature
}

// OpenAI returns the endpoint used for embeddings and speech. It falls back
// to the chat endpoint when no dedicated key is set.
func (c Config) OpenAI() openrouterx.Config {
	key := strings.TrimSpace(c.OpenAIAPIKey)
	base := strings.TrimSpace(c.OpenAIBaseURL)
	if key == "" {
		key = strings.TrimSpace(c.APIKey)
		base = strings.TrimSpace(c.BaseURL)
	}
	return openrouterx.Config{
		BaseURL: base,
		APIKey:  key,
		Timeout: c.Timeout,
	}
}
