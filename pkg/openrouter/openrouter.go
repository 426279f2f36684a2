// Package openrouter builds chat model clients against the OpenRouter API.
// The pipeline runs three model roles with different settings, so the config
// here is a builder instantiated once per role.
package openrouter

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// LLMBuilder abstracts chat model construction so tests can inject fakes.
type LLMBuilder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ LLMBuilder = (*Config)(nil)

// reasoningBlacklist lists models whose reasoning stream must be disabled
// explicitly or structured output breaks.
var reasoningBlacklist = map[string]bool{
	"x-ai/grok-4.1-fast": true,
}

type Config struct {
	BaseURL            string        `split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `split_words:"true" required:"true"`
	Model              string        `split_words:"true" required:"true"`
	MaxCompletionToken *int          `split_words:"true" default:"2000"`
	Temperature        float32       `split_words:"true" default:"0.3"`
	Timeout            time.Duration `split_words:"true" default:"30s"`
	SiteURL            string        `split_words:"true"`
	SiteName           string        `split_words:"true"`
}

// WithModel returns a copy of the config pointed at another model with its
// own temperature. Used to derive the validator and refiner roles from the
// base interpreter settings.
func (c Config) WithModel(modelName string, temperature float32) *Config {
	out := c
	if strings.TrimSpace(modelName) != "" {
		out.Model = modelName
	}
	out.Temperature = temperature
	return &out
}

func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	modelName := strings.TrimSpace(c.Model)

	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(c.BaseURL, "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       modelName,
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &c.Temperature,
		Timeout:     c.Timeout,
	}

	if reasoningBlacklist[modelName] {
		conf.ExtraFields = map[string]any{
			"reasoning": map[string]any{
				"exclude": true,
				"effort":  "none",
			},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model: %w", err)
	}

	return m, nil
}

// NewClient creates a raw OpenAI SDK client configured for OpenRouter, for
// callers that need the SDK surface instead of an eino model.
func NewClient(cfg Config) *openaisdk.Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}

	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
