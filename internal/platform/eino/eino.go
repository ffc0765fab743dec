package eino

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"
)

// Config represents the configuration for Eino LLM integration
type Config struct {
	Provider string `json:"provider"` // only "gemini" is wired
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// Service wraps the chat model used by the conversational responder.
type Service struct {
	config    Config
	chatModel model.BaseChatModel
}

// TokenUsage represents token usage information
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NewService creates a new Eino service instance with proper provider initialization
func NewService(ctx context.Context, config Config) (*Service, error) {
	service := &Service{config: config}
	if err := service.initializeChatModel(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}
	return service, nil
}

// NewServiceWithModel creates a new Eino service instance with a pre-configured chat model
func NewServiceWithModel(config Config, chatModel model.BaseChatModel) *Service {
	return &Service{config: config, chatModel: chatModel}
}

func (s *Service) initializeChatModel(ctx context.Context) error {
	switch strings.ToLower(s.config.Provider) {
	case "gemini", "":
		return s.initializeGeminiModel(ctx)
	default:
		return fmt.Errorf("unsupported provider: %s. Supported: %s", s.config.Provider, strings.Join(GetAvailableProviders(), ", "))
	}
}

// initializeGeminiModel sets up Google Gemini as the LLM provider
func (s *Service) initializeGeminiModel(ctx context.Context) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("gemini api key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	geminiModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  s.config.Model, // e.g. "gemini-1.5-flash"
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini chat model: %w", err)
	}

	s.chatModel = geminiModel
	return nil
}

// Generate calls the chat model and reports token usage. Usage comes from the
// response metadata when the provider fills it, otherwise it is estimated.
func (s *Service) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, *TokenUsage, error) {
	if s.chatModel == nil {
		return nil, nil, fmt.Errorf("chat model not initialized")
	}
	resp, err := s.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("llm generation failed: %w", err)
	}
	if resp == nil {
		return nil, nil, fmt.Errorf("llm returned an empty response")
	}

	usage := &TokenUsage{}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		usage.InputTokens = resp.ResponseMeta.Usage.PromptTokens
		usage.OutputTokens = resp.ResponseMeta.Usage.CompletionTokens
		usage.TotalTokens = resp.ResponseMeta.Usage.TotalTokens
	}
	if usage.TotalTokens == 0 {
		usage.InputTokens = CountTokensInText(messagesToText(messages))
		usage.OutputTokens = CountTokensInText(resp.Content)
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return resp, usage, nil
}

// GetAvailableProviders returns list of supported LLM providers
func GetAvailableProviders() []string {
	return []string{"gemini"}
}

// CountTokensInText estimates tokens at ~4 characters per token.
func CountTokensInText(text string) int {
	return len(text) / 4
}

// StripCodeFence removes a markdown code fence some models wrap JSON in.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func messagesToText(messages []*schema.Message) string {
	var text strings.Builder
	for _, msg := range messages {
		text.WriteString(msg.Content)
		text.WriteString("\n")
	}
	return text.String()
}
