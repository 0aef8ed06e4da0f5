package upstream

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultSystemPrompt = "You are a concise, friendly concierge. Answer in a few sentences."

// OpenAIProvider chama a API de chat completions.
type OpenAIProvider struct {
	client       openai.Client
	model        string
	systemPrompt string
	maxTokens    int64
}

type OpenAIOption func(*OpenAIProvider)

func WithSystemPrompt(prompt string) OpenAIOption {
	return func(p *OpenAIProvider) { p.systemPrompt = prompt }
}

func WithMaxTokens(n int64) OpenAIOption {
	return func(p *OpenAIProvider) { p.maxTokens = n }
}

// NewOpenAIProvider cria o provider. baseURL vazio usa o endpoint padrão.
func NewOpenAIProvider(apiKey, baseURL, model string, opts ...OpenAIOption) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	p := &OpenAIProvider{
		client:       openai.NewClient(reqOpts...),
		model:        model,
		systemPrompt: defaultSystemPrompt,
		maxTokens:    512,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) Ask(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.systemPrompt),
			openai.UserMessage(prompt),
		},
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(p.maxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
