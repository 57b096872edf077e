package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// GroqCompleter generates replies through Groq's OpenAI-compatible API.
type GroqCompleter struct {
	client openai.Client
	model  string
}

func NewGroqCompleter(apiKey, baseURL, model string) *GroqCompleter {
	return &GroqCompleter{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		model: model,
	}
}

func (c *GroqCompleter) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("groq completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq completion: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
