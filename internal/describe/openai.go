package describe

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI asks a chat completion endpoint for the description. Any
// OpenAI-compatible server works through baseURL.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAI(apiKey string, baseURL string, model string, temperature float32, hc *http.Client) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if hc != nil {
		config.HTTPClient = hc
	}
	return &OpenAI{openai.NewClientWithConfig(config), model, temperature}
}

func (o *OpenAI) Generate(ctx context.Context, digest string, hint string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(digest, hint)},
		},
		Temperature: &o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %w", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
