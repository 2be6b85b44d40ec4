package describe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	olla "github.com/ollama/ollama/api"
)

const DefaultOllamaURL = "http://localhost:11434"

type Ollama struct {
	client      *olla.Client
	model       string
	temperature float32
}

func NewOllama(base *url.URL, model string, temperature float32, hc *http.Client) *Ollama {
	return &Ollama{olla.NewClient(base, hc), model, temperature}
}

func (o *Ollama) Generate(ctx context.Context, digest string, hint string) (string, error) {
	stream := false
	var answer strings.Builder
	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:   o.model,
		Prompt:  Prompt(digest, hint),
		Stream:  &stream,
		Options: map[string]any{"temperature": o.temperature},
	}, func(resp olla.GenerateResponse) error {
		answer.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama generate: %w", ErrUnavailable, err)
	}
	return answer.String(), nil
}
