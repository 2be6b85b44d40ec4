// Package describe produces the description of a resource from a digest
// of its files and a free-form hint.
package describe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"rpucella.net/red-drive/internal/config"
	"rpucella.net/red-drive/internal/logger"
)

// ErrUnavailable is returned when the text service could not produce a
// description. Callers recover by using a placeholder.
var ErrUnavailable = errors.New("description generator unavailable")

type Generator interface {
	Generate(ctx context.Context, digest string, hint string) (string, error)
}

// Static always answers with the same text.
type Static string

func (s Static) Generate(ctx context.Context, digest string, hint string) (string, error) {
	return string(s), nil
}

// Describer runs a Generator and never fails: a failed or empty answer
// is replaced by the placeholder.
type Describer struct {
	gen         Generator
	placeholder string
	log         *logrus.Entry
}

// NewDescriber accepts a nil gen, in which case every description is the
// placeholder and no call is made.
func NewDescriber(gen Generator, placeholder string, log *logrus.Entry) *Describer {
	return &Describer{gen, placeholder, logger.OrDefault(log, "describe")}
}

func (d *Describer) Placeholder() string {
	return d.placeholder
}

func (d *Describer) Describe(ctx context.Context, digest string, hint string) string {
	if d == nil {
		return ""
	}
	if d.gen == nil {
		return d.placeholder
	}
	text, err := d.gen.Generate(ctx, digest, hint)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty answer", ErrUnavailable)
	}
	if err != nil {
		d.log.WithError(err).Warn("using placeholder description")
		return d.placeholder
	}
	return text
}

// New builds the generator named by cfg.Provider. It returns nil for
// "none".
func New(cfg config.DescribeConfig) (Generator, error) {
	hc := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("describe provider openai needs an apiKey")
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, hc), nil
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = DefaultOllamaURL
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama url: %w", err)
		}
		return NewOllama(u, cfg.Model, cfg.Temperature, hc), nil
	}
	return nil, fmt.Errorf("unknown describe provider %q", cfg.Provider)
}
