// Package llm provides the optional narrative-polish providers. Polish is
// disabled unless a provider is configured, and its output never feeds
// back into scoring.
package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/vporoshin/curator/internal/model"
)

// Provider is a text-rewriting backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Rewrite turns a drafted summary into polished briefing prose.
	Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error)
}

// RewriteRequest carries the draft and enough cluster context to keep the
// rewrite grounded.
type RewriteRequest struct {
	Title     string
	Draft     string
	Topics    []string
	MaxTokens int
}

// RewriteResponse is the provider output.
type RewriteResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds provider configuration.
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Timeout           int // seconds
	MaxTokens         int
	RequestsPerSecond float64
}

// ConfigFromModel converts the application-level LLM settings.
func ConfigFromModel(m model.LLMConfig) Config {
	return Config{
		Provider:          m.Provider,
		Model:             m.Model,
		APIKey:            m.APIKey,
		BaseURL:           m.BaseURL,
		Timeout:           m.TimeoutSeconds,
		MaxTokens:         m.MaxTokens,
		RequestsPerSecond: m.RequestsPerSecond,
	}
}

// Polisher wraps a provider with request pacing. It satisfies the
// narrator's Polisher interface.
type Polisher struct {
	provider Provider
	limiter  *rate.Limiter
	cfg      Config
}

// NewPolisher creates a polisher for the configured provider. An empty
// provider name means polish is disabled and nil is returned.
func NewPolisher(cfg Config) (*Polisher, error) {
	if cfg.Provider == "" {
		return nil, nil
	}

	var provider Provider
	var err error
	switch cfg.Provider {
	case "openai":
		provider, err = NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Polisher{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		cfg:      cfg,
	}, nil
}

// Polish rewrites the drafted summary, waiting for rate-limit clearance
// first.
func (p *Polisher) Polish(ctx context.Context, cluster *model.Cluster, draft string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var topics []string
	for _, t := range cluster.Topics {
		topics = append(topics, t.Name)
	}
	resp, err := p.provider.Rewrite(ctx, RewriteRequest{
		Title:     cluster.Title,
		Draft:     draft,
		Topics:    topics,
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s rewrite: %w", p.provider.Name(), err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// BuildPrompt constructs the rewrite prompt. The provider must not invent
// facts beyond the draft.
func BuildPrompt(req RewriteRequest) string {
	prompt := fmt.Sprintf(`You are editing a daily AI-news briefing entry.

Rewrite the draft below into 2-3 clear sentences of briefing prose.

RULES:
1. Use ONLY facts present in the draft. Do not add numbers, names, or claims.
2. Keep organization names and product names exactly as written.
3. No headlines, no bullet points, plain prose only.

Story title: %s
`, req.Title)

	if len(req.Topics) > 0 {
		prompt += fmt.Sprintf("Topics: %s\n", strings.Join(req.Topics, ", "))
	}
	prompt += fmt.Sprintf("\nDraft:\n%s\n", req.Draft)
	return prompt
}
