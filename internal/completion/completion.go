package completion

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single prompt sent to a language model.
type Request struct {
	Model           string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int32
}

// Client sends a prompt to a language model and returns the generated text.
// Any transport, rate-limit or invalid-response problem is reported as an error.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a plain function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Router dispatches requests to a provider client based on the model id prefix,
// e.g. "groq:llama-3.3-70b-versatile" or "gemini:gemini-1.5-flash".
type Router struct {
	providers       map[string]Client
	defaultProvider string
}

// NewRouter creates a Router. Model ids without a provider prefix are sent to defaultProvider.
func NewRouter(defaultProvider string) *Router {
	return &Router{providers: make(map[string]Client), defaultProvider: defaultProvider}
}

// Register adds or replaces the client for a provider.
func (r *Router) Register(provider string, c Client) {
	r.providers[strings.ToLower(provider)] = c
}

// Providers returns the number of registered providers.
func (r *Router) Providers() int {
	return len(r.providers)
}

// SplitModel splits "provider:model" into its parts. An id without a colon has an empty provider.
func SplitModel(id string) (provider, model string) {
	if i := strings.Index(id, ":"); i > 0 {
		return strings.ToLower(id[:i]), id[i+1:]
	}
	return "", id
}

// Complete implements Client.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	provider, model := SplitModel(req.Model)
	if provider == "" {
		provider = r.defaultProvider
	}
	c, ok := r.providers[provider]
	if !ok {
		return "", fmt.Errorf("no client registered for provider %q (model %q)", provider, req.Model)
	}
	req.Model = model

	text, err := c.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", provider, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: empty response for model %s", provider, model)
	}
	return text, nil
}
