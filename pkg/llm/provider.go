package llm

import (
	"context"

	"github.com/joss/gamepilot/internal/domain"
)

// Provider is the interface all model providers must implement
type Provider interface {
	ID() string
	Name() string
	Models() []domain.Model

	// Generate sends messages and blocks until the full response arrives
	Generate(ctx context.Context, req *GenerateRequest) (*domain.GenerateResult, error)
}

// GenerateRequest represents a single generation call
type GenerateRequest struct {
	Model    string
	Messages []domain.Message
	Options  domain.GenerateOptions
}

// ProviderRegistry holds all available providers
type ProviderRegistry struct {
	providers map[string]Provider
}

func NewRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

func (r *ProviderRegistry) Register(p Provider) {
	r.providers[p.ID()] = p
}

func (r *ProviderRegistry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

func (r *ProviderRegistry) List() []Provider {
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result
}
