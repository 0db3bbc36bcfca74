package featureflags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
)

// Flag names as read from the environment (FLAG_<NAME>).
const (
	AulasExtras = "aulas_extras"
	Crossfit    = "crossfit"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// TenantConfig is the read-only per-tenant feature set navigation depends on.
type TenantConfig struct {
	AulasExtrasAtivas bool `json:"aulasExtrasAtivas"`
	CrossfitAtivo     bool `json:"crossfitAtivo"`
}

// Provider resolves the config for a tenant
type Provider interface {
	ForTenant(ctx context.Context, tenantID string) (TenantConfig, error)
}

// EnvProvider serves the same flags to every tenant from FLAG_AULAS_EXTRAS and FLAG_CROSSFIT.
type EnvProvider struct{}

func (EnvProvider) ForTenant(context.Context, string) (TenantConfig, error) {
	return TenantConfig{
		AulasExtrasAtivas: Enabled(AulasExtras),
		CrossfitAtivo:     Enabled(Crossfit),
	}, nil
}

// RepositoryProvider reads flags from the tenant row. Unknown tenants fall
// back to the provider in Fallback (all flags off when nil).
type RepositoryProvider struct {
	Tenants  domain.TenantRepository
	Fallback Provider
}

func (p RepositoryProvider) ForTenant(ctx context.Context, tenantID string) (TenantConfig, error) {
	if tenantID == "" {
		return p.fallback(ctx, tenantID)
	}
	t, err := p.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return p.fallback(ctx, tenantID)
		}
		return TenantConfig{}, fmt.Errorf("failed to load tenant config: %w", err)
	}
	return TenantConfig{
		AulasExtrasAtivas: t.AulasExtrasAtivas,
		CrossfitAtivo:     t.CrossfitAtivo,
	}, nil
}

func (p RepositoryProvider) fallback(ctx context.Context, tenantID string) (TenantConfig, error) {
	if p.Fallback == nil {
		return TenantConfig{}, nil
	}
	return p.Fallback.ForTenant(ctx, tenantID)
}

type contextKey struct{}

// WithConfig attaches cfg to ctx
func WithConfig(ctx context.Context, cfg TenantConfig) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the config attached by WithConfig, or the zero config.
func FromContext(ctx context.Context) TenantConfig {
	cfg, _ := ctx.Value(contextKey{}).(TenantConfig)
	return cfg
}
