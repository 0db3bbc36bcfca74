package featureflags

import (
	"context"
	"errors"
	"testing"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
)

type tenantRepo map[string]*domain.Tenant

func (r tenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	if id == "broken" {
		return nil, errors.New("connection reset")
	}
	t, ok := r[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func TestEnabled(t *testing.T) {
	t.Setenv("FLAG_CROSSFIT", "Yes")
	t.Setenv("FLAG_AULAS_EXTRAS", "0")
	if !Enabled(Crossfit) {
		t.Fatal("expected crossfit enabled")
	}
	if Enabled(AulasExtras) {
		t.Fatal("expected aulas extras disabled")
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("FLAG_AULAS_EXTRAS", "true")
	t.Setenv("FLAG_CROSSFIT", "")
	cfg, err := EnvProvider{}.ForTenant(context.Background(), "any")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.AulasExtrasAtivas || cfg.CrossfitAtivo {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestRepositoryProvider(t *testing.T) {
	t.Setenv("FLAG_CROSSFIT", "1")
	t.Setenv("FLAG_AULAS_EXTRAS", "")
	p := RepositoryProvider{
		Tenants:  tenantRepo{"t1": {ID: "t1", AulasExtrasAtivas: true}},
		Fallback: EnvProvider{},
	}
	ctx := context.Background()

	cfg, err := p.ForTenant(ctx, "t1")
	if err != nil || !cfg.AulasExtrasAtivas || cfg.CrossfitAtivo {
		t.Fatalf("expected tenant row flags, got %+v err=%v", cfg, err)
	}

	cfg, err = p.ForTenant(ctx, "unknown")
	if err != nil || !cfg.CrossfitAtivo {
		t.Fatalf("expected env fallback for unknown tenant, got %+v err=%v", cfg, err)
	}

	if _, err := p.ForTenant(ctx, "broken"); err == nil {
		t.Fatal("expected repository error to surface")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != (TenantConfig{}) {
		t.Fatal("expected zero config without WithConfig")
	}
	ctx := WithConfig(context.Background(), TenantConfig{CrossfitAtivo: true})
	if !FromContext(ctx).CrossfitAtivo {
		t.Fatal("expected attached config")
	}
}
