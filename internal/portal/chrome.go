package portal

import (
	"context"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
	"github.com/aryan0dhankhar/academyportal/internal/security"
)

// Feature pages shown under a user's landing area when the tenant enables them.
const (
	PageAulasExtras = "aulas-extras"
	PageCrossfit    = "crossfit"
)

// NavItem is one navigation link.
type NavItem struct {
	Label string
	Path  string
}

// Chrome is what an authorized page renders around its content.
type Chrome struct {
	User   *domain.Identity
	Role   domain.Role
	Nav    []NavItem
	Config featureflags.TenantConfig
}

// Navigation returns the links a role sees under cfg: every area the role
// may enter, then the tenant's optional features.
func Navigation(rawRole string, cfg featureflags.TenantConfig) []NavItem {
	var items []NavItem
	for _, route := range AreaRoutes {
		if security.Allows(route.Area, rawRole) {
			items = append(items, NavItem{Label: route.Title, Path: route.Prefix})
		}
	}
	if len(items) == 0 {
		return nil
	}

	home := LandingPath(rawRole)
	if cfg.AulasExtrasAtivas {
		items = append(items, NavItem{Label: "Aulas extras", Path: home + "/" + PageAulasExtras})
	}
	if cfg.CrossfitAtivo {
		items = append(items, NavItem{Label: "CrossFit", Path: home + "/" + PageCrossfit})
	}
	return items
}

type chromeKey struct{}

// WithChrome attaches c to ctx
func WithChrome(ctx context.Context, c *Chrome) context.Context {
	return context.WithValue(ctx, chromeKey{}, c)
}

// ChromeFrom returns the chrome attached by the guard, or nil outside a guarded area.
func ChromeFrom(ctx context.Context) *Chrome {
	c, _ := ctx.Value(chromeKey{}).(*Chrome)
	return c
}
