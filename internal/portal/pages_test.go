package portal

import (
	"bytes"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
)

func TestNavigation(t *testing.T) {
	tests := []struct {
		name string
		role string
		cfg  featureflags.TenantConfig
		want []NavItem
	}{
		{
			name: "student with crossfit",
			role: "ALUNO",
			cfg:  featureflags.TenantConfig{CrossfitAtivo: true},
			want: []NavItem{
				{Label: "Área do aluno", Path: "/dashboarduser/aluno-dashboard"},
				{Label: "CrossFit", Path: "/dashboarduser/aluno-dashboard/crossfit"},
			},
		},
		{
			name: "admin without features",
			role: "ADMIN",
			want: []NavItem{
				{Label: "Painel administrativo", Path: "/dashboard"},
				{Label: "Área do funcionário", Path: "/funcionario"},
				{Label: "Alunos", Path: "/aluno"},
			},
		},
		{
			name: "unknown role sees nothing",
			role: "PROFESSOR",
			cfg:  featureflags.TenantConfig{AulasExtrasAtivas: true, CrossfitAtivo: true},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Navigation(tt.role, tt.cfg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Navigation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFeaturePagesFollowTenantFlags(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Flags = staticFlags{"t-1": {AulasExtrasAtivas: true}}
	})
	cookie := h.signIn(identity("u-1", "ADMIN"))

	w := h.get("/dashboard/aulas-extras", cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected enabled feature page, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `href="/dashboard/aulas-extras"`) {
		t.Error("expected the feature link in navigation")
	}
	if strings.Contains(w.Body.String(), `href="/dashboard/crossfit"`) {
		t.Error("disabled feature must not be linked")
	}

	if w := h.get("/dashboard/crossfit", cookie); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for disabled feature, got %d", w.Code)
	}
}

func TestRecordsArea(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.signIn(identity("u-1", "FUNCIONARIO"))

	w := h.get("/aluno/5", cookie)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Aluno 5") {
		t.Fatalf("expected record page, got %d", w.Code)
	}
	if w := h.get("/aluno/crossfit", cookie); w.Code != http.StatusNotFound {
		t.Errorf("feature names are not records, got %d", w.Code)
	}
	if w := h.get("/funcionario/5", cookie); w.Code != http.StatusNotFound {
		t.Errorf("only the records area has record pages, got %d", w.Code)
	}
}

func TestAuthorizedPageRendersChrome(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.signIn(identity("u-1", "ADMIN"))

	w := h.get("/dashboard", cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"User u-1", `action="/logout"`, `href="/aluno"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("guarded pages must not be cached")
	}
}

func TestMarkdownEscapesRawHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte("# Título\n\n<script>alert(1)</script>\n"), &buf); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML leaked into page: %q", out)
	}
	if !strings.Contains(out, "<h1>Título</h1>") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t, nil)
	w := h.get("/static/portal.css")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("unexpected content type %q", ct)
	}
}
