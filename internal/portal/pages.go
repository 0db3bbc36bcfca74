package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
	"github.com/aryan0dhankhar/academyportal/internal/security"
)

var (
	//go:embed templates/*.html
	templateFS embed.FS
	//go:embed content/*.md
	contentFS embed.FS
	//go:embed static
	staticFS embed.FS
)

// mdRenderer escapes raw HTML in page sources (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var recordID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// loadingRefresh is the refresh interval of the loading page, in seconds.
const loadingRefresh = 1

// Pages renders portal HTML. Markdown sources are converted once at startup.
type Pages struct {
	tpl      *template.Template
	areas    map[security.Area]template.HTML
	features map[string]template.HTML
	logger   *slog.Logger
}

type layoutData struct {
	Title     string
	Refresh   int
	Chrome    *Chrome
	CSRFField template.HTML
	Body      template.HTML
}

// NewPages parses the embedded templates and markdown sources
func NewPages(logger *slog.Logger) (*Pages, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	p := &Pages{
		tpl:      tpl,
		areas:    make(map[security.Area]template.HTML, len(AreaRoutes)),
		features: make(map[string]template.HTML, 2),
		logger:   logger,
	}
	for _, route := range AreaRoutes {
		html, err := renderMarkdown("content/" + string(route.Area) + ".md")
		if err != nil {
			return nil, err
		}
		p.areas[route.Area] = html
	}
	for _, name := range []string{PageAulasExtras, PageCrossfit} {
		html, err := renderMarkdown("content/" + name + ".md")
		if err != nil {
			return nil, err
		}
		p.features[name] = html
	}
	return p, nil
}

func renderMarkdown(path string) (template.HTML, error) {
	src, err := fs.ReadFile(contentFS, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", path, err)
	}
	return template.HTML(buf.String()), nil
}

func (p *Pages) partial(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := p.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// render writes the layout around body. Output is buffered so a template
// error never leaves a half-written page.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, title string, refresh int, body template.HTML) {
	data := layoutData{
		Title:     title,
		Refresh:   refresh,
		Chrome:    ChromeFrom(r.Context()),
		CSRFField: csrf.TemplateField(r),
		Body:      body,
	}
	var buf bytes.Buffer
	if err := p.tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		p.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (p *Pages) internalError(w http.ResponseWriter, err error) {
	p.logger.Error("internal_error", slog.String("error", err.Error()))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// Loading serves the blocking page shown while the identity is resolved. It
// reloads itself until the guard can decide.
func (p *Pages) Loading(w http.ResponseWriter, r *http.Request) {
	body, err := p.partial("loading", nil)
	if err != nil {
		p.internalError(w, err)
		return
	}
	p.render(w, r, http.StatusOK, "Carregando", loadingRefresh, body)
}

// Denied serves the inline 403 panel naming the offending role.
func (p *Pages) Denied(w http.ResponseWriter, r *http.Request, role string) {
	body, err := p.partial("denied", struct{ Role string }{Role: role})
	if err != nil {
		p.internalError(w, err)
		return
	}
	p.render(w, r, http.StatusForbidden, "Acesso negado", 0, body)
}

// Login serves the login form with an optional error message.
func (p *Pages) Login(w http.ResponseWriter, r *http.Request, status int, email, message string) {
	body, err := p.partial("login", struct {
		Email     string
		Message   string
		CSRFField template.HTML
	}{Email: email, Message: message, CSRFField: csrf.TemplateField(r)})
	if err != nil {
		p.internalError(w, err)
		return
	}
	p.render(w, r, status, "Entrar", 0, body)
}

// Area serves an area's index at its prefix and its sub-pages at
// prefix/{page}: tenant feature pages and, in the records area, student records.
func (p *Pages) Area(route AreaRoute) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.PathValue("page")
		if page == "" {
			p.render(w, r, http.StatusOK, route.Title, 0, p.areas[route.Area])
			return
		}

		cfg := featureflags.FromContext(r.Context())
		switch {
		case page == PageAulasExtras && cfg.AulasExtrasAtivas:
			p.render(w, r, http.StatusOK, "Aulas extras", 0, p.features[page])
		case page == PageCrossfit && cfg.CrossfitAtivo:
			p.render(w, r, http.StatusOK, "CrossFit", 0, p.features[page])
		case route.Area == security.AreaRecords && p.features[page] == "" && recordID.MatchString(page):
			body, err := p.partial("record", struct{ ID string }{ID: page})
			if err != nil {
				p.internalError(w, err)
				return
			}
			p.render(w, r, http.StatusOK, "Aluno "+page, 0, body)
		default:
			http.NotFound(w, r)
		}
	})
}

// Static serves the embedded assets under /static/.
func (p *Pages) Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
