package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/dasmlab/polyglot/pkg/batch"
	"github.com/dasmlab/polyglot/pkg/i18n"
	"github.com/dasmlab/polyglot/pkg/localize"
	"github.com/dasmlab/polyglot/pkg/pipeline"
	"github.com/dasmlab/polyglot/pkg/service"
)

//go:embed templates/*.html
var templateFS embed.FS

const previewRows = 10

type pageRenderer struct {
	dashboard *template.Template
	job       *template.Template
}

func newPageRenderer() *pageRenderer {
	return &pageRenderer{
		dashboard: template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/dashboard.html")),
		job:       template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/job.html")),
	}
}

type languageOption struct {
	Code string
	Name string
}

type formValues struct {
	Text       string
	SourceLang string
	TargetLang string
	Currency   string
	Units      string
	Column     string
}

// page is the data handed to the dashboard templates.
type page struct {
	Locale     string
	Tab        string
	Languages  []languageOption
	Currencies []localize.Currency
	Form       formValues

	Translation  *pipeline.TranslationResult
	Localization *pipeline.LocalizationResult
	Error        string

	Job     *service.JobSnapshot
	Preview *batch.Table

	catalog *i18n.Catalog
}

// T renders a UI message.
func (p page) T(key string) string {
	return p.catalog.T(p.Locale, key, nil)
}

// TData renders a UI message with template data given as key/value pairs.
func (p page) TData(key string, pairs ...any) string {
	data := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		data[fmt.Sprint(pairs[i])] = pairs[i+1]
	}
	return p.catalog.T(p.Locale, key, data)
}

// Query returns the query string that keeps the UI locale.
func (p page) Query() template.URL {
	return template.URL("lang=" + url.QueryEscape(p.Locale))
}

func (s *HTTPServer) newPage(r *http.Request, tab string) page {
	locale := s.deps.Catalog.Resolve(r.FormValue("lang"), r.Header.Get("Accept-Language"))

	langs := make([]languageOption, 0)
	for _, l := range s.deps.Registry.Languages() {
		langs = append(langs, languageOption{Code: l.Code, Name: s.deps.Registry.Name(l.Code)})
	}

	switch tab {
	case "translate", "localize", "batch":
	default:
		tab = "translate"
	}

	return page{
		Locale:     locale,
		Tab:        tab,
		Languages:  langs,
		Currencies: localize.Currencies(),
		Form: formValues{
			SourceLang: "en",
			TargetLang: "es",
			Currency:   string(localize.USD),
			Units:      string(localize.Metric),
		},
		catalog: s.deps.Catalog,
	}
}

func (s *HTTPServer) render(w http.ResponseWriter, tmpl *template.Template, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", p); err != nil {
		s.logger.WithError(err).Error("Failed to render dashboard page")
	}
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, s.pages.dashboard, http.StatusOK, s.newPage(r, r.URL.Query().Get("tab")))
}

func (s *HTTPServer) handleDashboardTranslate(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "translate")
	p.Form.Text = r.FormValue("text")
	p.Form.SourceLang = r.FormValue("source_lang")
	p.Form.TargetLang = r.FormValue("target_lang")

	res, err := s.deps.Translation.Translate(r.Context(), p.Form.Text, p.Form.SourceLang, p.Form.TargetLang)
	if err != nil {
		p.Error = err.Error()
		s.render(w, s.pages.dashboard, http.StatusInternalServerError, p)
		return
	}
	p.Translation = &res
	s.render(w, s.pages.dashboard, http.StatusOK, p)
}

func (s *HTTPServer) handleDashboardLocalize(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "localize")
	p.Form.Text = r.FormValue("text")
	p.Form.SourceLang = r.FormValue("source_lang")
	p.Form.TargetLang = r.FormValue("target_lang")
	if v := r.FormValue("currency"); v != "" {
		p.Form.Currency = v
	}
	if v := r.FormValue("units"); v != "" {
		p.Form.Units = v
	}

	res, err := s.deps.Localization.Localize(r.Context(), p.Form.Text, p.Form.SourceLang, p.Form.TargetLang, p.Form.Currency, p.Form.Units)
	if err != nil {
		p.Error = err.Error()
		s.render(w, s.pages.dashboard, http.StatusInternalServerError, p)
		return
	}
	p.Localization = &res
	s.render(w, s.pages.dashboard, http.StatusOK, p)
}

func (s *HTTPServer) handleDashboardBatch(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "batch")
	req, err := readBatchUpload(r)
	if err == nil {
		var jobID string
		jobID, err = s.deps.Jobs.CreateJob(req)
		if err == nil {
			http.Redirect(w, r, "/dashboard/jobs/"+jobID+"?"+string(p.Query()), http.StatusSeeOther)
			return
		}
	}
	p.Form.Column = r.FormValue("column")
	p.Error = err.Error()
	s.render(w, s.pages.dashboard, http.StatusUnprocessableEntity, p)
}

func (s *HTTPServer) handleDashboardJob(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "batch")
	job, err := s.deps.Jobs.GetJob(r.PathValue("id"))
	if err != nil {
		p.Error = err.Error()
		s.render(w, s.pages.job, http.StatusNotFound, p)
		return
	}

	snap := job.Snapshot()
	p.Job = &snap
	if snap.Status == service.JobStatusCompleted {
		if table, err := s.deps.Jobs.Result(snap.ID); err == nil {
			preview := table.Clone()
			if len(preview.Rows) > previewRows {
				preview.Rows = preview.Rows[:previewRows]
			}
			p.Preview = preview
		}
	}
	s.render(w, s.pages.job, http.StatusOK, p)
}
