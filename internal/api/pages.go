package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/ag3dash/server/internal/query"
	"github.com/ag3dash/server/internal/service"
	"github.com/ag3dash/server/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "sample_sets", "query_builder", "sampling_locations"}

var pages = parsePages()

func parsePages() map[string]*template.Template {
	funcs := template.FuncMap{"comma": func(n int) string { return humanize.Comma(int64(n)) }}
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		out[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return out
}

const welcomeText = `Welcome to this app for browsing data from the MalariaGEN Vector Observatory
[*Anopheles gambiae* genomic surveillance project](https://www.malariagen.net/anopheles-gambiae-genomic-surveillance-project).

Please select an option from the pages in the navigation bar to begin.
`

// renderMarkdown converts a markdown fragment to HTML. Raw HTML in the input
// is escaped.
func renderMarkdown(md string) template.HTML {
	if md == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.SkipHTML})
	return template.HTML(markdown.ToHTML([]byte(md), p, r))
}

type pageData struct {
	Title string
	Page  string
	Body  interface{}
}

func (s *server) render(w http.ResponseWriter, name, title string, body interface{}) {
	var buf bytes.Buffer
	if err := pages[name].Execute(&buf, pageData{Title: title, Page: name, Body: body}); err != nil {
		log.Printf("[Pages] Failed to render %s: %v", name, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *server) homePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "home", s.title, struct {
		Intro    template.HTML
		Accessor string
	}{
		Intro:    renderMarkdown(welcomeText),
		Accessor: s.sessions.Catalog().Accessor().Describe(),
	})
}

type sampleSetsView struct {
	Rows    []session.SampleSetRow
	Epoch   int
	Snippet template.HTML
	Summary service.Summary
}

func (s *server) sampleSetsPage(w http.ResponseWriter, r *http.Request) {
	st := getSession(r).State()
	sum, err := s.dashboard.Summary(r.Context(), st.SelectedSets)
	if err != nil {
		writeError(w, err)
		return
	}
	s.render(w, "sample_sets", "Sample sets", sampleSetsView{
		Rows:    st.SampleSets,
		Epoch:   st.ResetEpoch,
		Snippet: renderMarkdown(query.SampleSetsSnippet(st.SelectedSets)),
		Summary: sum,
	})
}

// sampleSetsEditForm applies the checked rows of the selection form. Forms
// rendered before the last reset are discarded.
func (s *server) sampleSetsEditForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	epoch, err := strconv.Atoi(r.PostForm.Get("epoch"))
	if err != nil {
		http.Error(w, "invalid epoch", http.StatusBadRequest)
		return
	}
	ids := r.PostForm["selected"]

	_, err = getSession(r).Update(func(st session.State) (session.State, error) {
		if err := session.CheckEpoch(st, epoch); err != nil {
			return st, err
		}
		return session.OnSelectionSubmitted(st, ids), nil
	})
	if err != nil && !errors.Is(err, session.ErrStaleEpoch) {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/sample-sets", http.StatusSeeOther)
}

func (s *server) sampleSetsResetForm(w http.ResponseWriter, r *http.Request) {
	getSession(r).Update(func(st session.State) (session.State, error) {
		return session.OnResetRequested(st), nil
	})
	http.Redirect(w, r, "/sample-sets", http.StatusSeeOther)
}

type optionView struct {
	Value    string
	Selected bool
}

type multiselectView struct {
	Name    string
	Label   string
	Options []optionView
}

type queryBuilderView struct {
	Snippet template.HTML
	Count   int
	Filters []multiselectView
}

func (s *server) queryBuilderPage(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r)
	st := sess.State()
	res, err := s.dashboard.Query(r.Context(), query.Compile(st.Filter))
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := s.sessions.Catalog().Options(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	years := make([]string, len(opts.Years))
	for i, y := range opts.Years {
		years[i] = strconv.Itoa(y)
	}
	offered := map[query.Dimension][]string{
		query.Countries: opts.Countries,
		query.Taxa:      opts.Taxa,
		query.Years:     years,
	}

	view := queryBuilderView{Snippet: renderMarkdown(res.Snippet), Count: res.Count}
	for _, d := range query.Dimensions {
		chosen := make(map[string]bool)
		for _, v := range st.Filter.Values(d) {
			chosen[v] = true
		}
		ms := multiselectView{Name: string(d), Label: d.Label()}
		for _, v := range offered[d] {
			ms.Options = append(ms.Options, optionView{Value: v, Selected: chosen[v]})
		}
		view.Filters = append(view.Filters, ms)
	}
	s.render(w, "query_builder", "Sample query builder", view)
}

// queryBuilderFiltersForm overwrites all three dimensions from the posted
// multiselects.
func (s *server) queryBuilderFiltersForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	_, err := getSession(r).Update(func(st session.State) (session.State, error) {
		var err error
		for _, d := range query.Dimensions {
			st, err = session.OnMultiselectChanged(st, string(d), r.PostForm[string(d)])
			if err != nil {
				return st, err
			}
		}
		return st, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/query-builder", http.StatusSeeOther)
}

func (s *server) queryBuilderClearForm(w http.ResponseWriter, r *http.Request) {
	getSession(r).Update(func(st session.State) (session.State, error) {
		return session.OnFiltersCleared(st), nil
	})
	http.Redirect(w, r, "/query-builder", http.StatusSeeOther)
}

func (s *server) samplingLocationsPage(w http.ResponseWriter, r *http.Request) {
	locs, err := s.dashboard.AllLocations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.render(w, "sampling_locations", s.title+" - Map of sampling locations", locs)
}
