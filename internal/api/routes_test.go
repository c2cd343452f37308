package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ag3dash/server/internal/cache"
	"github.com/ag3dash/server/internal/catalog"
	"github.com/ag3dash/server/internal/data/vobs"
	"github.com/ag3dash/server/internal/metrics"
	"github.com/ag3dash/server/internal/render"
	"github.com/ag3dash/server/internal/service"
	"github.com/ag3dash/server/internal/session"
)

// testServer holds the test server and its dependencies
type testServer struct {
	server   *httptest.Server
	accessor *vobs.Static
	sessions *session.Store
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	acc := vobs.NewStatic(
		[]vobs.SampleSet{
			{SampleSet: "AG1000G-AO", SampleCount: 2, Taxon: "coluzzii", Region: "Luanda"},
			{SampleSet: "AG1000G-KE", SampleCount: 2, Taxon: "gambiae", Region: "Kilifi"},
		},
		[]vobs.SampleRecord{
			{SampleID: "s1", SampleSet: "AG1000G-AO", Country: "Angola", Admin1Name: "Luanda", Location: "Luanda", Taxon: "coluzzii", Year: 2009, Longitude: 13.2, Latitude: -8.8},
			{SampleID: "s2", SampleSet: "AG1000G-AO", Country: "Angola", Admin1Name: "Luanda", Location: "Luanda 2", Taxon: "coluzzii", Year: 2009, Longitude: 13.2, Latitude: -8.8},
			{SampleID: "s3", SampleSet: "AG1000G-KE", Country: "Kenya", Admin1Name: "Kilifi", Location: "Kilifi", Taxon: "gambiae", Year: 2012, Longitude: 39.9, Latitude: -3.5},
			{SampleID: "s4", SampleSet: "AG1000G-KE", Country: "Kenya", Admin1Name: "Kilifi", Location: "Kilifi", Taxon: "gambiae", Year: 0, Longitude: 39.9, Latitude: -3.5},
		},
	)

	m, err := metrics.New()
	require.NoError(t, err)
	cat := catalog.New(acc, m.ObserveLoad)
	sessions := session.NewStore(cat, time.Hour)

	cacheManager, err := cache.NewManager(cache.Config{MapCacheSizeMB: 8, MapTTL: time.Minute, QueryCacheSize: 16})
	require.NoError(t, err)
	t.Cleanup(func() { cacheManager.Close() })

	renderer, err := render.NewMapRenderer(render.Config{Width: 200, Height: 100})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Title:         "Ag3",
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
		Sessions:      sessions,
		Dashboard: service.NewDashboardService(service.DashboardServiceConfig{
			Catalog:  cat,
			Cache:    cacheManager,
			Renderer: renderer,
		}),
		Cache:   cacheManager,
		Metrics: m,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, accessor: acc, sessions: sessions}
}

// client returns a browser-like client with its own cookie jar.
func (ts *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

type sessionBody struct {
	ID                string                 `json:"id"`
	SampleSets        []session.SampleSetRow `json:"sample_sets"`
	SelectedSets      []string               `json:"selected_sets"`
	ResetEpoch        int                    `json:"reset_epoch"`
	SampleSetsSnippet string                 `json:"sample_sets_snippet"`
	Query             string                 `json:"query"`
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	resp := do(t, ts.client(t), http.MethodGet, ts.server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", readBody(t, resp))
}

func TestSessionCookieKeepsState(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	var first, second sessionBody
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil), &first)
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil), &second)

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, first.SampleSets, 2)
	assert.Empty(t, first.SelectedSets)
	assert.Equal(t, 1, ts.sessions.Count())
	assert.Equal(t, int64(1), ts.accessor.SampleSetCalls())
}

func TestSessionCookieRefreshedOnEveryRequest(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	first := do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	second := do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil)
	require.Equal(t, http.StatusOK, second.StatusCode)

	var refreshed *http.Cookie
	for _, ck := range second.Cookies() {
		if ck.Name == cookieName {
			refreshed = ck
		}
	}
	require.NotNil(t, refreshed, "second response must re-send the session cookie")
	assert.Equal(t, 3600, refreshed.MaxAge)
	assert.Equal(t, 1, ts.sessions.Count())
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := setupTestServer(t)
	alice, bob := ts.client(t), ts.client(t)

	var st sessionBody
	decode(t, do(t, alice, http.MethodPut, ts.server.URL+"/api/session/selection",
		map[string]interface{}{"sample_sets": []string{"AG1000G-KE"}}), &st)
	assert.Equal(t, []string{"AG1000G-KE"}, st.SelectedSets)

	decode(t, do(t, bob, http.MethodGet, ts.server.URL+"/api/session", nil), &st)
	assert.Empty(t, st.SelectedSets)
	assert.Equal(t, int64(1), ts.accessor.SampleSetCalls(), "catalog is shared")
}

func TestSelectionAndSummary(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	var st sessionBody
	decode(t, do(t, c, http.MethodPut, ts.server.URL+"/api/session/selection",
		map[string]interface{}{"rows": []map[string]interface{}{{"sample_set": "AG1000G-KE", "selected": true}}}), &st)
	assert.Equal(t, []string{"AG1000G-KE"}, st.SelectedSets)
	assert.Contains(t, st.SampleSetsSnippet, "    'AG1000G-KE',\n")

	var sum service.Summary
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/summary", nil), &sum)
	assert.Equal(t, 2, sum.Total)
	require.Len(t, sum.Locations, 1)
	assert.Equal(t, "Kilifi", sum.Locations[0].Info)

	var locs []service.Location
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/locations?scope=all", nil), &locs)
	assert.Len(t, locs, 2)

	resp := do(t, c, http.MethodGet, ts.server.URL+"/api/locations?scope=planet", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetAndStaleEpoch(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	var st sessionBody
	decode(t, do(t, c, http.MethodPut, ts.server.URL+"/api/session/selection",
		map[string]interface{}{"sample_sets": []string{"AG1000G-AO", "AG1000G-KE"}, "epoch": 0}), &st)
	require.Len(t, st.SelectedSets, 2)

	decode(t, do(t, c, http.MethodPost, ts.server.URL+"/api/session/reset", nil), &st)
	assert.Empty(t, st.SelectedSets)
	assert.Equal(t, 1, st.ResetEpoch)
	for _, r := range st.SampleSets {
		assert.False(t, r.Selected)
	}

	resp := do(t, c, http.MethodPut, ts.server.URL+"/api/session/selection",
		map[string]interface{}{"sample_sets": []string{"AG1000G-AO"}, "epoch": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil), &st)
	assert.Empty(t, st.SelectedSets)
}

func TestFilters(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	var st sessionBody
	decode(t, do(t, c, http.MethodPut, ts.server.URL+"/api/session/filters/countries",
		map[string]interface{}{"values": []string{"Kenya"}}), &st)
	decode(t, do(t, c, http.MethodPut, ts.server.URL+"/api/session/filters/years",
		map[string]interface{}{"values": []interface{}{2012, "2010"}}), &st)
	assert.Equal(t, "country in ['Kenya'] and year in [2010, 2012]", st.Query)

	var res service.QueryResult
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/query", nil), &res)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 4, res.Total)
	assert.Contains(t, res.Snippet, "sample_query = (\n")

	resp := do(t, c, http.MethodPut, ts.server.URL+"/api/session/filters/regions",
		map[string]interface{}{"values": []string{"x"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, c, http.MethodPut, ts.server.URL+"/api/session/filters/years",
		map[string]interface{}{"values": []string{"soon"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	decode(t, do(t, c, http.MethodDelete, ts.server.URL+"/api/session/filters", nil), &st)
	assert.Equal(t, "", st.Query)
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/query", nil), &res)
	assert.Equal(t, 4, res.Count)
}

func TestOptions(t *testing.T) {
	ts := setupTestServer(t)
	var opts catalog.Options
	decode(t, do(t, ts.client(t), http.MethodGet, ts.server.URL+"/api/options", nil), &opts)
	assert.Equal(t, []string{"Angola", "Kenya"}, opts.Countries)
	assert.Equal(t, []string{"coluzzii", "gambiae"}, opts.Taxa)
	assert.Equal(t, []int{2009, 2012}, opts.Years)
}

func TestMapAndExport(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	resp := do(t, c, http.MethodGet, ts.server.URL+"/api/map.png?scope=all", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	do(t, c, http.MethodPut, ts.server.URL+"/api/session/filters/taxa",
		map[string]interface{}{"values": []string{"gambiae"}})
	resp = do(t, c, http.MethodGet, ts.server.URL+"/api/samples/export.xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("samples")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExportFailureIsReported(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	orig := writeWorkbook
	writeWorkbook = func(w io.Writer, recs []vobs.SampleRecord) error {
		w.Write([]byte("PK partial"))
		return errors.New("disk full")
	}
	t.Cleanup(func() { writeWorkbook = orig })

	resp := do(t, c, http.MethodGet, ts.server.URL+"/api/samples/export.xlsx", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
	body := readBody(t, resp)
	assert.Contains(t, body, "disk full")
	assert.NotContains(t, body, "PK partial")
}

func TestPages(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	home := readBody(t, do(t, c, http.MethodGet, ts.server.URL+"/", nil))
	assert.Contains(t, home, "Vector Observatory")
	assert.Contains(t, home, "static tables (2 sample sets, 4 samples)")

	page := readBody(t, do(t, c, http.MethodGet, ts.server.URL+"/sample-sets", nil))
	assert.Contains(t, page, "Select one or more sample sets to view further information.")
	assert.Contains(t, page, `name="epoch" value="0"`)

	resp, err := c.PostForm(ts.server.URL+"/sample-sets/edit", url.Values{
		"epoch":    {"0"},
		"selected": {"AG1000G-KE"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	page = readBody(t, resp)
	assert.Contains(t, page, "sample_sets = [")
	assert.Contains(t, page, "Here is a map of sampling locations:")

	qb := readBody(t, do(t, c, http.MethodGet, ts.server.URL+"/query-builder", nil))
	assert.Contains(t, qb, "Please select options below to begin building a query...")
	assert.Contains(t, qb, "No. samples: 4")
	assert.Contains(t, qb, "Taxa (species):")

	resp, err = c.PostForm(ts.server.URL+"/query-builder/filters", url.Values{"countries": {"Angola"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	qb = readBody(t, resp)
	assert.Contains(t, qb, "No. samples: 2")
	assert.Contains(t, qb, `<option value="Angola" selected>`)

	locsPage := readBody(t, do(t, c, http.MethodGet, ts.server.URL+"/sampling-locations", nil))
	assert.Contains(t, locsPage, "Ag3 - Map of sampling locations")
	assert.Equal(t, 2, strings.Count(locsPage, "<tr><td>"))
}

func TestStaleFormIsDiscarded(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)

	resp, err := c.PostForm(ts.server.URL+"/sample-sets/reset", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = c.PostForm(ts.server.URL+"/sample-sets/edit", url.Values{
		"epoch":    {"0"},
		"selected": {"AG1000G-AO"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st sessionBody
	decode(t, do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil), &st)
	assert.Empty(t, st.SelectedSets)
	assert.Equal(t, 1, st.ResetEpoch)
}

func TestAccessorErrorAbortsRequest(t *testing.T) {
	ts := setupTestServer(t)
	ts.accessor.SetErr(errors.New("upstream unavailable"))

	resp := do(t, ts.client(t), http.MethodGet, ts.server.URL+"/sample-sets", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "upstream unavailable")

	ts.accessor.SetErr(nil)
	resp = do(t, ts.client(t), http.MethodGet, ts.server.URL+"/sample-sets", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	c := ts.client(t)
	do(t, c, http.MethodGet, ts.server.URL+"/api/session", nil)

	body := readBody(t, do(t, c, http.MethodGet, ts.server.URL+"/metrics", nil))
	assert.Contains(t, body, `ag3dash_accessor_load_duration_seconds_count{status="success",table="sample_sets"} 1`)
	assert.Contains(t, body, `route="/api/session"`)
}
