package sources

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testOptions(srv *httptest.Server) Options {
	return Options{
		HTTPClient: srv.Client(),
		Attempts:   1,
		Now:        func() time.Time { return fixedNow },
	}
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func titlesOf(postings []jobs.Posting) []string {
	out := make([]string, 0, len(postings))
	for _, p := range postings {
		out = append(out, p.Title)
	}
	return out
}

const remoteOKBody = `[
	{"legal": "notice"},
	{"id": 1, "slug": "ml-engineer-acme", "position": "ML Engineer", "company": "Acme", "location": "Worldwide",
	 "date": "2026-10-01T10:00:00+00:00", "tags": ["Python", "pytorch"], "salary_min": 120000, "salary_max": 150000},
	{"id": 2, "position": "Accountant", "company": "Beta", "description": "Ledgers"},
	{"id": 3, "position": "ML  Engineer", "company": "acme"}
]`

func TestRemoteOKFetch(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, remoteOKBody)
	r := NewRemoteOK(testOptions(srv))
	r.APIURL = srv.URL

	got := r.Fetch(context.Background(), 10)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "ML Engineer", p.Title)
	assert.Equal(t, "Acme", p.Company)
	assert.Equal(t, "RemoteOK", p.Source)
	assert.Equal(t, "https://remoteok.com/remote-jobs/ml-engineer-acme", p.Link)
	assert.Equal(t, "2026-10-01", p.Date)
	assert.Equal(t, jobs.ModeRemote, p.JobType)
	assert.Equal(t, []string{"python", "pytorch"}, p.Skills)
	assert.NotEmpty(t, p.Salary)
}

func TestFetchStopsAtLimit(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, `[{"legal": "notice"},
		{"id": 1, "position": "ML Engineer", "company": "A"},
		{"id": 2, "position": "ML Engineer", "company": "B"},
		{"id": 3, "position": "ML Engineer", "company": "C"}]`)
	r := NewRemoteOK(testOptions(srv))
	r.APIURL = srv.URL

	assert.Len(t, r.Fetch(context.Background(), 2), 2)
}

func TestFetchDropsExcludedCompanies(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, remoteOKBody)
	opts := testOptions(srv)
	opts.ExcludedCompanies = []string{"acme"}
	r := NewRemoteOK(opts)
	r.APIURL = srv.URL

	assert.Empty(t, r.Fetch(context.Background(), 10))
}

func TestFetchDegradesToEmptyOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	core, logs := observer.New(zap.WarnLevel)
	opts := testOptions(srv)
	opts.Logger = zap.New(core)
	r := NewRemoteOK(opts)
	r.APIURL = srv.URL

	assert.Empty(t, r.Fetch(context.Background(), 10))
	assert.Equal(t, 1, logs.FilterMessage("fetching feed failed").Len())
}

func TestFetchDegradesOnMalformedBody(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, `{"not": "a list"`)
	r := NewRemoteOK(testOptions(srv))
	r.APIURL = srv.URL

	assert.Empty(t, r.Fetch(context.Background(), 10))
}

func TestGetDecodesGzip(t *testing.T) {
	t.Parallel()

	var gotEncoding, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Accept-Encoding")
		gotAgent = r.Header.Get("User-Agent")

		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("hello"))
		_ = zw.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	b := newBase("test", testOptions(srv), false)
	resp, err := b.get(context.Background(), srv.URL, nil, acceptHTML)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp.body))
	assert.Equal(t, "gzip", gotEncoding)
	assert.Contains(t, userAgents, gotAgent)
}

func TestGetForbiddenIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	opts := testOptions(srv)
	opts.Attempts = 3
	b := newBase("test", opts, false)

	_, err := b.get(context.Background(), srv.URL, nil, acceptHTML)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errForbidden))
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, r.URL.Query().Get("q"))
	}))
	t.Cleanup(srv.Close)

	opts := testOptions(srv)
	opts.Attempts = 2
	b := newBase("test", opts, false)
	b.retry.BaseDelay = time.Millisecond
	b.retry.MaxDelay = time.Millisecond

	resp, err := b.get(context.Background(), srv.URL, map[string][]string{"q": {"ml ops"}}, acceptHTML)
	require.NoError(t, err)
	assert.Equal(t, "ml ops", string(resp.body))
	assert.Equal(t, int32(2), hits.Load())
}

func TestHackerNewsFetch(t *testing.T) {
	t.Parallel()

	items := map[string]string{
		"/user/whoishiring.json": `{"submitted": [1, 2]}`,
		"/item/1.json":           `{"id": 1, "title": "Ask HN: Who wants to be hired? (October 2026)"}`,
		"/item/2.json":           `{"id": 2, "title": "Ask HN: Who is hiring? (October 2026)", "kids": [10, 11, 12]}`,
		"/item/10.json":          `{"id": 10, "text": "Acme AI | Senior ML Engineer | Remote (US) | $150k - $200k<p>We build LLM tooling.</p>"}`,
		"/item/11.json":          `{"id": 11, "deleted": true}`,
		"/item/12.json":          `{"id": 12, "text": "Beta | Accountant | NYC | Onsite"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := items[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	h := NewHackerNews(testOptions(srv))
	h.APIBase = srv.URL

	got := h.Fetch(context.Background(), 10)
	require.Len(t, got, 1)
	assert.Equal(t, "Senior ML Engineer", got[0].Title)
	assert.Equal(t, "https://news.ycombinator.com/item?id=10", got[0].Link)
	assert.Equal(t, "HackerNews", got[0].Source)
}

func TestParseHNComment(t *testing.T) {
	t.Parallel()

	p := ParseHNComment("Acme AI | Senior ML Engineer | Remote (US) | $150k - $200k<p>We build LLM tooling.</p>", 42)

	assert.Equal(t, "Acme AI", p.Company)
	assert.Equal(t, "Senior ML Engineer", p.Title)
	assert.Equal(t, "Remote (US)", p.Location)
	assert.Equal(t, "$150k - $200k", p.Salary)
	assert.Equal(t, jobs.ModeRemote, p.JobType)
	assert.Equal(t, "https://news.ycombinator.com/item?id=42", p.Link)
	assert.Contains(t, p.Description, "We build LLM tooling.")
}

func TestParseHNCommentWithoutPipes(t *testing.T) {
	t.Parallel()

	p := ParseHNComment("https://acme.example is hiring ML people, onsite in Berlin", 7)

	assert.Equal(t, "https://acme.example", p.Company)
	assert.Equal(t, "Unknown Position", p.Title)
	assert.Equal(t, jobs.Unknown, p.Location)
	assert.Equal(t, jobs.ModeOnsite, p.JobType)
}

const companyList = `# Hiring Without Whiteboards

| Name | Location |
- [DeepMind](https://deepmind.com/careers) | London, UK | Technical interview
- [Acme Corp](https://acme.example) | Remote
- [DataRobot](https://datarobot.com/careers) | Boston, MA
Some prose without a table.
`

func TestParseCompanyList(t *testing.T) {
	t.Parallel()

	got := ParseCompanyList(companyList)
	require.Len(t, got, 2)

	assert.Equal(t, "DeepMind", got[0].Company)
	assert.Equal(t, "London, UK", got[0].Location)
	assert.Equal(t, "https://deepmind.com/careers", got[0].Link)
	assert.Equal(t, "ML/AI Engineer", got[0].Title)
	assert.Equal(t, "DataRobot", got[1].Company)
}

func TestGitHubFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(companyList))
	}))
	t.Cleanup(srv.Close)

	g := NewGitHub(testOptions(srv))
	g.ListURLs = []string{srv.URL}

	got := g.Fetch(context.Background(), 1)
	require.Len(t, got, 1)
	assert.Equal(t, "DeepMind", got[0].Company)
	assert.Equal(t, "GitHub", got[0].Source)
}

func TestSplitFeedTitle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw, title, company string
	}{
		{"Acme: Senior ML Engineer", "Senior ML Engineer", "Acme"},
		{"ML Engineer at Acme at Scale", "ML Engineer at Acme", "Scale"},
		{"Data Scientist", "Data Scientist", jobs.Unknown},
	}
	for _, tc := range cases {
		title, company := splitFeedTitle(tc.raw)
		assert.Equal(t, tc.title, title, tc.raw)
		assert.Equal(t, tc.company, company, tc.raw)
	}
}

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<item><title>Acme: Machine Learning Engineer</title><link>https://jobs.example/1</link>
<description>&lt;p&gt;Train models&lt;/p&gt;</description><pubDate>Mon, 05 Oct 2026 10:00:00 +0000</pubDate></item>
<item><title>Beta: Accountant</title><link>https://jobs.example/2</link><description>Ledgers</description></item>
<item><title></title><link>https://jobs.example/3</link></item>
</channel></rss>`

func TestStackOverflowFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(srv.Close)

	s := NewStackOverflow(testOptions(srv))
	s.FeedURLs = []string{srv.URL}

	got := s.Fetch(context.Background(), 10)
	require.Len(t, got, 1)
	assert.Equal(t, "Machine Learning Engineer", got[0].Title)
	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, "2026-10-05", got[0].Date)
	assert.Equal(t, "Train models", got[0].Description)
	assert.Equal(t, jobs.ModeRemote, got[0].JobType)
}

func TestParseLinkedInCards(t *testing.T) {
	t.Parallel()

	page := `<html><body><ul>
<li><div class="base-card job-search-card">
  <a class="base-card__full-link" href="/jobs/view/123"></a>
  <h3 class="base-search-card__title">ML Engineer</h3>
  <h4 class="base-search-card__subtitle"><a href="/company/acme">Acme</a></h4>
  <span class="job-search-card__location">Berlin (Hybrid)</span>
</div></li>
<li><div class="base-card"><span>no title</span></div></li>
</ul></body></html>`

	got, err := ParseLinkedInCards([]byte(page), "https://www.linkedin.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ML Engineer", got[0].Title)
	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, "Berlin (Hybrid)", got[0].Location)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/123", got[0].Link)
	assert.Equal(t, jobs.ModeHybrid, got[0].JobType)
}

const indeedPage = `<html><body>
<div class="cardOutline tapItem">
  <h2 class="jobTitle"><a href="/rc/clk?jk=abc">Machine Learning Engineer</a></h2>
  <span class="companyName">Acme</span>
  <div class="companyLocation">Remote</div>
</div>
<div class="cardOutline tapItem">
  <h2 class="jobTitle"><a href="/rc/clk?jk=def">Accountant</a></h2>
  <span class="companyName">Beta</span>
</div>
</body></html>`

func TestParseIndeedCards(t *testing.T) {
	t.Parallel()

	got, err := ParseIndeedCards([]byte(indeedPage), "https://www.indeed.com")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Machine Learning Engineer", got[0].Title)
	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, "Remote", got[0].Location)
	assert.Equal(t, "https://www.indeed.com/rc/clk?jk=abc", got[0].Link)
}

func TestIndeedFallsBackToSearchPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/jobs" {
			_, _ = w.Write([]byte(indeedPage))
			return
		}
		_, _ = w.Write([]byte("<html>captcha</html>"))
	}))
	t.Cleanup(srv.Close)

	in := NewIndeed(testOptions(srv))
	in.BaseURL = srv.URL

	got := in.Fetch(context.Background(), 10)
	assert.Equal(t, []string{"Machine Learning Engineer"}, titlesOf(got))
}

func TestIndeedStopsWhenBlocked(t *testing.T) {
	t.Parallel()

	var searches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jobs" {
			searches.Add(1)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	in := NewIndeed(testOptions(srv))
	in.BaseURL = srv.URL

	assert.Empty(t, in.Fetch(context.Background(), 10))
	assert.Equal(t, int32(1), searches.Load())
}

func TestParseBuiltInCards(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<article><h2>AI Engineer</h2><div class="company-title">Acme</div>
  <a href="/job/ai-engineer/1">Apply</a><p>Build LLM agents</p></article>
<article><h2>AI</h2></article>
</body></html>`

	got, err := ParseBuiltInCards([]byte(page), "https://builtin.com/jobs/remote")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AI Engineer", got[0].Title)
	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, jobs.DefaultLocation, got[0].Location)
	assert.Equal(t, "https://builtin.com/job/ai-engineer/1", got[0].Link)
	assert.Equal(t, "Build LLM agents", got[0].Description)
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", HTMLToText("  "))
	assert.Equal(t, "a & b", HTMLToText("a   &amp; b"))

	got := HTMLToText("<div><p>Train <b>models</b></p><script>x()</script></div>")
	assert.Contains(t, got, "Train")
	assert.Contains(t, got, "models")
	assert.NotContains(t, got, "<p>")
}

func TestBuild(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	adapters := Build([]string{"remoteok", "nope", "github", "remoteok"}, Options{Logger: zap.New(core)})

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"RemoteOK", "GitHub"}, names)
	assert.Equal(t, 1, logs.FilterMessage("unknown source, skipping").Len())
}

func TestBuildKnowsEverySource(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	assert.Len(t, Build(names, Options{}), len(constructors))
}
