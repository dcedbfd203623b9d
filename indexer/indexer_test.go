package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/render"
)

// ── Fakes ───────────────────────────────────────────────────────────

type fakeIndex struct {
	mu        sync.Mutex
	saved     []Object
	existing  map[string]Object
	browseErr error
	batches   [][]Operation
}

func (f *fakeIndex) Save(_ context.Context, objects []Object) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, objects...)
	return len(objects), nil
}

func (f *fakeIndex) Browse(_ context.Context, _ string) (map[string]Object, error) {
	return f.existing, f.browseErr
}

func (f *fakeIndex) Batch(_ context.Context, ops []Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, ops)
	return nil
}

// fakeRenderer serves fixed HTML per URL.
type fakeRenderer map[string]string

func (fakeRenderer) Name() string { return "fake" }

func (f fakeRenderer) Render(_ context.Context, req *render.Request) (*render.Result, error) {
	html, ok := f[req.URL]
	if !ok {
		return nil, fmt.Errorf("no page at %s", req.URL)
	}
	return &render.Result{HTML: html, StatusCode: http.StatusOK, FinalURL: req.URL, EngineName: "fake"}, nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Indexer.Retries = 0
	cfg.Indexer.RetryMinDelay = time.Millisecond
	cfg.Indexer.RatePerSec = 0
	return cfg
}

// ── API endpoints ───────────────────────────────────────────────────

const adminAPIPage = `<html><head><meta name="latest-redpanda-version" content="25.2.1"></head><body>
<turbo-frame id="operation-get-brokers">
  <h2 class="operation-title"><a href="#operation-get-brokers">List brokers</a></h2>
  <span class="operation-verb">GET</span>
  <span class="operation-path">/v1/brokers</span>
  <div class="markdown-content"><p>Returns all brokers.</p><p>More.</p></div>
</turbo-frame>
<turbo-frame id="operation-broken">
  <h2 class="operation-title">Broken</h2>
</turbo-frame>
<turbo-frame id="sidebar"><span class="operation-verb">POST</span><span class="operation-path">/x</span></turbo-frame>
</body></html>`

func TestExtractEndpoints(t *testing.T) {
	records, err := ExtractEndpoints(adminAPIPage, "https://docs.example.com/api/doc/admin/")
	if err != nil {
		t.Fatalf("ExtractEndpoints: %v", err)
	}
	want := []EndpointRecord{{
		ObjectID:    "/api/doc/admin/#operation-get-brokers",
		Product:     "Self-Managed",
		Version:     "25.2.1",
		Type:        "Endpoint",
		Method:      "GET",
		Path:        "/v1/brokers",
		Title:       "List brokers",
		Description: "Returns all brokers.",
		URL:         "https://docs.example.com#operation-get-brokers",
		Tags:        []string{"Self-Managed v25.2.1"},
	}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("ExtractEndpoints() = %+v\nwant %+v", records, want)
	}
}

func TestExtractEndpointsWithoutVersion(t *testing.T) {
	page := strings.Replace(adminAPIPage, `<meta name="latest-redpanda-version" content="25.2.1">`, "", 1)
	records, err := ExtractEndpoints(page, "https://docs.example.com/api/doc/admin/")
	if err != nil {
		t.Fatalf("ExtractEndpoints: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Version != "" || records[0].Tags[0] != "Self-Managed" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestIndexAPI(t *testing.T) {
	cfg := testConfig()
	cfg.Indexer.DocsBaseURL = "https://docs.example.com/"
	renderer := fakeRenderer{
		"https://docs.example.com/api/doc/admin/": adminAPIPage,
	}
	idx := &fakeIndex{}
	r := NewRunner(cfg, renderer, http.DefaultClient, idx, nil)

	n, err := r.IndexAPI(context.Background())
	if err != nil {
		t.Fatalf("IndexAPI: %v", err)
	}
	if n != 1 || len(idx.saved) != 1 {
		t.Fatalf("saved %d (%d objects), want 1", n, len(idx.saved))
	}
	if got := idx.saved[0].ID(); got != "/api/doc/admin/#operation-get-brokers" {
		t.Errorf("objectID = %q", got)
	}
}

// ── Blogs ───────────────────────────────────────────────────────────

func blogPage(title string) string {
	return `<html><body>
<div class="styles_BlogPostTemplate__headerCategory__x1">Engineering</div>
<h1 class="styles_BlogPostTemplate__headerTitle__x2">` + title + `</h1>
<p class="styles_BlogPostTemplate__headerDescription__x3">How it works.</p>
<div class="styles_BlogPostTemplate__headerAuthorsAndDate__x4"><span class="styles_BlogPostTemplate__headerAuthor__x5">Ada</span><span>May 1, 2025</span></div>
<div class="styles_BlogPostTemplate__headerImageWrapper__x6"><img src="/images/cover.png"></div>
<h2 id="intro">Intro</h2><p>text</p><h3 id="details">Details</h3>
</body></html>`
}

func TestExtractBlog(t *testing.T) {
	rec, ok, err := ExtractBlog(blogPage("Tiered storage"), "https://www.example.com/blog/tiered?ref=x", "https://redpanda.com/")
	if err != nil || !ok {
		t.Fatalf("ExtractBlog = (%v, %v, %v)", rec, ok, err)
	}
	want := &BlogRecord{
		ObjectID: "https://redpanda.com/blog/tiered",
		Title:    "Tiered storage",
		Titles:   []Heading{{T: "Intro", H: "intro"}, {T: "Details", H: "details"}},
		Intro:    "How it works.",
		Category: "Engineering",
		Image:    "https://www.example.com/images/cover.png",
		Date:     "May 1, 2025",
		Author:   "Ada",
		Type:     "Blog",
		Tags:     []string{"blogs"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("ExtractBlog() = %+v\nwant %+v", rec, want)
	}
}

func TestExtractBlogWithoutTitle(t *testing.T) {
	rec, ok, err := ExtractBlog(`<html><body><h2>Other page</h2></body></html>`, "https://redpanda.com/blog/x", "https://redpanda.com")
	if err != nil {
		t.Fatalf("ExtractBlog: %v", err)
	}
	if ok || rec != nil {
		t.Errorf("ExtractBlog() = (%+v, %v), want skip", rec, ok)
	}
}

func TestIsBlogURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://redpanda.com/blog/tiered", true},
		{"https://redpanda.com/blog/", true},
		{"https://redpanda.com/about", false},
		{"https://redpanda.com/blogs", false},
	}
	for _, tt := range tests {
		if got := IsBlogURL(tt.url); got != tt.want {
			t.Errorf("IsBlogURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestDiff(t *testing.T) {
	existing := map[string]Object{
		"a": {"objectID": "a", "title": "A"},
		"b": {"objectID": "b", "title": "B"},
	}
	records := []Object{
		{"objectID": "a", "title": "A"},
		{"objectID": "b", "title": "B, revised"},
		{"objectID": "c", "title": "C"},
	}

	ops, unchanged := Diff(records, existing)
	if unchanged != 1 {
		t.Errorf("unchanged = %d, want 1", unchanged)
	}
	want := []Operation{
		{Action: ActionUpdate, Object: records[1]},
		{Action: ActionAdd, Object: records[2]},
	}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("Diff() ops = %+v, want %+v", ops, want)
	}

	ops, unchanged = Diff(records, nil)
	if len(ops) != 3 || unchanged != 0 {
		t.Errorf("Diff against empty index = (%d ops, %d unchanged)", len(ops), unchanged)
	}
}

func TestIndexBlogs(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex><sitemap><loc>%s/posts.xml</loc></sitemap></sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/posts.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><urlset>
<url><loc>%[1]s/blog/new</loc></url>
<url><loc>%[1]s/blog/changed</loc></url>
<url><loc>%[1]s/blog/same</loc></url>
<url><loc>%[1]s/blog/untitled</loc></url>
<url><loc>%[1]s/about</loc></url>
</urlset>`, srv.URL)
	})

	cfg := testConfig()
	cfg.Indexer.SitemapURL = srv.URL + "/sitemap.xml"
	cfg.Indexer.BlogBaseURL = "https://redpanda.com"

	renderer := fakeRenderer{
		srv.URL + "/blog/new":      blogPage("New post"),
		srv.URL + "/blog/changed":  blogPage("Changed post"),
		srv.URL + "/blog/same":     blogPage("Same post"),
		srv.URL + "/blog/untitled": `<html><body><p>draft</p></body></html>`,
	}

	same, _, err := ExtractBlog(blogPage("Same post"), srv.URL+"/blog/same", cfg.Indexer.BlogBaseURL)
	if err != nil {
		t.Fatalf("ExtractBlog: %v", err)
	}
	sameObj, err := toObject(same)
	if err != nil {
		t.Fatalf("toObject: %v", err)
	}
	idx := &fakeIndex{existing: map[string]Object{
		"https://redpanda.com/blog/changed": {"objectID": "https://redpanda.com/blog/changed", "title": "Old title"},
		"https://redpanda.com/blog/same":    sameObj,
	}}

	r := NewRunner(cfg, renderer, srv.Client(), idx, nil)
	summary, err := r.IndexBlogs(context.Background())
	if err != nil {
		t.Fatalf("IndexBlogs: %v", err)
	}

	want := BlogSummary{Pages: 4, Added: 1, Updated: 1, Unchanged: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if len(idx.batches) != 1 || len(idx.batches[0]) != 2 {
		t.Fatalf("batches = %+v, want one batch of 2", idx.batches)
	}
	if op := idx.batches[0][0]; op.Action != ActionAdd || op.Object.ID() != "https://redpanda.com/blog/new" {
		t.Errorf("first op = %s %s", op.Action, op.Object.ID())
	}
}

func TestIndexBlogsNothingChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://redpanda.com/about</loc></url></urlset>`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Indexer.SitemapURL = srv.URL
	idx := &fakeIndex{browseErr: errors.New("index unavailable")}

	summary, err := NewRunner(cfg, fakeRenderer{}, srv.Client(), idx, nil).IndexBlogs(context.Background())
	if err != nil {
		t.Fatalf("IndexBlogs: %v", err)
	}
	if summary != (BlogSummary{}) {
		t.Errorf("summary = %+v, want zero", summary)
	}
	if len(idx.batches) != 0 {
		t.Errorf("batch sent with no changes: %+v", idx.batches)
	}
}

// ── Sitemap ─────────────────────────────────────────────────────────

func TestFetchSitemap(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<sitemapindex>
<sitemap><loc>%[1]s/a.xml</loc></sitemap>
<sitemap><loc>%[1]s/missing.xml</loc></sitemap>
<sitemap><loc></loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/a.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://redpanda.com/blog/a</loc></url><url><loc></loc></url><url><loc>https://redpanda.com/b</loc></url></urlset>`)
	})

	urls, err := FetchSitemap(context.Background(), srv.Client(), srv.URL+"/index.xml")
	if err != nil {
		t.Fatalf("FetchSitemap: %v", err)
	}
	want := []string{"https://redpanda.com/blog/a", "https://redpanda.com/b"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("FetchSitemap() = %v, want %v", urls, want)
	}

	if _, err := FetchSitemap(context.Background(), srv.Client(), srv.URL+"/missing.xml"); err == nil {
		t.Error("FetchSitemap on a missing root returned no error")
	}
}

func TestFetchSitemapDepthLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/loop.xml</loc></sitemap></sitemapindex>`, srv.URL)
	}))
	defer srv.Close()

	urls, err := FetchSitemap(context.Background(), srv.Client(), srv.URL+"/loop.xml")
	if err != nil {
		t.Fatalf("FetchSitemap: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("urls = %v, want none", urls)
	}
}

// ── Videos ──────────────────────────────────────────────────────────

func TestFetchVideos(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/search" || q.Get("key") != "yt-key" || q.Get("channelId") != "chan" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		pages = append(pages, q.Get("pageToken"))
		switch q.Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"nextPageToken":"p2","items":[
{"id":{"kind":"youtube#video","videoId":"v1"},"snippet":{"title":"Intro","description":"Getting started","publishedAt":"2025-01-02T00:00:00Z","thumbnails":{"high":{"url":"https://i.ytimg.com/v1.jpg"}}}},
{"id":{"kind":"youtube#playlist","playlistId":"pl"},"snippet":{"title":"Playlist"}}]}`)
		case "p2":
			fmt.Fprint(w, `{"items":[{"id":{"videoId":"v2"},"snippet":{"title":"Deep dive","description":"","publishedAt":"2024-12-01T00:00:00Z"}}]}`)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.YouTube.APIKey = "yt-key"
	cfg.YouTube.ChannelID = "chan"
	cfg.YouTube.APIBase = srv.URL + "/"

	videos, err := NewRunner(cfg, nil, srv.Client(), nil, nil).FetchVideos(context.Background())
	if err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}
	if !reflect.DeepEqual(pages, []string{"", "p2"}) {
		t.Errorf("requested pages %q", pages)
	}
	want := []VideoRecord{
		{
			ObjectID:    "https://www.youtube.com/watch?v=v1",
			Title:       "Intro",
			Intro:       "Getting started",
			PublishedAt: "2025-01-02T00:00:00Z",
			Image:       "https://i.ytimg.com/v1.jpg",
			Type:        "Video",
			Tags:        []string{"videos"},
		},
		{
			ObjectID:    "https://www.youtube.com/watch?v=v2",
			Title:       "Deep dive",
			PublishedAt: "2024-12-01T00:00:00Z",
			Type:        "Video",
			Tags:        []string{"videos"},
		},
	}
	if !reflect.DeepEqual(videos, want) {
		t.Errorf("FetchVideos() = %+v\nwant %+v", videos, want)
	}
}

func TestFetchVideosRequiresKey(t *testing.T) {
	if _, err := NewRunner(testConfig(), nil, http.DefaultClient, nil, nil).FetchVideos(context.Background()); err == nil {
		t.Error("FetchVideos without an API key returned no error")
	}
}

// ── Labs ────────────────────────────────────────────────────────────

func newGraphQLStub(t *testing.T, failInvites bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer lab-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(req.Query, "createTrackInvite") {
			if failInvites {
				fmt.Fprint(w, `{"data":null,"errors":[{"message":"not allowed"}]}`)
				return
			}
			if !strings.Contains(req.Query, `"New invites from docs"`) {
				http.Error(w, "missing invite title", http.StatusBadRequest)
				return
			}
			fmt.Fprintf(w, `{"data":{"createTrackInvite":{"id":"inv-%s","title":"New invites from docs"}}}`, req.Variables["trackId"])
			return
		}
		if !strings.Contains(req.Query, `organizationSlug: "redpanda"`) {
			http.Error(w, "wrong organization", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"data":{"tracks":[{
"id":"t1","slug":"getting-started","title":"Getting started","icon":"https://cdn/icon.png","teaser":"Run Redpanda",
"challenges":[{"title":"Start a cluster","permalink":"x","type":"challenge"}],
"trackTags":[{"value":"beginner"}]}]}}`)
	}))
}

func TestIndexLabs(t *testing.T) {
	srv := newGraphQLStub(t, false)
	defer srv.Close()

	cfg := testConfig()
	cfg.Instruqt.APIKey = "lab-key"
	cfg.Instruqt.Endpoint = srv.URL

	var out bytes.Buffer
	idx := &fakeIndex{}
	r := NewRunner(cfg, nil, srv.Client(), idx, nil)
	r.SetOutput(&out)

	n, err := r.IndexLabs(context.Background(), false)
	if err != nil {
		t.Fatalf("IndexLabs: %v", err)
	}
	if n != 1 || len(idx.saved) != 0 {
		t.Errorf("IndexLabs without upload = %d, saved %d", n, len(idx.saved))
	}

	var printed []LabRecord
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("printed output is not JSON: %v\n%s", err, out.String())
	}
	want := []LabRecord{{
		ObjectID:    "https://play.instruqt.com/redpanda/invite/inv-t1",
		Title:       "Getting started",
		ID:          "t1",
		Image:       "https://cdn/icon.png",
		Description: "Run Redpanda",
		Slug:        "getting-started",
		Challenges:  []Challenge{{Title: "Start a cluster", Type: "challenge"}},
		TrackTags:   []TrackTag{{Value: "beginner"}},
	}}
	if !reflect.DeepEqual(printed, want) {
		t.Errorf("printed = %+v\nwant %+v", printed, want)
	}

	if _, err := r.IndexLabs(context.Background(), true); err != nil {
		t.Fatalf("IndexLabs with upload: %v", err)
	}
	if len(idx.saved) != 1 || idx.saved[0].ID() != want[0].ObjectID {
		t.Errorf("saved = %+v", idx.saved)
	}
}

func TestIndexLabsInviteErrors(t *testing.T) {
	srv := newGraphQLStub(t, true)
	defer srv.Close()

	cfg := testConfig()
	cfg.Instruqt.APIKey = "lab-key"
	cfg.Instruqt.Endpoint = srv.URL

	var out bytes.Buffer
	r := NewRunner(cfg, nil, srv.Client(), &fakeIndex{}, nil)
	r.SetOutput(&out)

	n, err := r.IndexLabs(context.Background(), false)
	if err != nil {
		t.Fatalf("IndexLabs: %v", err)
	}
	if n != 0 {
		t.Errorf("IndexLabs = %d records, want 0 when every invite fails", n)
	}
}

func TestIndexLabsRequiresKey(t *testing.T) {
	if _, err := NewRunner(testConfig(), nil, http.DefaultClient, nil, nil).IndexLabs(context.Background(), false); err == nil {
		t.Error("IndexLabs without an API key returned no error")
	}
}

// ── Retry ───────────────────────────────────────────────────────────

func TestBackoffDelays(t *testing.T) {
	b := Backoff{Retries: 3, MinDelay: time.Second, Factor: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if got := b.Delays(); !reflect.DeepEqual(got, want) {
		t.Errorf("Delays() = %v, want %v", got, want)
	}
	if got := (Backoff{}).Delays(); len(got) != 0 {
		t.Errorf("zero Backoff delays = %v", got)
	}
}

func TestRetry(t *testing.T) {
	b := Backoff{Retries: 3, MinDelay: time.Millisecond, Factor: 1}

	calls := 0
	err := Retry(context.Background(), b, "page", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Retry = %v after %d calls, want success after 2", err, calls)
	}

	calls = 0
	errDown := errors.New("down")
	err = Retry(context.Background(), b, "page", func(context.Context) error {
		calls++
		return errDown
	})
	if !errors.Is(err, errDown) || calls != 4 {
		t.Errorf("Retry = %v after %d calls, want %v after 4", err, calls, errDown)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := Backoff{Retries: 5, MinDelay: time.Hour}

	calls := 0
	err := Retry(ctx, b, "page", func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("Retry = %v after %d calls, want context.Canceled after 1", err, calls)
	}
}
