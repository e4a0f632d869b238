package native

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageHTML = `<!doctype html>
<html><head><title>Install | Docs</title></head>
<body>
  <nav><a href="/">Home</a> <a href="/docs">Docs</a></nav>
  <main>
    <div class="toc">On this page</div>
    <h1>Install</h1>
    <p>Run the installer and read the <a href="/docs/config">configuration guide</a> before continuing.</p>
    <script>trackPageView()</script>
  </main>
  <footer>Copyright</footer>
</body></html>`

// newSite serves a sitemap index with a docs sitemap (gzip), a blog sitemap
// and a broken child, plus a couple of HTML pages.
func newSite(t *testing.T) (*httptest.Server, *agentLog) {
	t.Helper()
	var srv *httptest.Server
	requests := &agentLog{}

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%[1]s/sitemap-docs.xml.gz</loc></sitemap>
  <sitemap><loc>%[1]s/missing.xml</loc></sitemap>
  <sitemap><loc>%[1]s/sitemap-blog.xml</loc></sitemap>
  <sitemap><loc>%[1]s/sitemap.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/sitemap-docs.xml.gz", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		fmt.Fprintf(gz, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%[1]s/docs</loc></url>
  <url><loc> %[1]s/docs/install </loc></url>
  <url><loc>%[1]s/docs/install?hl=fr</loc></url>
  <url><loc>%[1]s/docs/install</loc></url>
  <url><loc>%[1]s/docs-legacy/old</loc></url>
  <url><loc>%[1]s/docs/config</loc></url>
</urlset>`, srv.URL)
		require.NoError(t, gz.Close())
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/sitemap-blog.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%[1]s/blog/post</loc></url><url><loc>%[1]s/docs/faq</loc></url></urlset>`, srv.URL)
	})
	mux.HandleFunc("/docs/install", func(w http.ResponseWriter, r *http.Request) {
		requests.add(r.Header.Get("User-Agent"))
		w.Write([]byte(pageHTML))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, requests
}

// agentLog records the User-Agent of each page request.
type agentLog struct {
	mu     sync.Mutex
	agents []string
}

func (l *agentLog) add(ua string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.agents = append(l.agents, ua)
}

func (l *agentLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.agents...)
}

func newTestSource(opts Options) *Source {
	if opts.UserAgent == "" {
		opts.UserAgent = "docs-mirror-test"
	}
	opts.Logger = zerolog.Nop()
	return New(opts)
}

func TestDiscover(t *testing.T) {
	srv, _ := newSite(t)
	src := newTestSource(Options{})

	urls, err := src.Discover(context.Background(), srv.URL+"/docs", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/docs",
		srv.URL + "/docs/install",
		srv.URL + "/docs/config",
		srv.URL + "/docs/faq",
	}, urls)
}

func TestDiscover_Limit(t *testing.T) {
	srv, _ := newSite(t)
	src := newTestSource(Options{})

	urls, err := src.Discover(context.Background(), srv.URL+"/", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/docs", srv.URL + "/docs/install"}, urls)
}

func TestDiscover_Errors(t *testing.T) {
	src := newTestSource(Options{})

	_, err := src.Discover(context.Background(), "not a url", 5)
	assert.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, err = src.Discover(context.Background(), srv.URL, 5)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not a sitemap"))
	}))
	t.Cleanup(bad.Close)
	_, err = src.Discover(context.Background(), bad.URL, 5)
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv, requests := newSite(t)
	src := newTestSource(Options{UserAgent: "mirror-ua"})

	md, err := src.Fetch(context.Background(), srv.URL+"/docs/install", "markdown")
	require.NoError(t, err)

	assert.Contains(t, md, "# Install")
	assert.Contains(t, md, "[configuration guide]("+srv.URL+"/docs/config)")
	assert.NotContains(t, md, "On this page")
	assert.NotContains(t, md, "trackPageView")
	assert.NotContains(t, md, "Copyright")
	assert.NotContains(t, md, "Home")
	assert.True(t, strings.HasSuffix(md, "\n"))
	assert.Equal(t, []string{"mirror-ua"}, requests.get())
}

func TestFetch_Selector(t *testing.T) {
	srv, _ := newSite(t)

	src := newTestSource(Options{Selector: "p"})
	md, err := src.Fetch(context.Background(), srv.URL+"/docs/install", "markdown")
	require.NoError(t, err)
	assert.NotContains(t, md, "# Install")
	assert.Contains(t, md, "Run the installer")

	src = newTestSource(Options{Selector: ".does-not-exist"})
	_, err = src.Fetch(context.Background(), srv.URL+"/docs/install", "markdown")
	assert.ErrorIs(t, err, errNoContent)
}

func TestFetch_Errors(t *testing.T) {
	srv, _ := newSite(t)
	src := newTestSource(Options{})

	_, err := src.Fetch(context.Background(), srv.URL+"/docs/install", "html")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = src.Fetch(context.Background(), srv.URL+"/docs/nope", "markdown")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.Code)
}

func TestFetch_DelayHonoursCancel(t *testing.T) {
	srv, requests := newSite(t)
	src := newTestSource(Options{Delay: 1 << 40})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Fetch(ctx, srv.URL+"/docs/install", "markdown")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, requests.get())
}

func TestInScope(t *testing.T) {
	prefix := "https://x.dev/docs"
	assert.True(t, inScope("https://x.dev/docs", prefix))
	assert.True(t, inScope("https://x.dev/docs/a", prefix))
	assert.True(t, inScope("https://x.dev/docs?page=2", prefix))
	assert.False(t, inScope("https://x.dev/docs-old", prefix))
	assert.False(t, inScope("https://x.dev/docs/a?hl=de", prefix))
	assert.False(t, inScope("https://other.dev/docs/a", prefix))
}
