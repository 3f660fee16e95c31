package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func parseHTML(t *testing.T, s string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("html.Parse: %v", err)
	}
	return root
}

func page(title, body string) string {
	return fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>", title, body)
}

func TestDiscoverLinks_FiltersAndDedups(t *testing.T) {
	base, _ := url.Parse("https://docs.example.com/")
	root := parseHTML(t, `<html><body>
		<a href="/guide/setup">setup</a>
		<a href="/guide/setup#install">setup again</a>
		<a href="https://docs.example.com/guide/lineage">lineage</a>
		<a href="https://developer.example.com/sdk">other host</a>
		<a href="/files/Manual.PDF">pdf</a>
		<a href="/assets/logo.png">image</a>
		<a href="/archive.zip">zip</a>
		<a href="/api/v1/assets">api</a>
		<a href="/search?q=sso">search</a>
		<a href="mailto:support@example.com">mail</a>
		<a href="relative/page">relative</a>
		<a>no href</a>
	</body></html>`)

	got := DiscoverLinks(root, base, 10)
	want := []string{
		"https://docs.example.com/guide/setup",
		"https://docs.example.com/guide/lineage",
		"https://docs.example.com/relative/page",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverLinks() = %v, want %v", got, want)
	}
}

func TestDiscoverLinks_Limit(t *testing.T) {
	base, _ := url.Parse("https://docs.example.com/")
	var b strings.Builder
	for i := range 10 {
		fmt.Fprintf(&b, `<a href="/p/%d">p</a>`, i)
	}
	root := parseHTML(t, "<html><body>"+b.String()+"</body></html>")

	got := DiscoverLinks(root, base, 3)
	if len(got) != 3 {
		t.Fatalf("got %d links, want 3", len(got))
	}
	if got[0] != "https://docs.example.com/p/0" || got[2] != "https://docs.example.com/p/2" {
		t.Errorf("links not in discovery order: %v", got)
	}
}

func TestIsDocPage(t *testing.T) {
	base, _ := url.Parse("https://docs.example.com/")
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://docs.example.com/guide", true},
		{"https://docs.example.com/guide/IMAGE.JPG", false},
		{"https://docs.example.com/anim.gif", false},
		{"https://docs.example.com/search", false},
		{"https://docs.example.com/api/", false},
		{"https://example.com/guide", false},
		{"http://docs.example.com:8080/guide", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.raw)
		if got := IsDocPage(u, base); got != tt.want {
			t.Errorf("IsDocPage(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		wantTitle   string
		wantContent string
	}{
		{
			name:        "main wins over body",
			doc:         page("Setup", `<nav>menu</nav><main><h1>Install</h1>  <p>Run   the
				installer.</p></main><footer>foot</footer>`),
			wantTitle:   "Setup",
			wantContent: "Install Run the installer.",
		},
		{
			name:        "selector order beats document order",
			doc:         page("T", `<div id="content">by id</div><article>article text</article>`),
			wantTitle:   "T",
			wantContent: "article text",
		},
		{
			name:        "class selector",
			doc:         page("T", `<div class="wrapper docs-content">docs body</div>`),
			wantTitle:   "T",
			wantContent: "docs body",
		},
		{
			name:        "script and style dropped",
			doc:         page("T", `<main><script>var x = 1;</script><style>p{}</style><p>visible</p></main>`),
			wantTitle:   "T",
			wantContent: "visible",
		},
		{
			name:        "body fallback and untitled",
			doc:         `<html><body><div>just   body</div></body></html>`,
			wantTitle:   "Untitled",
			wantContent: "just body",
		},
		{
			name:        "empty match falls back to body",
			doc:         page("T", `<main>   </main><p>outside</p>`),
			wantTitle:   "T",
			wantContent: "outside",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, content := Extract(parseHTML(t, tt.doc))
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if content != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
		})
	}
}

// docsSite serves a seed page linking to pages of various sizes.
func docsSite(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var agents []string

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		fmt.Fprint(w, page("Home", `
			<a href="/short">short</a>
			<a href="/exact">exact</a>
			<a href="/ok">ok</a>
			<a href="/ok#anchor">ok dup</a>
			<a href="/long">long</a>
			<a href="/missing">missing</a>
			<a href="/guide.pdf">pdf</a>
			<a href="https://elsewhere.example.com/ok">external</a>`))
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Short", "<main>"+strings.Repeat("s", 50)+"</main>"))
	})
	mux.HandleFunc("/exact", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Exact", "<main>"+strings.Repeat("e", 100)+"</main>"))
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("OK Page", "<main>"+strings.Repeat("o", 150)+"</main>"))
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Long", "<article>"+strings.Repeat("l", 3000)+"</article>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/guide.pdf", func(w http.ResponseWriter, r *http.Request) {
		t.Error("skip-pattern url was fetched")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &agents
}

func TestScrape_KeepsOnlyLongEnoughPages(t *testing.T) {
	srv, _ := docsSite(t)
	s := New(WithInterval(0))

	docs := s.Scrape(context.Background(), srv.URL+"/", 10)
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2: %+v", len(docs), docs)
	}
	if docs[0].URL != srv.URL+"/ok" || docs[0].Title != "OK Page" {
		t.Errorf("docs[0] = %q %q, want /ok \"OK Page\"", docs[0].URL, docs[0].Title)
	}
	if n := len([]rune(docs[0].Content)); n != 150 {
		t.Errorf("docs[0] content length = %d, want 150", n)
	}
	if docs[1].URL != srv.URL+"/long" {
		t.Errorf("docs[1].URL = %q, want /long", docs[1].URL)
	}
	if n := len([]rune(docs[1].Content)); n != MaxContentRunes {
		t.Errorf("docs[1] content length = %d, want %d", n, MaxContentRunes)
	}
	if docs[0].ScrapedAt.IsZero() {
		t.Error("ScrapedAt not set")
	}
}

func TestScrape_MaxPages(t *testing.T) {
	srv, _ := docsSite(t)
	docs := New(WithInterval(0)).Scrape(context.Background(), srv.URL+"/", 3)
	// Candidates are /short, /exact, /ok; only /ok is long enough.
	if len(docs) != 1 || docs[0].URL != srv.URL+"/ok" {
		t.Errorf("Scrape(maxPages=3) = %+v, want only /ok", docs)
	}
}

func TestScrape_SeedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if docs := New(WithInterval(0)).Scrape(context.Background(), srv.URL, 5); len(docs) != 0 {
		t.Errorf("Scrape() = %v, want empty on seed failure", docs)
	}
}

func TestScrape_UnreachableSeed(t *testing.T) {
	if docs := New(WithInterval(0), WithTimeout(time.Second)).Scrape(context.Background(), "http://127.0.0.1:1/", 5); len(docs) != 0 {
		t.Errorf("Scrape() = %v, want empty", docs)
	}
}

func TestScrape_SeedTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	docs := New(WithInterval(0), WithTimeout(100*time.Millisecond)).Scrape(context.Background(), srv.URL, 5)
	if len(docs) != 0 {
		t.Errorf("Scrape() = %v, want empty", docs)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Scrape took %v, want timeout near 100ms", elapsed)
	}
}

func TestScrape_UserAgent(t *testing.T) {
	srv, agents := docsSite(t)
	New(WithInterval(0), WithUserAgent("test-agent/2")).Scrape(context.Background(), srv.URL+"/", 1)
	if len(*agents) == 0 || (*agents)[0] != "test-agent/2" {
		t.Errorf("User-Agent = %v, want test-agent/2", *agents)
	}
}

func TestScrape_PacesPageFetches(t *testing.T) {
	srv, _ := docsSite(t)
	s := New(WithInterval(50 * time.Millisecond))

	start := time.Now()
	s.Scrape(context.Background(), srv.URL+"/", 3)
	// Three page fetches: the first is immediate, the next two wait.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Scrape took %v, want >= 100ms with 50ms interval", elapsed)
	}
}

func TestScrape_NonPositiveMaxPages(t *testing.T) {
	srv, agents := docsSite(t)
	if docs := New(WithInterval(0)).Scrape(context.Background(), srv.URL+"/", 0); docs != nil {
		t.Errorf("Scrape(maxPages=0) = %v, want nil", docs)
	}
	if len(*agents) != 0 {
		t.Error("seed fetched with maxPages=0")
	}
}
