package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proxywarden/internal/domain"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(2*time.Second, WithUserAgent(func() string { return "scraper-test" }))
}

func TestFetchPlainTextList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "scraper-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("1.1.1.1:80\nhttp://2.2.2.2:8080\nnot-an-ip:abc\n1.1.1.1:80\n\n"))
	}))
	defer server.Close()

	proxies := newTestFetcher().Fetch(context.Background(), domain.Source{Type: domain.ProxyTypeHTTP, URL: server.URL})

	if len(proxies) != 2 {
		t.Fatalf("Fetch returned %d proxies, want 2: %v", len(proxies), proxies)
	}
	for _, want := range []string{"1.1.1.1:80", "2.2.2.2:8080"} {
		if _, ok := proxies[want]; !ok {
			t.Fatalf("Fetch result missing %s", want)
		}
	}
}

func TestFetchHTMLTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><body>
<table><tr><th>IP</th><th>Port</th></tr>
<tr><td>3.3.3.3</td><td>3128</td></tr>
<tr><td>4.4.4.4</td><td>1080</td></tr></table>
</body></html>`))
	}))
	defer server.Close()

	proxies := newTestFetcher().Fetch(context.Background(), domain.Source{Type: domain.ProxyTypeSOCKS5, URL: server.URL})

	for _, want := range []string{"3.3.3.3:3128", "4.4.4.4:1080"} {
		if _, ok := proxies[want]; !ok {
			t.Fatalf("Fetch result missing %s: %v", want, proxies)
		}
	}
}

func TestFetchFailuresYieldEmptySet(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("1.1.1.1:80"))
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		url  string
	}{
		{name: "server error", url: failing.URL},
		{name: "connection refused", url: closedURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxies := newTestFetcher().Fetch(context.Background(), domain.Source{Type: domain.ProxyTypeHTTP, URL: tt.url})
			if proxies == nil || len(proxies) != 0 {
				t.Fatalf("Fetch returned %v, want empty non-nil set", proxies)
			}
		})
	}
}
