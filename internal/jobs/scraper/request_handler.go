package scraper

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/corpix/uarand"
	"github.com/go-resty/resty/v2"

	"proxywarden/internal/domain"
	"proxywarden/internal/support"
)

const DefaultTimeout = 30 * time.Second

type FetcherOption func(*Fetcher)

func WithUserAgent(agent func() string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = agent
	}
}

// WithClient replaces the resty client, mainly so tests can point it at a
// local server with custom transport settings.
func WithClient(client *resty.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// Fetcher downloads proxy lists. It never reports errors to the caller: a
// failing source is logged and contributes no candidates.
type Fetcher struct {
	client    *resty.Client
	userAgent func() string
}

func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	f := &Fetcher{
		client:    resty.New().SetTimeout(timeout),
		userAgent: uarand.GetRandom,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one source and returns the distinct normalized addresses
// it lists. HTML pages are flattened before parsing.
func (f *Fetcher) Fetch(ctx context.Context, src domain.Source) map[string]struct{} {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", f.userAgent()).
		Get(src.URL)
	if err != nil {
		log.Warn("Fetching source failed", "url", src.URL, "type", src.Type, "error", err)
		return map[string]struct{}{}
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		log.Warn("Source returned non-success status", "url", src.URL, "status", resp.StatusCode())
		return map[string]struct{}{}
	}

	body := resp.String()
	if support.LooksLikeHTML(resp.Header().Get("Content-Type"), body) {
		text, err := support.ExtractProxyText(body)
		if err != nil {
			log.Warn("Parsing HTML source failed", "url", src.URL, "error", err)
			return map[string]struct{}{}
		}
		body = text
	}

	proxies := support.ParseTextToProxies(body)
	log.Debug("Fetched source", "url", src.URL, "type", src.Type, "proxies", len(proxies))
	return proxies
}
