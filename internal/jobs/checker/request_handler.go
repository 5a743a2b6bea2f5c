package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"proxywarden/internal/domain"
)

// ErrProbeSetup marks failures that happen before a request reaches the
// network: transport or request construction. The prober classifies them as
// errors rather than dead proxies.
var ErrProbeSetup = errors.New("checker: probe setup failed")

const maxDrainBytes = 4096

// Fetcher performs one request to target through proxyAddr and reports the
// HTTP status code.
type Fetcher interface {
	Fetch(ctx context.Context, target, proxyAddr string, proxyType domain.ProxyType, timeout time.Duration, header http.Header) (int, error)
}

// HTTPFetcher is the production Fetcher. Every call builds a dedicated
// transport with keep-alives disabled so no connection outlives its probe.
type HTTPFetcher struct{}

func (HTTPFetcher) Fetch(ctx context.Context, target, proxyAddr string, proxyType domain.ProxyType, timeout time.Duration, header http.Header) (int, error) {
	transport, err := CreateTransport(proxyAddr, proxyType, timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: transport for %s: %v", ErrProbeSetup, proxyAddr, err)
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: request for %s: %v", ErrProbeSetup, target, err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Connection", "close")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return resp.StatusCode, nil
}

// CreateTransport returns an http.Transport that tunnels through proxyAddr
// using the protocol of proxyType.
func CreateTransport(proxyAddr string, proxyType domain.ProxyType, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: -1,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   0,
		IdleConnTimeout:       0,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	switch proxyType {
	case domain.ProxyTypeHTTP:
		transport.Proxy = http.ProxyURL(&url.URL{
			Scheme: "http",
			Host:   proxyAddr,
		})

	case domain.ProxyTypeSOCKS5:
		socksDialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, dialer)
		if err != nil {
			return nil, err
		}
		if contextDialer, ok := socksDialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socksDialer.Dial(network, addr)
			}
		}

	default:
		return nil, fmt.Errorf("unsupported proxy type %q", proxyType)
	}

	return transport, nil
}
