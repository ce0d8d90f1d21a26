// Package shortener turns long URLs into short links for status text.
//
// Shortening is best-effort: every failure is reported as
// apperror.ErrShorteningUnavailable and callers keep the original URL.
package shortener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/metrics"
)

// DefaultEndpoint is TinyURL's plain-text creation API.
const DefaultEndpoint = "https://tinyurl.com/api-create.php"

// Shortener maps a long URL to a short one.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Nop returns every URL unchanged. Used when shortening is disabled.
type Nop struct{}

func (Nop) Shorten(_ context.Context, longURL string) (string, error) {
	return longURL, nil
}

// TinyURL calls a TinyURL-compatible API: GET {endpoint}?url=<long> answers
// 200 with the short URL as the whole body.
type TinyURL struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewTinyURL builds a client. A nil httpClient uses http.DefaultClient;
// timeout bounds each call independently of the caller's context.
func NewTinyURL(endpoint string, timeout time.Duration, httpClient *http.Client) *TinyURL {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TinyURL{endpoint: endpoint, timeout: timeout, client: httpClient}
}

func (t *TinyURL) Shorten(ctx context.Context, longURL string) (string, error) {
	short, err := t.shorten(ctx, longURL)
	if err != nil {
		metrics.RecordShortening("failed")
		return "", err
	}
	metrics.RecordShortening("ok")
	return short, nil
}

func (t *TinyURL) shorten(ctx context.Context, longURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.endpoint+"?url="+url.QueryEscape(longURL), nil)
	if err != nil {
		return "", apperror.ShorteningUnavailable(longURL, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperror.ShorteningUnavailable(longURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperror.ShorteningUnavailable(longURL,
			fmt.Errorf("shortener returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return "", apperror.ShorteningUnavailable(longURL, fmt.Errorf("reading response: %w", err))
	}

	short := strings.TrimSpace(string(body))
	u, err := url.Parse(short)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperror.ShorteningUnavailable(longURL,
			fmt.Errorf("shortener returned %q, not a URL", short))
	}
	return short, nil
}
