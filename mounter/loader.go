package mounter

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"vizinsight/cache"
)

// probeTTL is how long a successful probe is trusted.
const probeTTL = 10 * time.Minute

// ScriptLoader makes sure a third-party script URL is usable before the
// chart body that depends on it runs.
type ScriptLoader interface {
	Load(ctx context.Context, url string) error
}

// LoaderFunc adapts a function to ScriptLoader.
type LoaderFunc func(ctx context.Context, url string) error

func (f LoaderFunc) Load(ctx context.Context, url string) error { return f(ctx, url) }

// NopLoader trusts every URL; the browser fetches them when the page loads.
type NopLoader struct{}

func (NopLoader) Load(context.Context, string) error { return nil }

// HTTPLoader probes each URL with a HEAD request. Successful probes are
// remembered so one loader can be shared by every surface.
type HTTPLoader struct {
	client *http.Client
	ok     *cache.Cache
}

func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLoader{
		client: &http.Client{Timeout: timeout},
		ok:     cache.New(probeTTL),
	}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) error {
	if _, hit := l.ok.Get(url); hit {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errors.Wrapf(err, "load %s", url)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "load %s", url)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errors.Errorf("load %s: status %d", url, resp.StatusCode)
	}
	l.ok.SetDefault(url, struct{}{})
	return nil
}
