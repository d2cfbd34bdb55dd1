package meshy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const maxProxyBytes = 512 << 20

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchResult is a fully buffered upstream response. Buffering lets
// concurrent requests for the same model share one upstream fetch.
type FetchResult struct {
	ContentType string
	Body        []byte
}

// Proxy fetches model files from the upstream asset host on behalf of
// browser clients that cannot call it directly.
type Proxy interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// Params bundles the proxy dependencies.
type Params struct {
	HTTPClient       httpDoer
	Logger           *logger.Logger
	AllowedURLPrefix string
	MaxRetries       int
	RetryBase        time.Duration
	RequestTimeout   time.Duration
}

type proxy struct {
	httpClient       httpDoer
	logg             *logger.Logger
	allowedURLPrefix string
	maxRetries       uint64
	retryBase        time.Duration
	group            singleflight.Group
}

// NewProxy constructs the model proxy.
func NewProxy(p Params) (Proxy, error) {
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.AllowedURLPrefix == "" {
		return nil, errors.New("allowed url prefix is required")
	}
	httpClient := p.HTTPClient
	if httpClient == nil {
		timeout := p.RequestTimeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 4
	}
	retryBase := p.RetryBase
	if retryBase <= 0 {
		retryBase = 500 * time.Millisecond
	}
	return &proxy{
		httpClient:       httpClient,
		logg:             p.Logger,
		allowedURLPrefix: p.AllowedURLPrefix,
		maxRetries:       uint64(maxRetries),
		retryBase:        retryBase,
	}, nil
}

// Fetch downloads the model at rawURL. Only URLs under the allowed prefix are
// proxied. Concurrent requests for the same URL collapse into one upstream
// call, and rate-limited fetches back off exponentially.
func (p *proxy) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url parameter is required")
	}
	if !strings.HasPrefix(rawURL, p.allowedURLPrefix) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url is not an allowed asset host")
	}

	value, err, shared := p.group.Do(rawURL, func() (any, error) {
		return p.fetchWithRetry(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logg.Info(p.logg.WithField(ctx, "url", rawURL), "proxy fetch deduplicated")
	}
	return value.(*FetchResult), nil
}

func (p *proxy) fetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.retryBase))

	var result *FetchResult
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := p.fetchOnce(ctx, rawURL)
		if err != nil {
			return err
		}
		result = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *proxy) fetchOnce(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upstream request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call upstream asset host"))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.RetryableError(pkgerrors.New(pkgerrors.CodeRateLimit, "upstream rate limited"))
	case resp.StatusCode >= 500:
		return nil, retry.RetryableError(pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("upstream returned %d", resp.StatusCode),
			"upstream error",
		))
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("upstream returned %d", resp.StatusCode),
			"upstream rejected request",
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBytes+1))
	if err != nil {
		return nil, retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read upstream body"))
	}
	if len(body) > maxProxyBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upstream model exceeds proxy size limit")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &FetchResult{ContentType: contentType, Body: body}, nil
}
