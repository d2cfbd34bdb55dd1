package meshy

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type stubResponse struct {
	status      int
	contentType string
	body        string
}

type stubDoer struct {
	mu        sync.Mutex
	calls     int
	responses []stubResponse
	err       error
	delay     time.Duration
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	spec := s.responses[len(s.responses)-1]
	if call < len(s.responses) {
		spec = s.responses[call]
	}
	resp := &http.Response{
		StatusCode: spec.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(spec.body)),
	}
	if spec.contentType != "" {
		resp.Header.Set("Content-Type", spec.contentType)
	}
	return resp, nil
}

func response(status int, contentType, body string) stubResponse {
	return stubResponse{status: status, contentType: contentType, body: body}
}

func newTestProxy(t *testing.T, doer httpDoer) Proxy {
	t.Helper()
	p, err := NewProxy(Params{
		HTTPClient:       doer,
		Logger:           logger.New(logger.Options{ServiceName: "test"}),
		AllowedURLPrefix: "https://assets.meshy.ai/",
		MaxRetries:       3,
		RetryBase:        time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewProxy: %v", err)
	}
	return p
}

func TestFetchReturnsUpstreamBody(t *testing.T) {
	t.Parallel()

	doer := &stubDoer{responses: []stubResponse{
		response(http.StatusOK, "model/gltf-binary", "glb-bytes"),
	}}
	p := newTestProxy(t, doer)

	result, err := p.Fetch(context.Background(), "https://assets.meshy.ai/generated/dragon.glb")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.ContentType != "model/gltf-binary" {
		t.Fatalf("expected upstream content type, got %s", result.ContentType)
	}
	if string(result.Body) != "glb-bytes" {
		t.Fatalf("unexpected body %q", result.Body)
	}
}

func TestFetchRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	p := newTestProxy(t, &stubDoer{})
	_, err := p.Fetch(context.Background(), "   ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFetchRejectsNonAllowlistedHost(t *testing.T) {
	t.Parallel()

	doer := &stubDoer{responses: []stubResponse{response(http.StatusOK, "", "x")}}
	p := newTestProxy(t, doer)

	_, err := p.Fetch(context.Background(), "https://evil.example.com/dragon.glb")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if doer.calls != 0 {
		t.Fatalf("upstream must not be contacted for rejected urls")
	}
}

func TestFetchRetriesRateLimit(t *testing.T) {
	t.Parallel()

	doer := &stubDoer{responses: []stubResponse{
		response(http.StatusTooManyRequests, "", ""),
		response(http.StatusTooManyRequests, "", ""),
		response(http.StatusOK, "model/gltf-binary", "glb-bytes"),
	}}
	p := newTestProxy(t, doer)

	result, err := p.Fetch(context.Background(), "https://assets.meshy.ai/generated/dragon.glb")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", doer.calls)
	}
	if string(result.Body) != "glb-bytes" {
		t.Fatalf("unexpected body %q", result.Body)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	doer := &stubDoer{responses: []stubResponse{
		response(http.StatusNotFound, "", "missing"),
	}}
	p := newTestProxy(t, doer)

	_, err := p.Fetch(context.Background(), "https://assets.meshy.ai/generated/missing.glb")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if doer.calls != 1 {
		t.Fatalf("client errors must not retry, got %d attempts", doer.calls)
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	doer := &stubDoer{responses: []stubResponse{
		response(http.StatusServiceUnavailable, "", ""),
	}}
	p := newTestProxy(t, doer)

	_, err := p.Fetch(context.Background(), "https://assets.meshy.ai/generated/flaky.glb")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if doer.calls != 4 {
		t.Fatalf("expected initial attempt plus 3 retries, got %d", doer.calls)
	}
}

func TestFetchCollapsesConcurrentRequests(t *testing.T) {
	t.Parallel()

	doer := &stubDoer{
		responses: []stubResponse{response(http.StatusOK, "model/gltf-binary", "glb-bytes")},
		delay:     50 * time.Millisecond,
	}
	p := newTestProxy(t, doer)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Fetch(context.Background(), "https://assets.meshy.ai/generated/dragon.glb")
			if err != nil || string(result.Body) != "glb-bytes" {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("expected every caller to get the shared result")
	}
	if doer.calls > 2 {
		t.Fatalf("expected collapsed upstream fetches, got %d", doer.calls)
	}
}
