package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxelforge/voxelforge-backend/internal/meshy"
	pkgAuth "github.com/voxelforge/voxelforge-backend/pkg/auth"
	"github.com/voxelforge/voxelforge-backend/pkg/config"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubProxy struct{}

func (stubProxy) Fetch(ctx context.Context, rawURL string) (*meshy.FetchResult, error) {
	if rawURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url parameter is required")
	}
	return &meshy.FetchResult{ContentType: "model/gltf-binary", Body: []byte("glb")}, nil
}

func testRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "voxelforge", ExpirationMinutes: 10}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	router := NewRouter(cfg, logg, stubPinger{}, nil, nil, nil, nil, nil, nil, stubProxy{})
	return router, cfg
}

func TestRouterHealthLive(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterPublicPing(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterPrivateRoutesRequireAuth(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRouterPrivatePingWithToken(t *testing.T) {
	router, cfg := testRouter(t)

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: "u1"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterModelProxyIsPublic(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/model?url=https://assets.meshy.ai/a.glb", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("Content-Type") != "model/gltf-binary" {
		t.Fatalf("expected proxied content type, got %q", resp.Header().Get("Content-Type"))
	}
}
