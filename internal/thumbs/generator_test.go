package thumbs

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type stubRepo struct {
	paths []string
	urls  []string
	rows  int64
	err   error
}

func (s *stubRepo) SetThumbnailURLByPath(ctx context.Context, path, thumbnailURL string) (int64, error) {
	s.paths = append(s.paths, path)
	s.urls = append(s.urls, thumbnailURL)
	return s.rows, s.err
}

type stubGCS struct {
	objectData []byte
	uploads    map[string][]byte
	uploadMeta map[string]map[string]string
	signed     []string
}

func (s *stubGCS) DownloadObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.objectData)), nil
}

func (s *stubGCS) UploadObject(ctx context.Context, bucket, object, contentType string, metadata map[string]string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
		s.uploadMeta = map[string]map[string]string{}
	}
	s.uploads[object] = data
	s.uploadMeta[object] = metadata
	return nil
}

func (s *stubGCS) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	s.signed = append(s.signed, object)
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?signed", nil
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 96, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestGenerator(t *testing.T, repo *stubRepo, gcs *stubGCS) Generator {
	t.Helper()
	gen, err := NewGenerator(Params{
		Repo:         repo,
		GCS:          gcs,
		Logger:       logger.New(logger.Options{ServiceName: "test"}),
		MaxDimension: 256,
		URLTTL:       time.Hour,
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return gen
}

func TestProcessObjectResizesLargeImage(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{rows: 1}
	gcs := &stubGCS{objectData: encodePNG(t, 1024, 512)}
	gen := newTestGenerator(t, repo, gcs)

	err := gen.ProcessObject(context.Background(), Object{
		Bucket:      "vf-assets",
		Name:        "resources/images/u1/banner.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("ProcessObject: %v", err)
	}

	thumbKey := "thumbnails/resources/images/u1/thumb_banner.png"
	data, ok := gcs.uploads[thumbKey]
	if !ok {
		t.Fatalf("expected upload at %s, got %v", thumbKey, keys(gcs.uploads))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 128 {
		t.Fatalf("expected 256x128 thumbnail, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	if gcs.uploadMeta[thumbKey]["source"] != "resources/images/u1/banner.png" {
		t.Fatalf("expected source metadata, got %v", gcs.uploadMeta[thumbKey])
	}
	if len(repo.paths) != 1 || repo.paths[0] != "resources/images/u1/banner.png" {
		t.Fatalf("expected backfill by source path, got %v", repo.paths)
	}
}

func TestProcessObjectNeverEnlargesSmallImage(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{rows: 1}
	gcs := &stubGCS{objectData: encodePNG(t, 64, 48)}
	gen := newTestGenerator(t, repo, gcs)

	err := gen.ProcessObject(context.Background(), Object{
		Bucket:      "vf-assets",
		Name:        "resources/images/u1/icon.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("ProcessObject: %v", err)
	}

	data := gcs.uploads["thumbnails/resources/images/u1/thumb_icon.png"]
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("small image must keep its dimensions, got %v", img.Bounds())
	}
}

func TestProcessObjectPlaceholderForModels(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{rows: 1}
	gcs := &stubGCS{}
	gen := newTestGenerator(t, repo, gcs)

	err := gen.ProcessObject(context.Background(), Object{
		Bucket:      "vf-assets",
		Name:        "resources/models/u1/dragon.glb",
		ContentType: "model/gltf-binary",
	})
	if err != nil {
		t.Fatalf("ProcessObject: %v", err)
	}

	data, ok := gcs.uploads["thumbnails/resources/models/u1/thumb_dragon.png"]
	if !ok {
		t.Fatalf("expected placeholder upload, got %v", keys(gcs.uploads))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode placeholder: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Fatalf("expected 256x256 placeholder, got %v", img.Bounds())
	}
}

func TestPlaceholderDeterministicPerName(t *testing.T) {
	t.Parallel()

	a1, err := generatePlaceholderPNG("dragon.glb", 64)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	a2, err := generatePlaceholderPNG("dragon.glb", 64)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(a1, a2) {
		t.Fatalf("same name must render the same placeholder")
	}
	b, err := generatePlaceholderPNG("knight.glb", 64)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if bytes.Equal(a1, b) {
		t.Fatalf("different names should render different placeholders")
	}
}

func TestProcessObjectSkipsIneligible(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{}
	gcs := &stubGCS{}
	gen := newTestGenerator(t, repo, gcs)

	err := gen.ProcessObject(context.Background(), Object{
		Bucket:      "vf-assets",
		Name:        "resources/videos/u1/clip.mp4",
		ContentType: "video/mp4",
	})
	if err != nil {
		t.Fatalf("ProcessObject: %v", err)
	}
	if len(gcs.uploads) != 0 || len(repo.paths) != 0 {
		t.Fatalf("ineligible object must be skipped entirely")
	}
}

func TestProcessObjectSkipsThumbnailOutputs(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{}
	gcs := &stubGCS{}
	gen := newTestGenerator(t, repo, gcs)

	err := gen.ProcessObject(context.Background(), Object{
		Bucket:      "vf-assets",
		Name:        "thumbnails/resources/images/u1/thumb_banner.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("ProcessObject: %v", err)
	}
	if len(gcs.uploads) != 0 {
		t.Fatalf("thumbnail outputs must not be re-thumbnailed")
	}
}

func TestProcessObjectMissingAssetRecordLogsAndSucceeds(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{rows: 0}
	gcs := &stubGCS{objectData: encodePNG(t, 32, 32)}
	gen := newTestGenerator(t, repo, gcs)

	err := gen.ProcessObject(context.Background(), Object{
		Bucket:      "vf-assets",
		Name:        "resources/images/u1/orphan.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("missing record must not fail the job, got %v", err)
	}
	if len(repo.paths) != 1 {
		t.Fatalf("expected backfill attempt")
	}
}

func TestBuildThumbnailKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"resources/images/u1/banner.jpeg": "thumbnails/resources/images/u1/thumb_banner.png",
		"flat.png":                        "thumbnails/thumb_flat.png",
		"a/b/model.glb":                   "thumbnails/a/b/thumb_model.png",
	}
	for input, want := range cases {
		if got := buildThumbnailKey(input); got != want {
			t.Fatalf("buildThumbnailKey(%q) = %q, want %q", input, got, want)
		}
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
