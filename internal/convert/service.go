package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

const (
	inputPrefix  = "conversions/in/"
	outputPrefix = "conversions/out/"
	usdzMIMEType = "model/vnd.usdz+zip"
)

type gcsClient interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, metadata map[string]string, body io.Reader) error
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Input carries one conversion request: the uploaded USDZ payload and the
// name the client gave it.
type Input struct {
	FileName string
	Body     io.Reader
}

// Result is the converted artifact handed back to the client.
type Result struct {
	Message       string `json:"message"`
	OriginalName  string `json:"original_name"`
	ConvertedName string `json:"converted_name"`
	DownloadURL   string `json:"download_url"`
}

// Service converts uploaded USDZ files to GLB via the external converter.
type Service interface {
	Convert(ctx context.Context, input Input) (*Result, error)
}

// Params bundles the service dependencies.
type Params struct {
	GCS             gcsClient
	HTTPClient      httpDoer
	Logger          *logger.Logger
	Bucket          string
	ConverterURL    string
	InputURLExpiry  time.Duration
	OutputURLExpiry time.Duration
}

type service struct {
	gcs             gcsClient
	httpClient      httpDoer
	logg            *logger.Logger
	bucket          string
	converterURL    string
	inputURLExpiry  time.Duration
	outputURLExpiry time.Duration
	newID           func() uuid.UUID
}

// NewService constructs the conversion service.
func NewService(p Params) (Service, error) {
	if p.GCS == nil {
		return nil, errors.New("gcs client is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if p.ConverterURL == "" {
		return nil, errors.New("converter url is required")
	}
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	inputExpiry := p.InputURLExpiry
	if inputExpiry <= 0 {
		inputExpiry = 15 * time.Minute
	}
	outputExpiry := p.OutputURLExpiry
	if outputExpiry <= 0 {
		outputExpiry = 24 * time.Hour
	}
	return &service{
		gcs:             p.GCS,
		httpClient:      httpClient,
		logg:            p.Logger,
		bucket:          p.Bucket,
		converterURL:    p.ConverterURL,
		inputURLExpiry:  inputExpiry,
		outputURLExpiry: outputExpiry,
		newID:           uuid.New,
	}, nil
}

type converterRequest struct {
	InputURL     string `json:"inputUrl"`
	OutputBucket string `json:"outputBucket"`
	OutputPath   string `json:"outputPath"`
}

// Convert stages the upload, invokes the converter, and signs a read URL for
// the produced GLB.
func (s *service) Convert(ctx context.Context, input Input) (*Result, error) {
	base := path.Base(strings.TrimSpace(input.FileName))
	if base == "" || base == "." || base == "/" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if !strings.EqualFold(path.Ext(base), ".usdz") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only usdz files can be converted")
	}
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file body is required")
	}

	id := s.newID().String()
	inputKey := inputPrefix + id + "_" + base
	outputKey := outputPrefix + id + ".glb"

	if err := s.gcs.UploadObject(ctx, s.bucket, inputKey, usdzMIMEType, nil, input.Body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stage conversion input")
	}

	inputURL, err := s.gcs.SignedReadURL(s.bucket, inputKey, s.inputURLExpiry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign conversion input url")
	}

	if err := s.invokeConverter(ctx, converterRequest{
		InputURL:     inputURL,
		OutputBucket: s.bucket,
		OutputPath:   outputKey,
	}); err != nil {
		return nil, err
	}

	glbURL, err := s.gcs.SignedReadURL(s.bucket, outputKey, s.outputURLExpiry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign conversion output url")
	}

	s.logg.Info(s.logg.WithField(ctx, "conversion_id", id), "usdz converted to glb")
	return &Result{
		Message:       "conversion complete",
		OriginalName:  base,
		ConvertedName: path.Base(outputKey),
		DownloadURL:   glbURL,
	}, nil
}

func (s *service) invokeConverter(ctx context.Context, payload converterRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode converter request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.converterURL, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build converter request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call converter")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("converter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			"conversion failed",
		)
	}
	return nil
}
