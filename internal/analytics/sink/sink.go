package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/voxelforge/voxelforge-backend/internal/analytics/types"
	pkgbigquery "github.com/voxelforge/voxelforge-backend/pkg/bigquery"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// Config controls the asset event sink behavior.
type Config struct {
	AssetEventsTable string
	RetryPolicy      RetryPolicy
}

// Sink records asset lifecycle events in BigQuery. Writes are best effort:
// a failed insert is logged and never propagated to the ingest path.
type Sink struct {
	client tableInserter
	logg   *logger.Logger
	table  string
	retry  RetryPolicy
}

// New creates a Sink backed by a shared BigQuery client.
func New(client *pkgbigquery.Client, logg *logger.Logger, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	table := strings.TrimSpace(cfg.AssetEventsTable)
	if table == "" {
		return nil, errors.New("asset events table is required")
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &Sink{client: client, logg: logg, table: table, retry: retry}, nil
}

// AssetIngested records one asset-ingested event. Errors never surface.
func (s *Sink) AssetIngested(ctx context.Context, row types.AssetEventRow) {
	if s == nil {
		return
	}
	if row.OccurredAt.IsZero() {
		row.OccurredAt = time.Now().UTC()
	}
	if row.EventType == "" {
		row.EventType = "asset_ingested"
	}
	if err := s.insertWithRetry(ctx, []any{&row}); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "asset_id", row.AssetID), "asset event insert failed", err)
	}
}

func (s *Sink) insertWithRetry(ctx context.Context, rows []any) error {
	attempts := 0
	backoff := s.retry.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.client.InsertRows(ctx, s.table, rows)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= s.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %s rows: %w", s.table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		timer.Stop()

		backoff = minDuration(backoff*2, s.retry.MaximumBackoff)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		if rowErr == nil || len(rowErr.Errors) == 0 {
			return false
		}
		for _, inner := range rowErr.Errors {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}
