package types

import "time"

// AssetEventRow is the BigQuery row recorded for each ingested asset.
type AssetEventRow struct {
	EventID    string    `bigquery:"event_id"`
	EventType  string    `bigquery:"event_type"`
	AssetID    string    `bigquery:"asset_id"`
	AssetType  string    `bigquery:"asset_type"`
	Source     string    `bigquery:"source"`
	UploaderID string    `bigquery:"uploader_id"`
	Bucket     string    `bigquery:"bucket"`
	ObjectPath string    `bigquery:"object_path"`
	SizeBytes  int64     `bigquery:"size_bytes"`
	OccurredAt time.Time `bigquery:"occurred_at"`
}
