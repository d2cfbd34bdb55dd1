package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

const storageAPIBase = "https://storage.googleapis.com/storage/v1"
const uploadAPIBase = "https://storage.googleapis.com/upload/storage/v1"

// UploadObject writes an object via the JSON API multipart upload so custom
// metadata lands in the same request as the payload.
func (c *Client) UploadObject(ctx context.Context, bucket, object, contentType string, metadata map[string]string, body io.Reader) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" || object == "" {
		return errors.New("bucket and object are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return err
	}

	meta := map[string]any{
		"name":        object,
		"contentType": contentType,
	}
	if len(metadata) > 0 {
		meta["metadata"] = metadata
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding object metadata: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return err
	}

	dataHeader := textproto.MIMEHeader{}
	dataHeader.Set("Content-Type", contentType)
	dataPart, err := writer.CreatePart(dataHeader)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dataPart, body); err != nil {
		return fmt.Errorf("copying upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/b/%s/o?uploadType=multipart", uploadAPIBase, url.PathEscape(bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apiError("gcs upload", resp)
	}
	return nil
}

// DownloadObject streams an object's payload. The caller owns the returned reader.
func (c *Client) DownloadObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	if c == nil || c.tokenSource == nil {
		return nil, errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" || object == "" {
		return nil, errors.New("bucket and object are required")
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/b/%s/o/%s?alt=media", storageAPIBase, url.PathEscape(bucket), url.PathEscape(object))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, apiError("gcs download", resp)
	}
	return resp.Body, nil
}

// RewriteObject server-side copies an object, following rewrite tokens for
// large payloads.
func (c *Client) RewriteObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if srcBucket == "" {
		srcBucket = c.defaultBucket
	}
	if dstBucket == "" {
		dstBucket = c.defaultBucket
	}
	if srcBucket == "" || srcObject == "" || dstBucket == "" || dstObject == "" {
		return errors.New("source and destination are required")
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return err
	}

	rewriteToken := ""
	for {
		u := fmt.Sprintf("%s/b/%s/o/%s/rewriteTo/b/%s/o/%s",
			storageAPIBase,
			url.PathEscape(srcBucket), url.PathEscape(srcObject),
			url.PathEscape(dstBucket), url.PathEscape(dstObject),
		)
		if rewriteToken != "" {
			u += "?rewriteToken=" + url.QueryEscape(rewriteToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader("{}"))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			err := apiError("gcs rewrite", resp)
			_ = resp.Body.Close()
			return err
		}

		var result struct {
			Done         bool   `json:"done"`
			RewriteToken string `json:"rewriteToken"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("decoding rewrite response: %w", decodeErr)
		}
		if result.Done {
			return nil
		}
		rewriteToken = result.RewriteToken
	}
}

// MoveObject copies an object to the destination and removes the source.
func (c *Client) MoveObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	if err := c.RewriteObject(ctx, srcBucket, srcObject, dstBucket, dstObject); err != nil {
		return err
	}
	return c.DeleteObject(ctx, srcBucket, srcObject)
}

// DeleteObject removes an object. A missing object is treated as success.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" || object == "" {
		return errors.New("bucket and object are required")
	}

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/b/%s/o/%s", storageAPIBase, url.PathEscape(bucket), url.PathEscape(object))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return apiError("gcs delete", resp)
	}
}

func apiError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(b) > 0 {
		return fmt.Errorf("%s failed: %s: %s", op, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("%s failed: %s", op, resp.Status)
}
