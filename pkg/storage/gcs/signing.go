package gcs

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const storageHost = "storage.googleapis.com"

// SignedURL returns a query-signed PUT URL for uploading an object directly.
func (c *Client) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	if contentType == "" {
		return "", errors.New("content type is required")
	}
	return c.signURL("PUT", bucket, object, contentType, expires)
}

// SignedReadURL returns a query-signed GET URL for downloading an object.
func (c *Client) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	return c.signURL("GET", bucket, object, "", expires)
}

func (c *Client) signURL(method, bucket, object, contentType string, expires time.Duration) (string, error) {
	if c == nil || c.serviceAccount == nil || c.serviceAccount.privateKey == nil {
		return "", errors.New("gcs signing requires service account credentials")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if object == "" {
		return "", errors.New("object is required")
	}
	if expires <= 0 {
		return "", errors.New("expiry must be positive")
	}

	expiration := time.Now().Add(expires).Unix()
	stringToSign := strings.Join([]string{
		method,
		"", // Content-MD5 unused
		contentType,
		strconv.FormatInt(expiration, 10),
		"/" + bucket + "/" + object,
	}, "\n")

	hash := sha256.Sum256([]byte(stringToSign))
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.serviceAccount.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("signing url: %w", err)
	}

	query := url.Values{}
	query.Set("GoogleAccessId", c.serviceAccount.clientEmail)
	query.Set("Expires", strconv.FormatInt(expiration, 10))
	query.Set("Signature", base64.StdEncoding.EncodeToString(signature))

	return fmt.Sprintf("https://%s/%s/%s?%s", storageHost, bucket, escapeObjectPath(object), query.Encode()), nil
}

func escapeObjectPath(object string) string {
	segments := strings.Split(object, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// ObjectKeyFromSignedURL extracts the bucket and object key from a query-signed
// GCS URL. The query string and URL encoding are stripped.
func ObjectKeyFromSignedURL(raw string) (bucket, object string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing signed url: %w", err)
	}

	path := strings.TrimPrefix(parsed.EscapedPath(), "/")
	switch {
	case strings.EqualFold(parsed.Host, storageHost):
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("signed url %q has no object path", raw)
		}
		bucket, object = parts[0], parts[1]
	case strings.HasSuffix(parsed.Host, "."+storageHost):
		bucket = strings.TrimSuffix(parsed.Host, "."+storageHost)
		object = path
	default:
		return "", "", fmt.Errorf("host %q is not a storage host", parsed.Host)
	}

	decoded, err := url.PathUnescape(object)
	if err != nil {
		return "", "", fmt.Errorf("decoding object key: %w", err)
	}
	if decoded == "" {
		return "", "", fmt.Errorf("signed url %q has no object path", raw)
	}
	return bucket, decoded, nil
}
