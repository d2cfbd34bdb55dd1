package gcsevent

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	ObjectFinalizeEvent  = "OBJECT_FINALIZE"
	PayloadFormatJSONAPI = "JSON_API_V1"
)

// Attributes are the notification attributes GCS stamps on Pub/Sub messages.
type Attributes struct {
	EventType     string
	BucketID      string
	ObjectID      string
	PayloadFormat string
}

// Payload is the JSON API object resource carried in the message body.
type Payload struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// SizeBytes parses the string-typed size field, returning 0 when absent.
func (p Payload) SizeBytes() int64 {
	if strings.TrimSpace(p.Size) == "" {
		return 0
	}
	n, err := strconv.ParseInt(p.Size, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseAttributes extracts the known notification attributes.
func ParseAttributes(attrs map[string]string) Attributes {
	return Attributes{
		EventType:     attrs["eventType"],
		BucketID:      attrs["bucketId"],
		ObjectID:      attrs["objectId"],
		PayloadFormat: attrs["payloadFormat"],
	}
}

// DecodePayload returns the raw JSON body, unwrapping base64 when present.
func DecodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}

// Unmarshal decodes the message body into a Payload.
func Unmarshal(data []byte) (Payload, error) {
	raw, err := DecodePayload(data)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}
