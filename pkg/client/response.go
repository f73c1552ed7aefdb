package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupportedShape is returned when a body is neither a JSON array nor a JSON object.
var ErrUnsupportedShape = errors.New("unsupported response shape")

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v. An empty body decodes as an empty object.
func (r *Response) Decode(v any) error {
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Payload parses the body into its shape variant.
func (r *Response) Payload() (Payload, error) {
	return ParsePayload(r.Body)
}

// PayloadKind tags the shape of a response body.
type PayloadKind int

const (
	// PayloadEmpty is an empty or null body.
	PayloadEmpty PayloadKind = iota

	// PayloadCollection is a JSON array, or an object carrying one under "data" or "items".
	PayloadCollection

	// PayloadSingle is any other JSON object.
	PayloadSingle
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadEmpty:
		return "empty"
	case PayloadCollection:
		return "collection"
	case PayloadSingle:
		return "single"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}

// Payload is a response body classified once at the boundary.
// Items is set for PayloadCollection, Item for PayloadSingle.
type Payload struct {
	Kind  PayloadKind
	Items []json.RawMessage
	Item  json.RawMessage
}

// collectionKeys are checked in order on object bodies.
var collectionKeys = []string{"data", "items"}

// ParsePayload classifies a JSON body.
func ParsePayload(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return Payload{Kind: PayloadEmpty}, nil
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return Payload{}, fmt.Errorf("parse collection: %w", err)
		}
		return Payload{Kind: PayloadCollection, Items: items}, nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return Payload{}, fmt.Errorf("parse object: %w", err)
		}
		for _, key := range collectionKeys {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] != '[' {
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return Payload{}, fmt.Errorf("parse %q collection: %w", key, err)
			}
			return Payload{Kind: PayloadCollection, Items: items}, nil
		}
		return Payload{Kind: PayloadSingle, Item: json.RawMessage(body)}, nil
	}

	return Payload{}, fmt.Errorf("%w: body starts with %q", ErrUnsupportedShape, body[0])
}

// parseErrorBody returns the JSON error payload, the raw text, or nil.
func parseErrorBody(body []byte) any {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	return parsed
}
