package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// UpstashConfig holds connection settings for an Upstash Vector index.
type UpstashConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// UpstashIndex implements VectorIndex over the Upstash Vector REST API.
type UpstashIndex struct {
	url    string
	token  string
	client *http.Client
}

// NewUpstashIndex creates a REST client for an Upstash Vector index.
func NewUpstashIndex(cfg UpstashConfig) (*UpstashIndex, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: index URL is required", ErrRetrievalFailed)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &UpstashIndex{
		url:    strings.TrimRight(cfg.URL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type upstashQuery struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

// Query performs a top-K similarity search with metadata included.
func (u *UpstashIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	body, err := u.post(ctx, "/query", upstashQuery{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	return ParseMatches(body)
}

// Upsert writes records in a single request.
func (u *UpstashIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	_, err := u.post(ctx, "/upsert", records)
	return err
}

// Close is a no-op; the REST client holds no connection state.
func (u *UpstashIndex) Close() error {
	return nil
}

func (u *UpstashIndex) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrRetrievalFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrRetrievalFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request failed: %v", ErrRetrievalFailed, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrRetrievalFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrRetrievalFailed, path, resp.StatusCode, msg)
	}

	return respBody, nil
}

// ParseMatches normalizes a vector query response into one ordered []Match.
//
// Accepted shapes, optionally wrapped in {"result": ...}:
//
//	[ {match}, ... ]                      bare array
//	{ "matches": [ {match}, ... ] }       wrapped array
//	[ [ {match}, ... ], ... ]             batch of arrays
//	[ { "matches": [...] }, ... ]         batch of wrapped arrays
//
// Batches are flattened in order. A null result is an empty match set.
func ParseMatches(body []byte) ([]Match, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrRetrievalFailed)
	}

	root := gjson.ParseBytes(body)
	if root.IsObject() {
		if msg := root.Get("error"); msg.Exists() && msg.Type != gjson.Null {
			return nil, fmt.Errorf("%w: index error: %s", ErrRetrievalFailed, msg.String())
		}
		if result := root.Get("result"); result.Exists() {
			root = result
		}
	}

	if root.Type == gjson.Null {
		return []Match{}, nil
	}

	var matches []Match
	if err := collectMatches(root, 0, &matches); err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []Match{}
	}

	return matches, nil
}

func collectMatches(node gjson.Result, depth int, out *[]Match) error {
	switch {
	case node.IsObject() && node.Get("matches").Exists():
		inner := node.Get("matches")
		if inner.Type == gjson.Null {
			return nil
		}
		if !inner.IsArray() {
			return fmt.Errorf("%w: unexpected matches field of type %s", ErrRetrievalFailed, inner.Type)
		}
		return collectMatches(inner, depth+1, out)

	case node.IsArray():
		for _, item := range node.Array() {
			switch {
			case item.IsArray(), item.IsObject() && item.Get("matches").Exists():
				// Batch element. Nesting stops one level down.
				if depth > 0 {
					return fmt.Errorf("%w: match batch nested too deeply", ErrRetrievalFailed)
				}
				if err := collectMatches(item, depth+1, out); err != nil {
					return err
				}
			case item.IsObject():
				*out = append(*out, parseMatch(item))
			default:
				return fmt.Errorf("%w: unexpected match entry of type %s", ErrRetrievalFailed, item.Type)
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unexpected response shape", ErrRetrievalFailed)
	}
}

func parseMatch(item gjson.Result) Match {
	return Match{
		ID:    item.Get("id").String(),
		Score: float32(item.Get("score").Float()),
		Metadata: Metadata{
			Title:   item.Get("metadata.title").String(),
			Content: item.Get("metadata.content").String(),
		},
	}
}
