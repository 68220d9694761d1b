// Package rest talks to a json-server style record API:
// GET/POST /{collection}, GET/PUT/PATCH/DELETE /{collection}/{id}.
// The version token travels inside the body as "version".
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"parking_network/internal/repository"
)

const versionField = "version"

type Store struct {
	baseURL string
	client  *http.Client
}

var _ repository.RecordStore = (*Store)(nil)

func New(baseURL string, client *http.Client) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (s *Store) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("RecordStore.%s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("RecordStore.%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("RecordStore.%s: %w: %w", op, repository.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("RecordStore.%s: %w: %w", op, repository.ErrStoreUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, repository.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("RecordStore.%s: %w: %w", op, repository.ErrStoreUnavailable, &statusError{resp.StatusCode, string(data)})
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("RecordStore.%s: %w", op, &statusError{resp.StatusCode, string(data)})
	}
	return data, nil
}

func path(collection string, id ...string) string {
	p := "/" + url.PathEscape(collection)
	for _, part := range id {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func toRecord(raw json.RawMessage) (repository.Record, error) {
	var head struct {
		ID      json.RawMessage `json:"id"`
		Version int64           `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return repository.Record{}, fmt.Errorf("decode record: %w", err)
	}
	id := strings.Trim(string(head.ID), `"`)
	version := head.Version
	if version == 0 {
		// Documents written before versioning are treated as version 1.
		version = 1
	}
	return repository.Record{ID: id, Version: version, Body: raw}, nil
}

func toRecords(data []byte) ([]repository.Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	out := make([]repository.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := toRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func withVersion(id string, version int64, body json.RawMessage) (map[string]any, error) {
	doc := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
	}
	doc["id"] = id
	doc[versionField] = version
	return doc, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]repository.Record, error) {
	data, err := s.do(ctx, "List", http.MethodGet, path(collection), nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []repository.Record{}, nil
		}
		return nil, err
	}
	return toRecords(data)
}

func (s *Store) Find(ctx context.Context, collection, field, value string) ([]repository.Record, error) {
	q := url.Values{field: []string{value}}
	data, err := s.do(ctx, "Find", http.MethodGet, path(collection)+"?"+q.Encode(), nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []repository.Record{}, nil
		}
		return nil, err
	}
	recs, err := toRecords(data)
	if err != nil {
		return nil, err
	}
	// Servers may match loosely; keep only exact string matches.
	out := recs[:0]
	for _, rec := range recs {
		if repository.FieldEquals(rec.Body, field, value) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (repository.Record, error) {
	data, err := s.do(ctx, "Get", http.MethodGet, path(collection, id), nil)
	if err != nil {
		return repository.Record{}, err
	}
	return toRecord(data)
}

func (s *Store) Create(ctx context.Context, collection string, rec repository.Record) (repository.Record, error) {
	if _, err := s.Get(ctx, collection, rec.ID); err == nil {
		return repository.Record{}, fmt.Errorf("%w: %s/%s", repository.ErrDuplicateEntry, collection, rec.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return repository.Record{}, err
	}
	doc, err := withVersion(rec.ID, 1, rec.Body)
	if err != nil {
		return repository.Record{}, err
	}
	data, err := s.do(ctx, "Create", http.MethodPost, path(collection), doc)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusConflict {
			return repository.Record{}, fmt.Errorf("%w: %s/%s", repository.ErrDuplicateEntry, collection, rec.ID)
		}
		return repository.Record{}, err
	}
	return toRecord(data)
}

// Replace checks the stored version before the PUT. The protocol has no
// conditional write, so callers must hold the per-key lock.
func (s *Store) Replace(ctx context.Context, collection, id string, expectedVersion int64, body json.RawMessage) (repository.Record, error) {
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return repository.Record{}, err
	}
	if cur.Version != expectedVersion {
		return repository.Record{}, fmt.Errorf("%w: %s/%s at version %d, expected %d", repository.ErrStaleWrite, collection, id, cur.Version, expectedVersion)
	}
	doc, err := withVersion(id, expectedVersion+1, body)
	if err != nil {
		return repository.Record{}, err
	}
	data, err := s.do(ctx, "Replace", http.MethodPut, path(collection, id), doc)
	if err != nil {
		return repository.Record{}, err
	}
	return toRecord(data)
}

func (s *Store) Patch(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]any) (repository.Record, error) {
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return repository.Record{}, err
	}
	if cur.Version != expectedVersion {
		return repository.Record{}, fmt.Errorf("%w: %s/%s at version %d, expected %d", repository.ErrStaleWrite, collection, id, cur.Version, expectedVersion)
	}
	patch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch[versionField] = expectedVersion + 1
	data, err := s.do(ctx, "Patch", http.MethodPatch, path(collection, id), patch)
	if err != nil {
		return repository.Record{}, err
	}
	return toRecord(data)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.do(ctx, "Delete", http.MethodDelete, path(collection, id), nil)
	return err
}

func (s *Store) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}
