package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Record is one document of a collection as returned by List, Find and Subscribe.
type Record struct {
	Key  string
	Data json.RawMessage
}

// Decode unmarshals the record body into out.
func (r Record) Decode(out any) error {
	return json.Unmarshal(r.Data, out)
}

// DocumentStore is the realtime document store primitive set consumed by the core.
// Paths have the form "collection/id".
type DocumentStore interface {
	Create(ctx context.Context, collection string, data any) (string, error)
	Read(ctx context.Context, path string, out any) error
	Set(ctx context.Context, path string, data any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]Record, error)
	// Find returns the documents whose top-level field equals value.
	Find(ctx context.Context, collection, field, value string) ([]Record, error)
	// Subscribe delivers the whole collection once immediately and again after
	// every change. Deliveries are full snapshots, never diffs.
	Subscribe(ctx context.Context, collection string, fn func([]Record)) (func(), error)
}

func Path(collection, id string) string {
	return collection + "/" + id
}

func splitPath(path string) (string, string, error) {
	collection, id, ok := strings.Cut(strings.Trim(path, "/"), "/")
	if !ok || collection == "" || id == "" || strings.Contains(id, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return collection, id, nil
}

// newID returns a time-ordered key so that key order follows creation order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
}

// mergeFields applies a shallow top-level patch to a JSON object.
func mergeFields(doc json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("unmarshal document failed: %w", err)
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s failed: %w", k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

func fieldEquals(doc json.RawMessage, field, value string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil {
		return false
	}
	raw, ok := obj[field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == value
}

func filterRecords(records []Record, field, value string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if fieldEquals(r.Data, field, value) {
			out = append(out, r)
		}
	}
	return out
}
