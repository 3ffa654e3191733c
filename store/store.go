// Package store defines the persistence gateway consumed by the sync and
// dashboard layers. Two implementations exist: a PocketBase-backed store
// and an in-memory store, interchangeable behind the Gateway interface.
package store

import (
	"context"
	"fmt"
	"strconv"
)

// Collection names used across the application.
const (
	CollectionClients       = "clients"
	CollectionSubscriptions = "subscriptions"
	CollectionPlans         = "plans"
	CollectionUpdates       = "updates"
	CollectionSettings      = "settings"
)

// FieldEq is a single field = value constraint. FindMany ANDs them.
type FieldEq struct {
	Field string
	Value interface{}
}

// Eq builds a FieldEq constraint.
func Eq(field string, value interface{}) FieldEq {
	return FieldEq{Field: field, Value: value}
}

// Record is a stored document: an ID plus its field values.
type Record struct {
	ID     string
	Fields map[string]interface{}
}

// Get returns the raw value of a field (nil if absent).
func (r *Record) Get(field string) interface{} {
	if r == nil || r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}

// GetString returns a field as a string ("" if absent or non-string).
func (r *Record) GetString(field string) string {
	if s, ok := r.Get(field).(string); ok {
		return s
	}
	return ""
}

// GetFloat returns a field as a float64, converting numeric strings and
// integer values (0 on failure).
func (r *Record) GetFloat(field string) float64 {
	switch v := r.Get(field).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

// GetInt returns a field as an int (0 on failure).
func (r *Record) GetInt(field string) int {
	return int(r.GetFloat(field))
}

// Clone returns a deep-enough copy of the record (field map copied).
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	fields := make(map[string]interface{}, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return &Record{ID: r.ID, Fields: fields}
}

// Gateway is the storage-agnostic persistence contract. FindOne returns
// (nil, nil) when no record matches. All failures surface as *StorageError.
type Gateway interface {
	FindOne(ctx context.Context, collection string, eq FieldEq) (*Record, error)
	FindMany(ctx context.Context, collection string, eqs ...FieldEq) ([]*Record, error)
	Insert(ctx context.Context, collection string, fields map[string]interface{}) (*Record, error)
	Update(ctx context.Context, collection string, id string, fields map[string]interface{}) (*Record, error)
	GetAll(ctx context.Context, collection string) ([]*Record, error)
}

// StorageError wraps a failure from a Gateway implementation.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, collection string, err error) error {
	return &StorageError{Op: op, Collection: collection, Err: err}
}
