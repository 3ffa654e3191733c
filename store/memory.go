package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Gateway. It backs the local (non-PocketBase)
// deployment mode and doubles as the test store. Ops counts every gateway
// call so tests can assert that a failed sync issued no persistence work.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]*Record
	seq         int
	ops         int
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]*Record)}
}

// Ops returns the number of gateway operations performed so far.
func (s *Memory) Ops() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops
}

// valueEq compares loosely the way a document store matches: exact match
// first, then string rendering (so 1 and 1.0 and "1" collide, which is
// what spreadsheet-sourced values need).
func valueEq(a, b interface{}) bool {
	if a == b {
		return true
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func (s *Memory) match(record *Record, eqs []FieldEq) bool {
	for _, eq := range eqs {
		if !valueEq(record.Get(eq.Field), eq.Value) {
			return false
		}
	}
	return true
}

// FindOne returns the first matching record, or nil.
func (s *Memory) FindOne(_ context.Context, collection string, eq FieldEq) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops++
	for _, record := range s.collections[collection] {
		if s.match(record, []FieldEq{eq}) {
			return record.Clone(), nil
		}
	}
	return nil, nil
}

// FindMany returns all records matching the ANDed constraints.
func (s *Memory) FindMany(_ context.Context, collection string, eqs ...FieldEq) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops++
	var out []*Record
	for _, record := range s.collections[collection] {
		if s.match(record, eqs) {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

// Insert stores a new record and assigns it an ID.
func (s *Memory) Insert(_ context.Context, collection string, fields map[string]interface{}) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops++
	s.seq++
	record := &Record{
		ID:     fmt.Sprintf("m%06d", s.seq),
		Fields: make(map[string]interface{}, len(fields)),
	}
	for k, v := range fields {
		record.Fields[k] = v
	}
	s.collections[collection] = append(s.collections[collection], record)
	return record.Clone(), nil
}

// Update applies a partial update to an existing record.
func (s *Memory) Update(_ context.Context, collection, id string, fields map[string]interface{}) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops++
	for _, record := range s.collections[collection] {
		if record.ID == id {
			for k, v := range fields {
				record.Fields[k] = v
			}
			return record.Clone(), nil
		}
	}
	return nil, storageErr("update", collection, fmt.Errorf("record %s not found", id))
}

// GetAll returns every record in the collection.
func (s *Memory) GetAll(_ context.Context, collection string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops++
	records := s.collections[collection]
	out := make([]*Record, 0, len(records))
	for _, record := range records {
		out = append(out, record.Clone())
	}
	return out, nil
}
