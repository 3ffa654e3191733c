package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// PocketBase implements Gateway on top of a PocketBase app instance.
type PocketBase struct {
	app core.App
}

// NewPocketBase creates a PocketBase-backed gateway.
func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

// buildFilter turns FieldEq constraints into a parameterized filter
// expression so spreadsheet-sourced values can't break the query.
func buildFilter(eqs []FieldEq) (string, dbx.Params) {
	if len(eqs) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(eqs))
	params := dbx.Params{}
	for i, eq := range eqs {
		key := fmt.Sprintf("p%d", i)
		parts = append(parts, fmt.Sprintf("%s = {:%s}", eq.Field, key))
		params[key] = eq.Value
	}
	return strings.Join(parts, " && "), params
}

// FindOne returns the first record matching the constraint, or nil.
func (s *PocketBase) FindOne(_ context.Context, collection string, eq FieldEq) (*Record, error) {
	filter, params := buildFilter([]FieldEq{eq})
	records, err := s.app.FindRecordsByFilter(collection, filter, "", 1, 0, params)
	if err != nil {
		return nil, storageErr("findOne", collection, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return s.toRecord(collection, records[0])
}

// FindMany returns all records matching the ANDed constraints.
func (s *PocketBase) FindMany(_ context.Context, collection string, eqs ...FieldEq) ([]*Record, error) {
	filter, params := buildFilter(eqs)
	records, err := s.app.FindRecordsByFilter(collection, filter, "", 0, 0, params)
	if err != nil {
		return nil, storageErr("findMany", collection, err)
	}
	return s.toRecords(collection, records)
}

// Insert creates a new record with the given fields.
func (s *PocketBase) Insert(_ context.Context, collection string, fields map[string]interface{}) (*Record, error) {
	col, err := s.app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, storageErr("insert", collection, err)
	}
	record := core.NewRecord(col)
	for field, value := range fields {
		record.Set(field, value)
	}
	if err := s.app.Save(record); err != nil {
		return nil, storageErr("insert", collection, err)
	}
	return s.toRecord(collection, record)
}

// Update applies a partial update to an existing record.
func (s *PocketBase) Update(_ context.Context, collection, id string, fields map[string]interface{}) (*Record, error) {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		return nil, storageErr("update", collection, err)
	}
	for field, value := range fields {
		record.Set(field, value)
	}
	if err := s.app.Save(record); err != nil {
		return nil, storageErr("update", collection, err)
	}
	return s.toRecord(collection, record)
}

// GetAll returns every record in the collection.
func (s *PocketBase) GetAll(_ context.Context, collection string) ([]*Record, error) {
	records, err := s.app.FindRecordsByFilter(collection, "", "", 0, 0)
	if err != nil {
		return nil, storageErr("getAll", collection, err)
	}
	return s.toRecords(collection, records)
}

func (s *PocketBase) toRecord(collection string, record *core.Record) (*Record, error) {
	col, err := s.app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, storageErr("read", collection, err)
	}
	fields := make(map[string]interface{})
	for _, f := range col.Fields {
		name := f.GetName()
		fields[name] = record.Get(name)
	}
	return &Record{ID: record.Id, Fields: fields}, nil
}

func (s *PocketBase) toRecords(collection string, records []*core.Record) ([]*Record, error) {
	out := make([]*Record, 0, len(records))
	for _, record := range records {
		r, err := s.toRecord(collection, record)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
