package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryFindOneMissingIsNil(t *testing.T) {
	st := NewMemory()

	record, err := st.FindOne(context.Background(), CollectionClients, Eq("email", "nobody@example.com"))
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if record != nil {
		t.Errorf("FindOne on empty store = %+v, want nil", record)
	}
}

func TestMemoryInsertAndFind(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	inserted, err := st.Insert(ctx, CollectionClients, map[string]interface{}{
		"email":       "a@example.com",
		"client_code": "C-251234",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted.ID == "" {
		t.Error("Insert did not assign an ID")
	}

	found, err := st.FindOne(ctx, CollectionClients, Eq("email", "a@example.com"))
	if err != nil || found == nil {
		t.Fatalf("FindOne after insert: %v, %v", found, err)
	}
	if found.GetString("client_code") != "C-251234" {
		t.Errorf("client_code = %q", found.GetString("client_code"))
	}
}

func TestMemoryFindManyAndsConstraints(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	_, _ = st.Insert(ctx, CollectionSubscriptions, map[string]interface{}{
		"client_code": "C-1", "start_date": "2024-11-01T00:00:00Z",
	})
	_, _ = st.Insert(ctx, CollectionSubscriptions, map[string]interface{}{
		"client_code": "C-1", "start_date": "2025-01-01T00:00:00Z",
	})
	_, _ = st.Insert(ctx, CollectionSubscriptions, map[string]interface{}{
		"client_code": "C-2", "start_date": "2024-11-01T00:00:00Z",
	})

	matches, err := st.FindMany(ctx, CollectionSubscriptions,
		Eq("client_code", "C-1"), Eq("start_date", "2024-11-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("got %d matches, want 1", len(matches))
	}
}

func TestMemoryUpdate(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	record, _ := st.Insert(ctx, CollectionClients, map[string]interface{}{
		"email": "a@example.com", "weight": "92",
	})

	updated, err := st.Update(ctx, CollectionClients, record.ID, map[string]interface{}{
		"weight": "88",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.GetString("weight") != "88" {
		t.Errorf("weight = %q", updated.GetString("weight"))
	}
	if updated.GetString("email") != "a@example.com" {
		t.Error("partial update dropped untouched field")
	}
}

func TestMemoryUpdateMissingRecord(t *testing.T) {
	st := NewMemory()

	_, err := st.Update(context.Background(), CollectionClients, "m999999", map[string]interface{}{
		"weight": "88",
	})

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error = %v, want StorageError", err)
	}
}

func TestMemoryClonesRecords(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	record, _ := st.Insert(ctx, CollectionClients, map[string]interface{}{
		"email": "a@example.com",
	})
	record.Fields["email"] = "tampered@example.com"

	stored, _ := st.FindOne(ctx, CollectionClients, Eq("email", "a@example.com"))
	if stored == nil {
		t.Fatal("mutating a returned record leaked into the store")
	}
}

func TestMemoryLooseValueMatching(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	_, _ = st.Insert(ctx, CollectionSubscriptions, map[string]interface{}{
		"duration": 3,
	})

	// spreadsheet values arrive as float64, stored values may be int
	found, err := st.FindOne(ctx, CollectionSubscriptions, Eq("duration", float64(3)))
	if err != nil || found == nil {
		t.Errorf("numeric representations should match: %v, %v", found, err)
	}
}
