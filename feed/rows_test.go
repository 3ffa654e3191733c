package feed

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRowUnmarshalPreservesKeyOrder(t *testing.T) {
	payload := `{"الاسم":"أحمد","Email":"a@b.com","السن":28,"نشط":true,"فارغ":null}`

	var row Row
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	wantKeys := []string{"الاسم", "Email", "السن", "نشط", "فارغ"}
	if !reflect.DeepEqual(row.Keys(), wantKeys) {
		t.Errorf("Keys() = %v, want %v", row.Keys(), wantKeys)
	}

	if v, _ := row.Get("السن"); v != float64(28) {
		t.Errorf("numeric value = %v (%T), want float64 28", v, v)
	}
	if v, _ := row.Get("نشط"); v != true {
		t.Errorf("bool value = %v", v)
	}
	if v, ok := row.Get("فارغ"); !ok || v != nil {
		t.Errorf("null value = %v, ok = %v", v, ok)
	}
}

func TestRowUnmarshalRejectsNonObject(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`[1,2,3]`), &row); err == nil {
		t.Error("array accepted as a row")
	}
}

func TestRowMarshalKeepsColumnOrder(t *testing.T) {
	row := NewRow()
	row.Set("b", float64(2))
	row.Set("a", "one")
	row.Set("c", nil)

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"b":2,"a":"one","c":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestRowSetKeepsFirstSeenOrder(t *testing.T) {
	row := NewRow()
	row.Set("a", 1)
	row.Set("b", 2)
	row.Set("a", 3) // overwrite must not reorder

	if !reflect.DeepEqual(row.Keys(), []string{"a", "b"}) {
		t.Errorf("Keys() = %v", row.Keys())
	}
	if v, _ := row.Get("a"); v != 3 {
		t.Errorf("a = %v, want 3", v)
	}
	if row.Len() != 2 {
		t.Errorf("Len() = %d, want 2", row.Len())
	}
}

func TestRowDecodeBatch(t *testing.T) {
	payload := `{"success":true,"clients":[{"x":"1"},{"y":"2"}]}`

	var envelope struct {
		Success bool   `json:"success"`
		Clients []*Row `json:"clients"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(envelope.Clients) != 2 {
		t.Fatalf("decoded %d rows, want 2", len(envelope.Clients))
	}
	if v, _ := envelope.Clients[1].Get("y"); v != "2" {
		t.Errorf("second row y = %v", v)
	}
}
