package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestFileRecord_ServerRecordRoundTrip(t *testing.T) {
	rec := FileRecord{
		ID:          "pitch_1",
		Name:        "Deck",
		UploadDate:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		SecureToken: "tok",
		FileURL:     "https://ex.com/deck.pdf",
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var got FileRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Supplied != nil {
		t.Errorf("Supplied = %v, want nil for a server-shaped record", got.Supplied)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip = %+v, want %+v", got, rec)
	}
}

func TestFileRecord_KeepsSuppliedShape(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unmodeled member", `{"id":"a","name":"A","fileUrl":"https://ex.com/a","createdAt":"2024-01-01T00:00:00Z"}`},
		{"omitted defaults", `{"id":"a","name":"A"}`},
		{"explicit empty string", `{"id":"a","name":"A","serverPath":"","size":0,"accessCount":0,"isLocalFile":false}`},
		{"timestamp layout", `{"id":"a","name":"A","size":0,"accessCount":0,"isLocalFile":false,"uploadDate":"2024-01-01T10:00:00.000+02:00"}`},
		{"null member", `{"id":"a","name":"A","lastAccessed":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec FileRecord
			if err := json.Unmarshal([]byte(tt.in), &rec); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if rec.ID != "a" || rec.Name != "A" {
				t.Errorf("fields = %+v", rec)
			}

			out, err := json.Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}

			var got, want map[string]any
			json.Unmarshal(out, &got)
			json.Unmarshal([]byte(tt.in), &want)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Marshal() = %s, want %s", out, tt.in)
			}
		})
	}
}

func TestFileRecord_ServerChangesOverrideSuppliedMembers(t *testing.T) {
	var rec FileRecord
	in := `{"id":"a","name":"A","accessCount":2,"uploadDate":"2024-01-01T00:00:00.000Z","note":"x"}`
	if err := json.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	accessed := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rec.AccessCount++
	rec.LastAccessed = accessed

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var got map[string]any
	json.Unmarshal(out, &got)
	want := map[string]any{
		"id":           "a",
		"name":         "A",
		"accessCount":  float64(3),
		"uploadDate":   "2024-01-01T00:00:00.000Z",
		"lastAccessed": "2024-02-01T00:00:00Z",
		"note":         "x",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Marshal() = %v, want %v", got, want)
	}
}

func TestFileRecord_NormalizedTimestampKeepsSuppliedLayout(t *testing.T) {
	var rec FileRecord
	in := `{"id":"a","name":"A","uploadDate":"2024-01-01T10:00:00+02:00"}`
	if err := json.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	// storage backends hand timestamps back in UTC
	rec.UploadDate = rec.UploadDate.UTC()

	out, _ := json.Marshal(rec)
	var got map[string]any
	json.Unmarshal(out, &got)
	if got["uploadDate"] != "2024-01-01T10:00:00+02:00" {
		t.Errorf("uploadDate = %v, want the supplied layout", got["uploadDate"])
	}
}

func TestFileRecord_SuppliedEncoding(t *testing.T) {
	var rec FileRecord
	if err := json.Unmarshal([]byte(`{"id":"a","name":"A","tags":["x"]}`), &rec); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	encoded, err := rec.EncodeSupplied()
	if err != nil {
		t.Fatalf("EncodeSupplied() error: %v", err)
	}
	if encoded == "" {
		t.Fatal("EncodeSupplied() = empty for a supplied record")
	}

	var restored FileRecord
	if err := restored.DecodeSupplied(encoded); err != nil {
		t.Fatalf("DecodeSupplied() error: %v", err)
	}
	if !reflect.DeepEqual(restored.Supplied, rec.Supplied) {
		t.Errorf("Supplied = %v, want %v", restored.Supplied, rec.Supplied)
	}

	server := FileRecord{ID: "b"}
	if encoded, _ := server.EncodeSupplied(); encoded != "" {
		t.Errorf("EncodeSupplied() = %q for a server record, want empty", encoded)
	}
	if err := server.DecodeSupplied(""); err != nil || server.Supplied != nil {
		t.Errorf("DecodeSupplied(\"\") = %v, Supplied %v", err, server.Supplied)
	}
}

func TestFileRecord_UnmarshalNull(t *testing.T) {
	rec := FileRecord{ID: "keep"}
	if err := json.Unmarshal([]byte("null"), &rec); err != nil {
		t.Fatalf("Unmarshal(null) error: %v", err)
	}
	if rec.ID != "keep" {
		t.Errorf("Unmarshal(null) changed the record: %+v", rec)
	}
}
