package types

import (
	"encoding/json"
	"testing"
)

func TestNullableStringUnmarshal(t *testing.T) {
	type payload struct {
		Location NullableString `json:"location_name"`
	}

	var got payload
	if err := json.Unmarshal([]byte(`{"location_name": "Brooklyn"}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !got.Location.Valid || got.Location.Value == nil || *got.Location.Value != "Brooklyn" {
		t.Fatalf("expected Brooklyn, got %+v", got.Location)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{"location_name": null}`), &got); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !got.Location.Valid || got.Location.Value != nil {
		t.Fatalf("expected null to be valid but nil, got %+v", got.Location)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{}`), &got); err != nil {
		t.Fatalf("unmarshal missing: %v", err)
	}
	if got.Location.Valid {
		t.Fatalf("expected invalid flag for missing field, got %+v", got.Location)
	}

	if err := json.Unmarshal([]byte(`{"location_name": 7}`), &got); err == nil {
		t.Fatalf("expected error for non-string value")
	}
}

func TestNullableStringApply(t *testing.T) {
	old := "Queens"
	dst := &old

	NullableString{}.Apply(&dst)
	if dst == nil || *dst != "Queens" {
		t.Fatalf("missing field must not change the value")
	}

	next := "Harlem"
	NullableString{Valid: true, Value: &next}.Apply(&dst)
	if dst == nil || *dst != "Harlem" {
		t.Fatalf("expected Harlem got %v", dst)
	}

	NullableString{Valid: true}.Apply(&dst)
	if dst != nil {
		t.Fatalf("null must clear the value")
	}
}
