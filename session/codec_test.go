package session

import (
	"crypto/sha256"
	"strings"
	"testing"
)

func sampleSession() *Session {
	return &Session{
		ID:          "6f1d9d6e-0000-4000-8000-000000000001",
		AccountID:   "acct-42",
		Role:        "admin",
		AccessHash:  sha256.Sum256([]byte("access")),
		RefreshHash: sha256.Sum256([]byte("refresh")),
		CreatedAt:   1748779200,
		ExpiresAt:   1748865600,
	}
}

func TestCodecRoundtrip(t *testing.T) {
	want := sampleSession()

	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if *got != *want {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestCodecEmptyRole(t *testing.T) {
	want := sampleSession()
	want.Role = ""

	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Role != "" {
		t.Fatalf("role = %q", got.Role)
	}
}

func TestEncodeRejectsOversizedField(t *testing.T) {
	s := sampleSession()
	s.AccountID = strings.Repeat("x", 256)
	if _, err := Encode(s); err == nil {
		t.Fatal("expected error for oversized field")
	}
}

func TestDecodeRejectsBadData(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
	if _, err := Decode([]byte{99}); err == nil {
		t.Fatal("expected error for unknown version")
	}

	data, err := Encode(sampleSession())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(data[:len(data)/2]); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
