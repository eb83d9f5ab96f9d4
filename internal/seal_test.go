package internal

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundtrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	plaintext := []byte("JBSWY3DPEHPK3PXP")

	sealed, err := SealSecret(key, plaintext)
	if err != nil {
		t.Fatalf("SealSecret: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed output leaks the plaintext")
	}

	opened, err := OpenSecret(key, sealed)
	if err != nil {
		t.Fatalf("OpenSecret: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("opened = %q, want %q", opened, plaintext)
	}

	// Two seals of the same plaintext differ by nonce.
	sealed2, err := SealSecret(key, plaintext)
	if err != nil {
		t.Fatalf("SealSecret: %v", err)
	}
	if bytes.Equal(sealed, sealed2) {
		t.Fatal("nonce reuse: identical ciphertexts")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	sealed, err := SealSecret(key, []byte("JBSWY3DPEHPK3PXP"))
	if err != nil {
		t.Fatalf("SealSecret: %v", err)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := OpenSecret(key, tampered); err == nil {
		t.Fatal("tampered ciphertext accepted")
	}

	wrongKey := []byte("ffffffffffffffffffffffffffffffff")
	if _, err := OpenSecret(wrongKey, sealed); err == nil {
		t.Fatal("wrong key accepted")
	}

	if _, err := OpenSecret(key, sealed[:4]); err == nil {
		t.Fatal("truncated ciphertext accepted")
	}
	if _, err := SealSecret([]byte("short"), []byte("x")); err == nil {
		t.Fatal("short key accepted")
	}
}
