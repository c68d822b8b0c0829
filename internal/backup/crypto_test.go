package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.db")
	enc := filepath.Join(dir, "plain.db.enc")
	dec := filepath.Join(dir, "restored.db")

	original := []byte("snapshot bytes, not actually sqlite")
	if err := os.WriteFile(src, original, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := encryptFile(src, enc, "correct horse"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	encrypted, err := os.ReadFile(enc)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(encrypted, original) {
		t.Error("ciphertext contains plaintext")
	}
	if len(encrypted) <= saltSize+nonceSize {
		t.Errorf("ciphertext too small: %d bytes", len(encrypted))
	}

	if err := decryptFile(enc, dec, "correct horse"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	restored, err := os.ReadFile(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("round trip mismatch")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain")
	enc := filepath.Join(dir, "enc")

	if err := os.WriteFile(src, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := encryptFile(src, enc, "right"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if err := decryptFile(enc, filepath.Join(dir, "out"), "wrong"); err == nil {
		t.Error("expected decryption failure with wrong passphrase")
	}
}

func TestDecryptTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	enc := filepath.Join(dir, "tiny")
	if err := os.WriteFile(enc, []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := decryptFile(enc, filepath.Join(dir, "out"), "pass"); err == nil {
		t.Error("expected error for truncated file")
	}
}

func TestEncryptUniqueSalts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain")
	if err := os.WriteFile(src, []byte("same input"), 0o600); err != nil {
		t.Fatal(err)
	}

	enc1 := filepath.Join(dir, "a")
	enc2 := filepath.Join(dir, "b")
	if err := encryptFile(src, enc1, "pass"); err != nil {
		t.Fatal(err)
	}
	if err := encryptFile(src, enc2, "pass"); err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(enc1)
	b, _ := os.ReadFile(enc2)
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("two encryptions reused a salt")
	}
}
