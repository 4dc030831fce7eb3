package tokenstore

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte(`{"access_token":"tok_abcdefghijklmnop"}`)

	sealed, err := seal(plaintext, "passphrase")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !isSealed(sealed) {
		t.Fatal("sealed output missing magic prefix")
	}
	if bytes.Contains(sealed, []byte("tok_abcdefghijklmnop")) {
		t.Error("sealed output contains plaintext")
	}

	opened, err := open(sealed, "passphrase")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("opened = %q, want %q", opened, plaintext)
	}
}

func TestSealUsesFreshSaltAndNonce(t *testing.T) {
	plaintext := []byte("same input")
	first, err := seal(plaintext, "pass")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	second, err := seal(plaintext, "pass")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("two seals of the same plaintext produced identical containers")
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	sealed, err := seal([]byte("payload"), "pass")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := open(sealed, "pass"); err == nil {
		t.Fatal("expected authentication failure for tampered container")
	}
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	sealed, err := seal([]byte("payload"), "right")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := open(sealed, "wrong"); err == nil {
		t.Fatal("expected failure for wrong passphrase")
	}
}

func TestOpenRejectsTruncatedContainer(t *testing.T) {
	sealed, err := seal([]byte("payload"), "pass")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	truncated := sealed[:len(sealedMagic)+saltSize]
	if _, err := open(truncated, "pass"); err == nil {
		t.Fatal("expected failure for truncated container")
	}
}

func TestIsSealed(t *testing.T) {
	if isSealed([]byte(`{"access_token":"x"}`)) {
		t.Error("plain JSON detected as sealed")
	}
	if isSealed(nil) {
		t.Error("nil detected as sealed")
	}
}
