package object

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAEADCipherRoundTrip(t *testing.T) {
	c, err := NewAEADCipher(testKey())
	if err != nil {
		t.Fatalf("NewAEADCipher: %v", err)
	}

	plaintext := []byte("secret memory contents")
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt: got %q, want %q", got, plaintext)
	}
}

func TestAEADCipherKeySize(t *testing.T) {
	if _, err := NewAEADCipher([]byte("short")); err == nil {
		t.Error("NewAEADCipher accepted a short key")
	}
}

func TestAEADCipherRejectsTampering(t *testing.T) {
	c, err := NewAEADCipher(testKey())
	if err != nil {
		t.Fatalf("NewAEADCipher: %v", err)
	}
	sealed, err := c.Encrypt([]byte("tamper me"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := c.Decrypt(sealed); err == nil {
		t.Error("Decrypt accepted tampered ciphertext")
	}
}

func TestStoreWithCipherRoundTrip(t *testing.T) {
	c, err := NewAEADCipher(testKey())
	if err != nil {
		t.Fatalf("NewAEADCipher: %v", err)
	}
	s := NewStore(t.TempDir(), WithCipher(c))

	data := []byte("encrypted at rest")
	h, err := s.Write(KindBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read(h, KindBlob)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read: got %q, want %q", got, data)
	}
}

func TestStoreCipherLegacyPlaintextFallback(t *testing.T) {
	// Objects written before encryption was enabled stay readable after
	// a cipher is configured.
	dir := t.TempDir()
	plain := NewStore(dir)
	data := []byte("written before encryption")
	h, err := plain.Write(KindBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	c, err := NewAEADCipher(testKey())
	if err != nil {
		t.Fatalf("NewAEADCipher: %v", err)
	}
	sealed := NewStore(dir, WithCipher(c))
	got, err := sealed.Read(h, KindBlob)
	if err != nil {
		t.Fatalf("Read with cipher: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read with cipher: got %q, want %q", got, data)
	}
}

func TestStoreEncryptedUnreadableWithoutCipher(t *testing.T) {
	dir := t.TempDir()
	c, err := NewAEADCipher(testKey())
	if err != nil {
		t.Fatalf("NewAEADCipher: %v", err)
	}
	sealed := NewStore(dir, WithCipher(c))
	h, err := sealed.Write(KindBlob, []byte("sealed"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	plain := NewStore(dir)
	if _, err := plain.Read(h, KindBlob); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Read without cipher: got %v, want ErrCorrupt", err)
	}
}
