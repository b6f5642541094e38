package encryption

import "testing"

func TestRoundTrip(t *testing.T) {
	enc, key, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	if key == "" {
		t.Fatal("expected generated key")
	}

	ciphertext, err := enc.Encrypt("refresh-token-value")
	if err != nil {
		t.Fatalf("encrypting: %v", err)
	}
	if ciphertext == "refresh-token-value" {
		t.Fatal("ciphertext equals plaintext")
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypting: %v", err)
	}
	if plaintext != "refresh-token-value" {
		t.Errorf("got %q", plaintext)
	}
}

func TestSameKeyDecrypts(t *testing.T) {
	enc1, key, err := NewEncryptor("")
	if err != nil {
		t.Fatal(err)
	}
	ciphertext, err := enc1.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}

	enc2, _, err := NewEncryptor(key)
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := enc2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypting with same key: %v", err)
	}
	if plaintext != "secret" {
		t.Errorf("got %q", plaintext)
	}
}

func TestInvalidKeyLength(t *testing.T) {
	if _, _, err := NewEncryptor("short"); err == nil {
		t.Error("expected error for short key")
	}
}
