package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{"api key", "AKIA-example-key-000"},
		{"api secret", "s3cr3t/with+symbols=="},
		{"empty string", ""},
		{"unicode", "ключ доступа"},
		{"long value", strings.Repeat("x", 4096)},
	}

	key := testKey()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}

			if decrypted != tt.plaintext {
				t.Errorf("roundtrip: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

// TestEncryptDifferentResults проверяет что nonce уникален
func TestEncryptDifferentResults(t *testing.T) {
	key := testKey()

	encrypted1, _ := Encrypt("same plaintext", key)
	encrypted2, _ := Encrypt("same plaintext", key)

	if encrypted1 == encrypted2 {
		t.Error("two encryptions of the same plaintext should differ due to random nonce")
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, keyLen := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, keyLen)
		if _, err := Encrypt("data", key); err != ErrInvalidKeyLength {
			t.Errorf("key length %d: got error %v, want %v", keyLen, err, ErrInvalidKeyLength)
		}
	}
}

func TestDecryptInvalidKeyLength(t *testing.T) {
	encrypted, _ := Encrypt("data", testKey())

	if _, err := Decrypt(encrypted, []byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("got error %v, want %v", err, ErrInvalidKeyLength)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	encrypted, _ := Encrypt("data", testKey())

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	if _, err := Decrypt(encrypted, otherKey); err != ErrDecryptionFailed {
		t.Errorf("got error %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDecryptInvalidBase64(t *testing.T) {
	if _, err := Decrypt("not base64 !!!", testKey()); err != ErrInvalidCiphertext {
		t.Errorf("got error %v, want %v", err, ErrInvalidCiphertext)
	}
}

func TestDecryptTooShort(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	if _, err := Decrypt(short, testKey()); err != ErrCiphertextTooShort {
		t.Errorf("got error %v, want %v", err, ErrCiphertextTooShort)
	}
}

// TestDecryptTamperedCiphertext проверяет что тег GCM ловит подмену
func TestDecryptTamperedCiphertext(t *testing.T) {
	key := testKey()
	encrypted, _ := Encrypt("original data", key)

	raw, _ := base64.StdEncoding.DecodeString(encrypted)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := Decrypt(tampered, key); err != ErrDecryptionFailed {
		t.Errorf("got error %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key1) != 32 {
		t.Errorf("got %d bytes, want 32", len(key1))
	}

	key2, _ := GenerateKey()
	if string(key1) == string(key2) {
		t.Error("two generated keys should differ")
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey(testKey()); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := ValidateKey([]byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("got error %v, want %v", err, ErrInvalidKeyLength)
	}
}
