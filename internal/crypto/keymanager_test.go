package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKey32 = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKey32, "correct horse")
	if err != nil {
		t.Fatalf("EncryptKey() error: %v", err)
	}

	got, err := DecryptKey(blob, "correct horse")
	if err != nil {
		t.Fatalf("DecryptKey() error: %v", err)
	}
	if got != testKey32 {
		t.Errorf("decrypted key = %s, want %s", got, testKey32)
	}
}

func TestDecryptRejectsWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKey32, "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("DecryptKey() with wrong password must fail")
	}
}

func TestEncryptKeyValidation(t *testing.T) {
	if _, err := EncryptKey(testKey32, ""); err == nil {
		t.Error("empty password must be rejected")
	}
	if _, err := EncryptKey("not-hex", "pw"); err == nil {
		t.Error("non-hex key must be rejected")
	}
	if _, err := EncryptKey("abcd", "pw"); err == nil {
		t.Error("short key must be rejected")
	}
	// 64-byte ed25519 keys are accepted.
	if _, err := EncryptKey(testKey32+testKey32, "pw"); err != nil {
		t.Errorf("64-byte key rejected: %v", err)
	}
}

func TestLoadKeyResolutionOrder(t *testing.T) {
	// Raw key wins and the 0x prefix is stripped.
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey32})
	if err != nil {
		t.Fatalf("LoadKey(raw) error: %v", err)
	}
	if got != testKey32 {
		t.Errorf("LoadKey(raw) = %s, want %s", got, testKey32)
	}

	// Encrypted file path.
	blob, err := EncryptKey(testKey32, "pw")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKey(encrypted) error: %v", err)
	}
	if got != testKey32 {
		t.Errorf("LoadKey(encrypted) = %s, want %s", got, testKey32)
	}

	// No source configured.
	if _, err := LoadKey(KeyConfig{}); err == nil || !strings.Contains(err.Error(), "no private key source") {
		t.Errorf("LoadKey(empty) = %v, want a no-source error", err)
	}
}
