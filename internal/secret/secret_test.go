package secret

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func newTestStore(t *testing.T, cipher Cipher) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	s, err := NewStore(path, cipher)
	if err != nil {
		t.Fatal(err)
	}
	return s, path
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(t, nil)

	if _, err := s.Get(APIKeyFor("openai")); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s, path := newTestStore(t, nil)

	if err := s.Set(APIKeyFor("openai"), "sk-test-123"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(APIKeyFor("openai"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-test-123" {
		t.Errorf("got %q", got)
	}

	// Persisted and readable by a fresh store.
	s2, err := NewStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := s2.Get(APIKeyFor("openai")); got != "sk-test-123" {
		t.Errorf("reloaded value %q", got)
	}

	// Raw file does not contain the plaintext key name's value unencoded.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secrets file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSetEmptyDeletes(t *testing.T) {
	s, _ := newTestStore(t, nil)

	if err := s.Set("apiKey.openai", "sk-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("apiKey.openai", ""); err != nil {
		t.Fatal(err)
	}
	if s.Has("apiKey.openai") {
		t.Error("empty Set should delete the key")
	}
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t, nil)

	calls := 0
	sub := s.Subscribe("apiKey.openai", func() { calls++ })

	if err := s.Set("apiKey.openai", "sk-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("apiKey.anthropic", "sk-2"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (other keys must not notify)", calls)
	}

	if err := s.Delete("apiKey.openai"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 after delete", calls)
	}

	sub.Unsubscribe()
	if err := s.Set("apiKey.openai", "sk-3"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d after unsubscribe, want 2", calls)
	}
}

func TestSSHKeyCipherRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}

	c, err := NewSSHKeyCipherFromSigner(signer)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := c.Encrypt([]byte("sk-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if string(sealed) == "sk-secret" {
		t.Error("ciphertext equals plaintext")
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "sk-secret" {
		t.Errorf("round trip got %q", plain)
	}

	// A different key cannot decrypt.
	_, priv2, _ := ed25519.GenerateKey(rand.Reader)
	signer2, _ := ssh.NewSignerFromKey(priv2)
	c2, err := NewSSHKeyCipherFromSigner(signer2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c2.Decrypt(sealed); err == nil {
		t.Error("decryption with wrong key should fail")
	}
}

func TestStoreWithSSHCipher(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)
	signer, _ := ssh.NewSignerFromKey(priv)
	c, err := NewSSHKeyCipherFromSigner(signer)
	if err != nil {
		t.Fatal(err)
	}

	s, path := newTestStore(t, c)
	if err := s.Set("apiKey.openai", "sk-sealed"); err != nil {
		t.Fatal(err)
	}

	// The file must not contain the plaintext.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte("sk-sealed")) {
		t.Error("secret stored in plaintext despite cipher")
	}

	got, err := s.Get("apiKey.openai")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-sealed" {
		t.Errorf("got %q", got)
	}
}
