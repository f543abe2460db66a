package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// keyDerivationMessage is signed with the SSH key to derive the AES key.
// Signing a fixed message makes the derivation deterministic for key types
// with deterministic signatures (ed25519, RSA with PKCS#1 v1.5).
const keyDerivationMessage = "quill-secret-key-derivation-v1"

// Cipher encrypts and decrypts secret values at rest.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Plaintext stores values unencrypted.
type Plaintext struct{}

func (Plaintext) Encrypt(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (Plaintext) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// SSHKeyCipher encrypts with AES-256-GCM using a key derived from an SSH
// private key signature.
type SSHKeyCipher struct {
	aesKey []byte
}

// NewSSHKeyCipher loads the SSH private key at the given path and derives
// the encryption key. The passphrase may be empty for unencrypted keys.
func NewSSHKeyCipher(keyPath, passphrase string) (*SSHKeyCipher, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading SSH key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
		if err != nil && isPassphraseError(err) {
			return nil, fmt.Errorf("SSH key is encrypted, passphrase required")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parsing SSH key: %w", err)
	}

	return NewSSHKeyCipherFromSigner(signer)
}

// NewSSHKeyCipherFromSigner derives the encryption key from an existing
// signer.
func NewSSHKeyCipherFromSigner(signer ssh.Signer) (*SSHKeyCipher, error) {
	sig, err := signer.Sign(rand.Reader, []byte(keyDerivationMessage))
	if err != nil {
		return nil, fmt.Errorf("deriving encryption key: %w", err)
	}
	hash := sha256.Sum256(sig.Blob)
	return &SSHKeyCipher{aesKey: hash[:]}, nil
}

// Encrypt seals the plaintext as [nonce][ciphertext+tag].
func (c *SSHKeyCipher) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a value sealed by Encrypt.
func (c *SSHKeyCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func isPassphraseError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "encrypted") || strings.Contains(msg, "passphrase")
}
