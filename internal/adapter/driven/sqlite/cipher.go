package sqlite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

const (
	saltLength       = 64
	nonceLength      = 16
	tagLength        = 16
	keyLength        = 32
	kdfIterations    = 100000
	minPassphraseLen = 32
)

// Cipher encrypts stored credentials with AES-256-GCM under a key derived
// from a passphrase with PBKDF2-SHA256 and a random per-value salt. The
// encoded form is base64(salt):base64(nonce):base64(tag):base64(ciphertext).
type Cipher struct {
	passphrase []byte
}

// NewCipher returns a Cipher for passphrase. An empty passphrase yields
// driven.ErrEncryptionKeyNotSet.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	if len(passphrase) < minPassphraseLen {
		return nil, fmt.Errorf("encryption key must be at least %d characters", minPassphraseLen)
	}
	return &Cipher{passphrase: []byte(passphrase)}, nil
}

// Encrypt seals plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("cannot encrypt empty value")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("rand salt: %w", err)
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	// Seal returns ciphertext || tag.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString(salt),
		enc.EncodeToString(nonce),
		enc.EncodeToString(tag),
		enc.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", errors.New("cannot decrypt empty value")
	}
	parts := strings.Split(encoded, ":")
	if len(parts) != 4 {
		return "", errors.New("invalid encrypted data format")
	}

	decoded := make([][]byte, len(parts))
	for i, part := range parts {
		b, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return "", fmt.Errorf("base64 decode: %w", err)
		}
		decoded[i] = b
	}
	salt, nonce, tag, ciphertext := decoded[0], decoded[1], decoded[2], decoded[3]
	if len(nonce) != nonceLength || len(tag) != tagLength {
		return "", errors.New("invalid nonce or tag length")
	}

	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value has the encoded shape produced by Encrypt.
func IsEncrypted(value string) bool {
	return value != "" && len(strings.Split(value, ":")) == 4
}

func (c *Cipher) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
