// Package cryptox holds the cryptographic primitives used by the vault:
// AES-256-GCM for payloads, RSA-OAEP for wrapping content keys, and
// argon2id for passphrase-derived master keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the content key length (AES-256).
	KeySize = 32
	// NonceSize is the GCM standard nonce length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
	// SaltSize is the length of the argon2 salt stored per user.
	SaltSize = 16
)

func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

func DeriveMasterKey(password []byte, salt []byte) []byte {
	x := argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
	return x
}

// NewContentKey returns a fresh random AES-256 key.
func NewContentKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key using a freshly generated
// nonce. The authentication tag is returned detached from the ciphertext so
// callers can store it as its own field. aad is authenticated but not
// encrypted and must be supplied again to Open.
func Seal(key, plaintext, aad []byte) (ciphertext, nonce, tag []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = common.GenerateRandByteArray(aesgcm.NonceSize())

	sealed := aesgcm.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - aesgcm.Overhead()

	return sealed[:split], nonce, sealed[split:], nil
}

// Open reverses Seal. Any authentication failure (wrong key, altered nonce,
// ciphertext, tag or aad) yields common.ErrIntegrityViolation and no
// plaintext.
func Open(key, ciphertext, nonce, tag, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	if len(nonce) != aesgcm.NonceSize() || len(tag) != aesgcm.Overhead() {
		return nil, common.ErrIntegrityViolation
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aesgcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, common.ErrIntegrityViolation
	}
	return plaintext, nil
}

// SealBlob is Seal with nonce, ciphertext and tag concatenated into one
// value, for secrets stored in a single column.
func SealBlob(key, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, tag, err := Seal(key, plaintext, nil)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(ciphertext)+len(tag))
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return append(out, tag...), nil
}

// OpenBlob reverses SealBlob.
func OpenBlob(key, blob []byte) ([]byte, error) {
	if len(blob) < NonceSize+TagSize {
		return nil, common.ErrIntegrityViolation
	}
	nonce := blob[:NonceSize]
	ciphertext := blob[NonceSize : len(blob)-TagSize]
	tag := blob[len(blob)-TagSize:]
	return Open(key, ciphertext, nonce, tag, nil)
}
