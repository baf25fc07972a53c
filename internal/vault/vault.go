// Package vault seals journal exports with a passphrase.
//
// Keys are derived with scrypt and payloads are encrypted with AES-256-GCM.
// The sealed form is a single JSON envelope carrying the KDF parameters, so
// parameters can change without breaking older files.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Format identifies a sealed envelope.
const Format = "attune-vault/v1"

const (
	keyLen  = 32 // AES-256
	saltLen = 16
)

// ErrDecrypt is returned when the passphrase is wrong or the envelope was modified.
var ErrDecrypt = errors.New("vault: decryption failed")

// Params are the scrypt cost parameters.
type Params struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// DefaultParams are the recommended interactive-use scrypt costs.
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1}

// Envelope is the on-disk sealed form.
type Envelope struct {
	Format     string `json:"_attune_vault"`
	KDF        string `json:"kdf"`
	Params     Params `json:"params"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext under passphrase using DefaultParams.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	return SealWith(plaintext, passphrase, DefaultParams)
}

// SealWith encrypts plaintext with explicit scrypt parameters.
func SealWith(plaintext []byte, passphrase string, params Params) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("vault: passphrase is required")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt, params)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}

	env := Envelope{
		Format:     Format,
		KDF:        "scrypt",
		Params:     params,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(Format)),
	}
	return json.Marshal(env)
}

// Open decrypts a sealed envelope. A wrong passphrase returns ErrDecrypt.
func Open(sealed []byte, passphrase string) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("vault: malformed envelope: %w", err)
	}
	if env.Format != Format {
		return nil, fmt.Errorf("vault: unsupported format %q", env.Format)
	}
	if env.KDF != "scrypt" {
		return nil, fmt.Errorf("vault: unsupported kdf %q", env.KDF)
	}

	aead, err := newAEAD(passphrase, env.Salt, env.Params)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrDecrypt
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(Format))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like a sealed envelope.
func IsSealed(data []byte) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var probe struct {
		Format string `json:"_attune_vault"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Format != ""
}

func newAEAD(passphrase string, salt []byte, p Params) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
