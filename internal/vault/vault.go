// Package vault implements the encrypted local credential store: a single
// file holding named credential tables, encrypted with AES-256-GCM under a
// passphrase-derived key.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-credgate/credgate/internal/credentials"

	"golang.org/x/crypto/pbkdf2"
)

// File layout: magic, 16-byte salt, 12-byte nonce, GCM ciphertext of the
// JSON payload.
var magic = []byte("CGV1")

const (
	saltSize  = 16
	nonceSize = 12
	// KDF parameters match the token hashing used elsewhere in the
	// project family.
	kdfIterations = 10000
	keySize       = 32
)

var (
	// ErrDecrypt is returned when the ciphertext does not authenticate,
	// which almost always means a wrong passphrase.
	ErrDecrypt = errors.New("cannot decrypt store: wrong passphrase or corrupted file")

	// ErrNotVault is returned when the file does not carry the vault magic.
	ErrNotVault = errors.New("not a credential vault file")

	// ErrTableNotFound is returned when the requested table is absent.
	ErrTableNotFound = errors.New("table not found in vault")
)

type payload struct {
	Tables map[string]credentials.Table `json:"tables"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keySize, sha256.New)
}

// Read opens the vault at path, decrypts it with passphrase and returns the
// named table. I/O and decryption errors are propagated unmasked.
func Read(path, tableName, passphrase string) (credentials.Table, error) {
	tables, err := ReadAll(path, passphrase)
	if err != nil {
		return credentials.Table{}, err
	}
	table, ok := tables[tableName]
	if !ok {
		return credentials.Table{}, fmt.Errorf("%w: %q", ErrTableNotFound, tableName)
	}
	return table, nil
}

// ReadAll decrypts the vault and returns every table it holds.
func ReadAll(path, passphrase string) (map[string]credentials.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(magic)+saltSize+nonceSize || string(raw[:len(magic)]) != string(magic) {
		return nil, fmt.Errorf("%w: %s", ErrNotVault, path)
	}
	raw = raw[len(magic):]
	salt, nonce, ciphertext := raw[:saltSize], raw[saltSize:saltSize+nonceSize], raw[saltSize+nonceSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("decode vault payload: %w", err)
	}
	return p.Tables, nil
}

// Write encrypts tables under passphrase and writes the vault to path,
// replacing any previous content. A fresh salt and nonce are drawn on every
// write.
func Write(path, passphrase string, tables map[string]credentials.Table) error {
	plaintext, err := json.Marshal(payload{Tables: tables})
	if err != nil {
		return fmt.Errorf("encode vault payload: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	return os.WriteFile(path, out, 0o600)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
