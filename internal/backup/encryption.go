package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// EncryptedExt is the extension appended to encrypted backup files.
const EncryptedExt = ".enc"

// encMagic identifies an encrypted backup file. Layout on disk:
// magic | 16-byte salt | GCM nonce | ciphertext.
var encMagic = []byte("PGLCENC1")

const (
	encSaltSize   = 16
	encIterations = 100_000
	encKeySize    = 32
)

// deriveKey stretches the passphrase into an AES-256 key with PBKDF2.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, encIterations, encKeySize, sha256.New)
}

// EncryptFile encrypts src into dst with AES-256-GCM under a key derived
// from the passphrase. src is left untouched.
func EncryptFile(src, dst, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("encryption passphrase is empty")
	}

	plaintext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read file for encryption: %w", err)
	}

	salt := make([]byte, encSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	var out bytes.Buffer
	out.Write(encMagic)
	out.Write(salt)
	out.Write(gcm.Seal(nonce, nonce, plaintext, nil))

	if err := os.WriteFile(dst, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write encrypted file: %w", err)
	}
	return nil
}

// DecryptFile decrypts src (produced by EncryptFile) into dst.
func DecryptFile(src, dst, passphrase string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read encrypted file: %w", err)
	}

	if len(data) < len(encMagic)+encSaltSize || !bytes.Equal(data[:len(encMagic)], encMagic) {
		return fmt.Errorf("file is not an encrypted backup")
	}
	data = data[len(encMagic):]
	salt, data := data[:encSaltSize], data[encSaltSize:]

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return fmt.Errorf("encrypted file is truncated")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt file (wrong passphrase?): %w", err)
	}

	if err := os.WriteFile(dst, plaintext, 0o644); err != nil {
		return fmt.Errorf("failed to write decrypted file: %w", err)
	}
	return nil
}

// IsEncryptedPath reports whether a backup file name carries the encrypted
// extension.
func IsEncryptedPath(path string) bool {
	return strings.HasSuffix(path, EncryptedExt)
}
