package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionSaltSize  = 32
	encryptionKeySize   = 32 // 256 bits
	pbkdf2Iterations    = 100000
	encryptionAlgorithm = "AES-256-GCM"
)

// EncryptionStats contains statistics about encryption operations
type EncryptionStats struct {
	OriginalSize  int64         `json:"original_size"`
	EncryptedSize int64         `json:"encrypted_size"`
	Algorithm     string        `json:"algorithm"`
	KeyDerivation string        `json:"key_derivation"`
	Duration      time.Duration `json:"duration"`
}

// EncryptionManager encrypts artifacts with AES-256-GCM using a key derived
// from the configured passphrase. The salt and nonce are prefixed to the
// ciphertext so every artifact is self-contained.
type EncryptionManager struct {
	config *EncryptionConfig
}

// NewEncryptionManager creates a new encryption manager
func NewEncryptionManager(config *EncryptionConfig) *EncryptionManager {
	return &EncryptionManager{
		config: config,
	}
}

// deriveKey derives a 256-bit key from the passphrase using PBKDF2 with SHA-256
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, encryptionKeySize, sha256.New)
}

// Encrypt encrypts data using AES-256-GCM
func (em *EncryptionManager) Encrypt(data []byte) ([]byte, *EncryptionStats, error) {
	if !em.config.Enabled {
		return data, &EncryptionStats{
			OriginalSize:  int64(len(data)),
			EncryptedSize: int64(len(data)),
			Algorithm:     "NONE",
			Duration:      0,
		}, nil
	}

	if em.config.Passphrase == "" {
		return nil, nil, NewEncryptionError("encryption enabled but no passphrase configured", nil)
	}

	start := time.Now()

	// Generate random salt and derive the key
	salt := make([]byte, encryptionSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, NewEncryptionError("failed to generate salt", err)
	}
	key := deriveKey(em.config.Passphrase, salt)

	// Create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create AES cipher", err)
	}

	// Create GCM mode
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	// Generate random nonce
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, NewEncryptionError("failed to generate nonce", err)
	}

	// Layout: salt || nonce || ciphertext
	out := make([]byte, 0, encryptionSaltSize+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, data, nil)
	duration := time.Since(start)

	stats := &EncryptionStats{
		OriginalSize:  int64(len(data)),
		EncryptedSize: int64(len(out)),
		Algorithm:     encryptionAlgorithm,
		KeyDerivation: "PBKDF2-SHA256",
		Duration:      duration,
	}

	return out, stats, nil
}

// Decrypt decrypts data using AES-256-GCM
func (em *EncryptionManager) Decrypt(encryptedData []byte) ([]byte, error) {
	if !em.config.Enabled {
		return encryptedData, nil
	}

	if em.config.Passphrase == "" {
		return nil, NewEncryptionError("encryption enabled but no passphrase configured", nil)
	}

	if len(encryptedData) < encryptionSaltSize {
		return nil, NewEncryptionError("encrypted data too short", nil)
	}

	// Extract salt and derive the key
	salt := encryptedData[:encryptionSaltSize]
	key := deriveKey(em.config.Passphrase, salt)

	// Create AES cipher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to create AES cipher", err)
	}

	// Create GCM mode
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	// Check minimum size
	nonceSize := gcm.NonceSize()
	if len(encryptedData) < encryptionSaltSize+nonceSize {
		return nil, NewEncryptionError("encrypted data too short", nil)
	}

	// Extract nonce and ciphertext
	nonce := encryptedData[encryptionSaltSize : encryptionSaltSize+nonceSize]
	ciphertext := encryptedData[encryptionSaltSize+nonceSize:]

	// Decrypt data
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewEncryptionError("failed to decrypt data", err)
	}

	return plaintext, nil
}

// EncryptFile encrypts src into dst. Artifacts are encrypted whole since GCM
// authenticates the complete message.
func (em *EncryptionManager) EncryptFile(src, dst string) (*EncryptionStats, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, NewEncryptionError("failed to read file for encryption", err)
	}

	encrypted, stats, err := em.Encrypt(data)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(dst, encrypted, 0600); err != nil {
		return nil, NewEncryptionError("failed to write encrypted file", err)
	}

	return stats, nil
}

// OpenDecrypted opens an encrypted file and returns a reader over its
// plaintext. When encryption is disabled the file is streamed as-is.
func (em *EncryptionManager) OpenDecrypted(path string) (io.ReadCloser, error) {
	if !em.config.Enabled {
		file, err := os.Open(path)
		if err != nil {
			return nil, NewEncryptionError("failed to open file", err)
		}
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEncryptionError("failed to read encrypted file", err)
	}

	plaintext, err := em.Decrypt(data)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

// IsEnabled returns whether encryption is enabled
func (em *EncryptionManager) IsEnabled() bool {
	return em.config.Enabled
}

// GetAlgorithm returns the encryption algorithm being used
func (em *EncryptionManager) GetAlgorithm() string {
	if !em.config.Enabled {
		return "NONE"
	}
	return encryptionAlgorithm
}
