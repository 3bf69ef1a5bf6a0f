package backup

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionManager_Encrypt_Disabled(t *testing.T) {
	config := &EncryptionConfig{
		Enabled: false,
	}
	em := NewEncryptionManager(config)
	testData := []byte("test data for encryption")

	encrypted, stats, err := em.Encrypt(testData)

	require.NoError(t, err)
	assert.Equal(t, testData, encrypted)
	assert.Equal(t, int64(len(testData)), stats.OriginalSize)
	assert.Equal(t, int64(len(testData)), stats.EncryptedSize)
	assert.Equal(t, "NONE", stats.Algorithm)
	assert.Equal(t, time.Duration(0), stats.Duration)
}

func TestEncryptionManager_Encrypt_Enabled(t *testing.T) {
	config := &EncryptionConfig{
		Enabled:    true,
		Passphrase: "correct horse battery staple",
	}

	em := NewEncryptionManager(config)
	testData := []byte("test data for encryption that is longer to ensure proper encryption")

	encrypted, stats, err := em.Encrypt(testData)

	require.NoError(t, err)
	assert.NotEqual(t, testData, encrypted)
	assert.Equal(t, int64(len(testData)), stats.OriginalSize)
	assert.Greater(t, stats.EncryptedSize, stats.OriginalSize) // salt, nonce and auth tag
	assert.Equal(t, "AES-256-GCM", stats.Algorithm)
	assert.Equal(t, "PBKDF2-SHA256", stats.KeyDerivation)

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, testData, decrypted)
}

func TestEncryptionManager_Encrypt_MissingPassphrase(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true})

	_, _, err := em.Encrypt([]byte("data"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no passphrase configured")
}

func TestEncryptionManager_Decrypt_Disabled(t *testing.T) {
	config := &EncryptionConfig{
		Enabled: false,
	}
	em := NewEncryptionManager(config)
	testData := []byte("test data")

	decrypted, err := em.Decrypt(testData)

	require.NoError(t, err)
	assert.Equal(t, testData, decrypted)
}

func TestEncryptionManager_Decrypt_WrongPassphrase(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "first"})
	encrypted, _, err := em.Encrypt([]byte("artifact payload"))
	require.NoError(t, err)

	other := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "second"})
	_, err = other.Decrypt(encrypted)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decrypt data")
}

func TestEncryptionManager_SaltIsUnique(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "pass"})
	data := []byte("identical payload")

	first, _, err := em.Encrypt(data)
	require.NoError(t, err)
	second, _, err := em.Encrypt(data)
	require.NoError(t, err)

	// Fresh salt and nonce per artifact, so identical payloads never
	// produce identical ciphertexts.
	assert.NotEqual(t, first, second)
}

func TestEncryptionManager_InvalidData(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "pass"})

	t.Run("Decrypt short data", func(t *testing.T) {
		_, err := em.Decrypt([]byte("too short"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "encrypted data too short")
	})

	t.Run("Decrypt corrupted data", func(t *testing.T) {
		testData := []byte("test data for corruption")
		encrypted, _, err := em.Encrypt(testData)
		require.NoError(t, err)

		corrupted := make([]byte, len(encrypted))
		copy(corrupted, encrypted)
		corrupted[20] = ^corrupted[20]

		_, err = em.Decrypt(corrupted)
		assert.Error(t, err)
		assert.True(t,
			strings.Contains(err.Error(), "failed to decrypt data") ||
				strings.Contains(err.Error(), "message authentication failed"),
			"Expected authentication failure, got: %s", err.Error())
	})
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("test-salt-32-bytes-test-salt-32b")

	key1 := deriveKey("passphrase", salt)
	key2 := deriveKey("passphrase", salt)

	assert.Len(t, key1, 32)
	assert.Equal(t, key1, key2) // Same passphrase and salt must produce the same key

	otherSalt := []byte("other-salt-32-bytes-other-salt-3")
	key3 := deriveKey("passphrase", otherSalt)
	assert.NotEqual(t, key1, key3)

	key4 := deriveKey("different", salt)
	assert.NotEqual(t, key1, key4)
}

func TestEncryptionManager_FileRoundTrip(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "file pass"})

	tempDir := t.TempDir()
	plaintext := []byte("-- MySQL dump\nCREATE TABLE t (id INT);\n")

	src := filepath.Join(tempDir, "dump.sql.gz")
	dst := filepath.Join(tempDir, "dump.sql.gz.enc")
	require.NoError(t, os.WriteFile(src, plaintext, 0644))

	stats, err := em.EncryptFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(plaintext)), stats.OriginalSize)

	onDisk, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, onDisk)

	reader, err := em.OpenDecrypted(dst)
	require.NoError(t, err)
	defer reader.Close()

	decrypted, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptionManager_OpenDecrypted_Disabled(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: false})

	tempDir := t.TempDir()
	content := []byte("plain artifact")
	path := filepath.Join(tempDir, "dump.sql.gz")
	require.NoError(t, os.WriteFile(path, content, 0644))

	reader, err := em.OpenDecrypted(path)
	require.NoError(t, err)
	defer reader.Close()

	read, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, read)
}

func TestEncryption_EmptyData(t *testing.T) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "pass"})
	emptyData := []byte{}

	encrypted, stats, err := em.Encrypt(emptyData)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.OriginalSize)
	assert.Greater(t, stats.EncryptedSize, int64(0)) // salt, nonce and auth tag remain

	decrypted, err := em.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestEncryptionManager_Properties(t *testing.T) {
	enabledEM := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "p"})
	disabledEM := NewEncryptionManager(&EncryptionConfig{Enabled: false})

	assert.True(t, enabledEM.IsEnabled())
	assert.False(t, disabledEM.IsEnabled())

	assert.Equal(t, "AES-256-GCM", enabledEM.GetAlgorithm())
	assert.Equal(t, "NONE", disabledEM.GetAlgorithm())
}

func BenchmarkEncryption(b *testing.B) {
	em := NewEncryptionManager(&EncryptionConfig{Enabled: true, Passphrase: "bench pass"})
	testData := make([]byte, 1024)
	rand.Read(testData)

	b.Run("Encrypt", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _, err := em.Encrypt(testData)
			if err != nil {
				b.Fatal(err)
			}
		}
	})

	encrypted, _, _ := em.Encrypt(testData)

	b.Run("Decrypt", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := em.Decrypt(encrypted)
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}
