package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_NoKey(t *testing.T) {
	// Without env var, encryption is a no-op
	os.Unsetenv(EncryptionKeyEnvVar)

	content := []byte(`{"AWSTemplateFormatVersion":"2010-09-09"}`)
	encrypted, err := Encrypt(content)
	require.NoError(t, err)
	assert.Equal(t, content, encrypted) // Should be unchanged

	decrypted, err := Decrypt(content)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestEncryptDecrypt_WithKey(t *testing.T) {
	os.Setenv(EncryptionKeyEnvVar, "my-super-secret-encryption-key!!")
	defer os.Unsetenv(EncryptionKeyEnvVar)

	content := []byte(`{"Resources":{"Bucket":{"Type":"AWS::S3::Bucket"}}}`)

	encrypted, err := Encrypt(content)
	require.NoError(t, err)
	assert.NotEqual(t, content, encrypted)
	assert.True(t, IsEncrypted(encrypted))

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte("# BACKPLANE_ENCRYPTED_TEMPLATE\nbase64data")))
	assert.False(t, IsEncrypted([]byte(`{"Resources":{}}`)))
	assert.False(t, IsEncrypted([]byte("")))
}

func TestDecrypt_WrongKey(t *testing.T) {
	os.Setenv(EncryptionKeyEnvVar, "correct-key-for-encryption!!!!!")
	defer os.Unsetenv(EncryptionKeyEnvVar)

	content := []byte("test data")
	encrypted, err := Encrypt(content)
	require.NoError(t, err)

	// Try decrypting with wrong key
	os.Setenv(EncryptionKeyEnvVar, "wrong-key-for-decryption!!!!!!!")
	_, err = Decrypt(encrypted)
	assert.Error(t, err)
}

func TestDecrypt_MissingKey(t *testing.T) {
	os.Setenv(EncryptionKeyEnvVar, "some-key")
	encrypted, err := Encrypt([]byte("data"))
	require.NoError(t, err)

	os.Unsetenv(EncryptionKeyEnvVar)
	_, err = Decrypt(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EncryptionKeyEnvVar)
}
