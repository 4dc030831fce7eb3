package tokenstore

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed token files start with this magic so Load can tell them apart from
// plain JSON without a second pass.
var sealedMagic = []byte("BLTOKEN1")

const saltSize = 16

// deriveKey stretches the passphrase with argon2id. Parameters follow the
// RFC 9106 low-memory profile: 1 pass, 64 MiB, 4 lanes.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}

// seal encrypts plaintext under a key derived from the passphrase. The
// container layout is magic || salt || nonce || ciphertext.
func seal(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// isSealed reports whether data carries the sealed-container magic.
func isSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedMagic)
}

// open decrypts a container produced by seal.
func open(data []byte, passphrase string) ([]byte, error) {
	if !isSealed(data) {
		return nil, fmt.Errorf("not a sealed token container")
	}

	payload := data[len(sealedMagic):]
	if len(payload) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("sealed token container truncated")
	}
	salt := payload[:saltSize]
	nonce := payload[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := payload[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wrong passphrase or corrupted token file")
	}
	return plaintext, nil
}
