package yapoststore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
)

// Sealer encrypts bot tokens at rest with AES-256 in CTR mode. The random IV is
// prepended to the ciphertext and the result is stored base64 encoded.
type Sealer struct {
	key []byte
}

// NewSealer derives the AES key from secret.
func NewSealer(secret string) Sealer {
	return Sealer{key: DeriveKey(secret)}
}

// DeriveKey hashes secret into a 256-bit key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))

	return sum[:]
}

// Seal encrypts plain.
//
// Example usage:
//
//	sealed, err := sealer.Seal("123456:ABC")
func (s Sealer) Seal(plain string) (string, yaerrors.Error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", yaerrors.FromError(http.StatusInternalServerError, err, "could not create new cipher")
	}

	out := make([]byte, aes.BlockSize+len(plain))

	iv := out[:aes.BlockSize]
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return "", yaerrors.FromError(http.StatusInternalServerError, err, "could not read iv")
	}

	cipher.NewCTR(block, iv).XORKeyStream(out[aes.BlockSize:], []byte(plain))

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s Sealer) Open(sealed string) (string, yaerrors.Error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", yaerrors.FromError(http.StatusInternalServerError, err, "could not decode sealed value")
	}

	if len(raw) < aes.BlockSize {
		return "", yaerrors.FromError(http.StatusInternalServerError, ErrInvalidCiphertext, "could not open")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", yaerrors.FromError(http.StatusInternalServerError, err, "could not create new cipher")
	}

	iv, text := raw[:aes.BlockSize], raw[aes.BlockSize:]

	cipher.NewCTR(block, iv).XORKeyStream(text, text)

	return string(text), nil
}
