// Package seal encrypts catalog payloads for the video-call terminal.
//
// The catalog endpoint is public and unauthenticated, so payloads are encrypted
// with an anonymous sealed box (X25519 + XSalsa20-Poly1305, libsodium's
// crypto_box_seal). Only the holder of the matching private key can read them;
// the store never needs a key pair of its own.
package seal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"ligvideo-bridge/internal/model"
)

// KeySize is the length of a sealed-box public or private key.
const KeySize = 32

// Overhead is the number of bytes a sealed box adds to the plaintext.
const Overhead = box.AnonymousOverhead

// Seal encrypts plaintext to the recipient's public key.
// Output differs on every call: a fresh ephemeral key pair is generated each time.
func Seal(plaintext []byte, publicKey *[KeySize]byte) ([]byte, error) {
	return box.SealAnonymous(nil, plaintext, publicKey, rand.Reader)
}

// Open decrypts a sealed box with the recipient's key pair.
// The bridge never calls this; it exists for the terminal CLI and tests.
func Open(sealed []byte, publicKey, privateKey *[KeySize]byte) ([]byte, error) {
	out, ok := box.OpenAnonymous(nil, sealed, publicKey, privateKey)
	if !ok {
		return nil, fmt.Errorf("sealed box could not be opened")
	}
	return out, nil
}

// ParsePublicKey decodes base64 key material into a usable public key.
// Returns a no_key APIError when the material is empty and an invalid_key
// APIError when it is not base64, has the wrong length, or is a low-order point.
func ParsePublicKey(encoded string) (*[KeySize]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, model.NewNoKeyError()
	}

	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, model.NewInvalidKeyError("not valid base64")
	}
	if len(raw) != KeySize {
		return nil, model.NewInvalidKeyError(fmt.Sprintf("expected %d bytes, got %d", KeySize, len(raw)))
	}

	var key [KeySize]byte
	copy(key[:], raw)

	// X25519 rejects points whose shared secret is all zeros.
	if err := checkPoint(&key); err != nil {
		return nil, model.NewInvalidKeyError(err.Error())
	}
	return &key, nil
}

// ParsePrivateKey decodes base64 key material into a private key.
func ParsePrivateKey(encoded string) (*[KeySize]byte, error) {
	raw, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("private key: expected %d bytes, got %d", KeySize, len(raw))
	}
	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// PublicFromPrivate derives the public key matching a private key.
func PublicFromPrivate(privateKey *[KeySize]byte) (*[KeySize]byte, error) {
	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	var key [KeySize]byte
	copy(key[:], pub)
	return &key, nil
}

// GenerateKey creates a recipient key pair, as handed to the terminal operator.
func GenerateKey(r io.Reader) (publicKey, privateKey *[KeySize]byte, err error) {
	if r == nil {
		r = rand.Reader
	}
	return box.GenerateKey(r)
}

// EncodeKey renders a key the way it is stored in configuration.
func EncodeKey(key *[KeySize]byte) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

func checkPoint(key *[KeySize]byte) error {
	var scalar [KeySize]byte
	if _, err := rand.Read(scalar[:]); err != nil {
		return err
	}
	if _, err := curve25519.X25519(scalar[:], key[:]); err != nil {
		return fmt.Errorf("not a usable curve point: %w", err)
	}
	return nil
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Sealer seals payloads with the key material configured for the store.
// The material is decoded on every call so a broken key surfaces per request
// instead of at startup.
type Sealer struct {
	publicKey string
}

// NewSealer creates a Sealer for base64 key material. Empty material is allowed.
func NewSealer(publicKey string) *Sealer {
	return &Sealer{publicKey: publicKey}
}

// Configured reports whether any key material is present.
func (s *Sealer) Configured() bool {
	return strings.TrimSpace(s.publicKey) != ""
}

// SealBase64 seals plaintext and returns standard, padded base64 without line wraps.
func (s *Sealer) SealBase64(plaintext []byte) (string, error) {
	key, err := ParsePublicKey(s.publicKey)
	if err != nil {
		return "", err
	}
	sealed, err := Seal(plaintext, key)
	if err != nil {
		return "", model.NewInternalError(fmt.Errorf("sealing payload: %w", err))
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenBase64 reverses SealBase64 with the recipient's private key.
func OpenBase64(encoded string, privateKey *[KeySize]byte) ([]byte, error) {
	sealed, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding sealed payload: %w", err)
	}
	publicKey, err := PublicFromPrivate(privateKey)
	if err != nil {
		return nil, fmt.Errorf("deriving public key: %w", err)
	}
	return Open(sealed, publicKey, privateKey)
}
