// Package crypto backs the engine's "--encrypt" CLI subcommand: writing
// an encrypted exchange-credentials blob to disk. The wire format and
// exact crypto scheme for credential encryption sit outside the
// specified engine boundary (spec.md §1 "encryption of exchange
// credentials" is out of scope); this package picks a standard,
// unglamorous ECDH+AES-GCM construction from the standard library since
// no corpus example carries a credentials-encryption dependency to
// ground a third-party choice on (documented in DESIGN.md).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// EncryptBlob derives a shared secret via ECDH between privateKeyHex
// (this instance's static key) and publicKeyHex (the recipient's static
// key), then seals plaintext with AES-256-GCM under that secret. The
// returned bytes are nonce||ciphertext, ready to write to the target
// file verbatim.
func EncryptBlob(plaintext []byte, publicKeyHex, privateKeyHex string) ([]byte, error) {
	curve := ecdh.P256()

	privBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: decode private key: %w", err)
	}
	priv, err := curve.NewPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: parse private key: %w", err)
	}

	pubBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: decode public key: %w", err)
	}
	pub, err := curve.NewPublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: parse public key: %w", err)
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: ECDH: %w", err)
	}

	block, err := aes.NewCipher(secret[:32])
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: new GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto.EncryptBlob: nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBlob reverses EncryptBlob given the same key pair, the other
// side's role swapped (ECDH is symmetric in the roles of the two keys).
func DecryptBlob(blob []byte, publicKeyHex, privateKeyHex string) ([]byte, error) {
	curve := ecdh.P256()

	privBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: decode private key: %w", err)
	}
	priv, err := curve.NewPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: parse private key: %w", err)
	}

	pubBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: decode public key: %w", err)
	}
	pub, err := curve.NewPublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: parse public key: %w", err)
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: ECDH: %w", err)
	}

	block, err := aes.NewCipher(secret[:32])
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto.DecryptBlob: new GCM: %w", err)
	}

	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("crypto.DecryptBlob: blob shorter than nonce")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// GenerateKeyPair creates a fresh P-256 ECDH key pair for operators
// bootstrapping --encrypt usage, returned as hex strings.
func GenerateKeyPair() (publicHex, privateHex string, err error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("crypto.GenerateKeyPair: %w", err)
	}
	return hex.EncodeToString(priv.PublicKey().Bytes()), hex.EncodeToString(priv.Bytes()), nil
}
