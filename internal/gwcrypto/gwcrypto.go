// Package gwcrypto wraps the crypto primitives the group session engine
// consumes: X25519 key exchange, Ed25519 signing, an XChaCha20-Poly1305
// AEAD, HKDF session-key expansion, and a CSPRNG. None of this is novel
// cryptography — it is the same construction internal/invite/pake.go uses
// for the friend-invite PAKE, reused here as the permanent per-peer group
// session key.
package gwcrypto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// PublicKeySize is the size of an X25519 or Ed25519 public key.
	PublicKeySize = 32
	// SecretKeySize is the size of an X25519 or Ed25519 secret key.
	SecretKeySize = 32
	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = 64
	// NonceSize is the size of the AEAD nonce carried on the wire (§6).
	NonceSize = chacha20poly1305.NonceSizeX
	// MACSize is the size of the AEAD authentication tag appended by Seal.
	MACSize = chacha20poly1305.Overhead
)

const sessionKeyInfo = "groupwire-session-v1"

// ExtendedKeyPair is a participant's identity: an X25519 encryption keypair
// plus an Ed25519 signing keypair (§3).
type ExtendedKeyPair struct {
	EncPriv *ecdh.PrivateKey
	EncPub  [PublicKeySize]byte
	SignPub ed25519.PublicKey
	signSec ed25519.PrivateKey
}

// GenerateExtendedKeyPair creates a fresh identity.
func GenerateExtendedKeyPair() (*ExtendedKeyPair, error) {
	encPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: generate X25519 key: %w", err)
	}
	signPub, signSec, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: generate Ed25519 key: %w", err)
	}
	kp := &ExtendedKeyPair{
		EncPriv: encPriv,
		SignPub: signPub,
		signSec: signSec,
	}
	copy(kp.EncPub[:], encPriv.PublicKey().Bytes())
	return kp, nil
}

// Sign signs msg with the identity's Ed25519 secret key.
func (kp *ExtendedKeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.signSec, msg)
}

// Zero overwrites the in-memory secret key material. Best-effort: Go's
// crypto/ecdh does not expose raw bytes for its PrivateKey, so only the
// Ed25519 secret (a plain byte slice) can actually be scrubbed; the X25519
// key is dropped for GC instead. See original_source/toxcore/crypto_core_mem.c
// for the "memset that cannot fail" contract this approximates.
func (kp *ExtendedKeyPair) Zero() {
	zero(kp.signSec)
	kp.signSec = nil
	kp.EncPriv = nil
}

// zero overwrites b in place, then hands b to the non-inlined
// runtimeKeepAlive so the compiler cannot prove the stores are dead and
// elide them - the Go analogue of a compiler-barrier memset.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtimeKeepAlive(b)
}

//go:noinline
func runtimeKeepAlive(b []byte) {
	_ = b
}

// LoadOrCreateIdentity loads a long-term ExtendedKeyPair from path, or
// generates and persists a fresh one if the file does not exist yet,
// mirroring pkg/p2pnet/identity.go's LoadOrCreateIdentity for this
// module's two-key identity.
func LoadOrCreateIdentity(path string) (*ExtendedKeyPair, error) {
	if data, err := os.ReadFile(path); err == nil {
		return decodeIdentity(data)
	}
	kp, err := GenerateExtendedKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, encodeIdentity(kp), 0600); err != nil {
		return nil, fmt.Errorf("gwcrypto: save identity to %s: %w", path, err)
	}
	return kp, nil
}

func encodeIdentity(kp *ExtendedKeyPair) []byte {
	buf := make([]byte, 0, SecretKeySize+ed25519.SeedSize)
	buf = append(buf, kp.EncPriv.Bytes()...)
	buf = append(buf, kp.signSec.Seed()...)
	return buf
}

func decodeIdentity(data []byte) (*ExtendedKeyPair, error) {
	if len(data) != SecretKeySize+ed25519.SeedSize {
		return nil, fmt.Errorf("gwcrypto: malformed identity file (%d bytes)", len(data))
	}
	encPriv, err := ecdh.X25519().NewPrivateKey(data[:SecretKeySize])
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: invalid X25519 identity key: %w", err)
	}
	signSec := ed25519.NewKeyFromSeed(data[SecretKeySize:])
	kp := &ExtendedKeyPair{
		EncPriv: encPriv,
		SignPub: signSec.Public().(ed25519.PublicKey),
		signSec: signSec,
	}
	copy(kp.EncPub[:], encPriv.PublicKey().Bytes())
	return kp, nil
}

// Verify checks an Ed25519 signature under signPub.
func Verify(signPub ed25519.PublicKey, msg, sig []byte) bool {
	if len(signPub) != ed25519.PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(signPub, msg, sig)
}

// DeriveSessionKey computes shared = X25519(localPriv, remotePub) and
// expands it through HKDF-SHA256 into a 32-byte AEAD key (§4.2).
func DeriveSessionKey(localPriv *ecdh.PrivateKey, remotePub [PublicKeySize]byte) ([]byte, error) {
	peerKey, err := ecdh.X25519().NewPublicKey(remotePub[:])
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: invalid remote public key: %w", err)
	}
	shared, err := localPriv.ECDH(peerKey)
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: X25519 exchange failed: %w", err)
	}
	r := hkdf.New(sha256.New, shared, nil, []byte(sessionKeyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("gwcrypto: HKDF expansion failed: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random 24-byte nonce,
// returning (nonce, ciphertext||tag).
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("gwcrypto: AEAD init: %w", err)
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("gwcrypto: nonce generation: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Open decrypts a Seal'd packet. Returns an error without distinguishing
// "bad key" from "tampered payload" - §7 forbids leaking which check failed.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: AEAD init: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gwcrypto: open failed")
	}
	return plaintext, nil
}

// HashPassword returns SHA-256(password), stored in shared state (§6).
func HashPassword(password []byte) [32]byte {
	return sha256.Sum256(password)
}

// ConstantTimeCompare reports whether a and b are equal using a
// constant-time comparison, matching internal/vault/vault.go's use of
// crypto/subtle for passphrase checks.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("gwcrypto: random bytes: %w", err)
	}
	return b, nil
}
