// Package identity manages the node keypair. Each yo node keeps a persistent
// ed25519 private key; the hex public key is the owning key of the node's
// party on the ledger and every signature the node produces is made with it.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"

	"yo.mini/yo/internal/types"
)

// Identity represents a node's cryptographic identity
type Identity struct {
	privateKey   ed25519.PrivateKey
	publicKey    ed25519.PublicKey
	publicKeyHex string
}

// NewIdentity creates a new Identity from a private key
func NewIdentity(privKey ed25519.PrivateKey) *Identity {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey:   privKey,
		publicKey:    pubKey,
		publicKeyHex: hex.EncodeToString(pubKey),
	}
}

// Sign signs the provided message with the identity's private key
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.privateKey, message)
}

// Verify verifies a signature against a message using the identity's public key
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.publicKey, message, signature)
}

// PublicKey returns the raw public key
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// PublicKeyHex returns the hex-encoded public key, the owning key of the
// node's party.
func (i *Identity) PublicKeyHex() string {
	return i.publicKeyHex
}

// Party returns the ledger party named name and owned by this identity.
func (i *Identity) Party(name string) types.Party {
	return types.Party{Name: name, OwningKey: i.publicKeyHex}
}

// Fingerprint returns the short label of the identity's key.
func (i *Identity) Fingerprint() string {
	return Fingerprint(i.publicKeyHex)
}
