package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Signer produces ed25519 signatures with a single key.
type Signer interface {
	PublicKeyHex() string
	Sign(message []byte) []byte
}

// Signature binds a key to a transaction ID.
type Signature struct {
	Key string `json:"key"`
	Sig []byte `json:"sig"`
}

// SignedBundle is the envelope that travels between nodes. Bundle holds the
// canonical encoding; signatures are made over the blake2b-256 of those bytes.
type SignedBundle struct {
	Bundle     []byte      `json:"bundle"`
	Signatures []Signature `json:"signatures"`
}

// ID returns the transaction ID (hex).
func (stx *SignedBundle) ID() string {
	return HashID(stx.Bundle)
}

func (stx *SignedBundle) idBytes() []byte {
	sum := blake2b.Sum256(stx.Bundle)
	return sum[:]
}

// GetBundle decodes the enclosed bundle.
func (stx *SignedBundle) GetBundle() (Bundle, error) {
	var b Bundle
	if err := DecodeCanonical(stx.Bundle, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode bundle: %w", err)
	}
	return b, nil
}

// SignWith returns s's signature over the transaction ID without attaching it.
func (stx *SignedBundle) SignWith(s Signer) Signature {
	return Signature{Key: s.PublicKeyHex(), Sig: s.Sign(stx.idBytes())}
}

// AddSignature attaches sig, replacing an earlier signature by the same key.
func (stx *SignedBundle) AddSignature(sig Signature) {
	for i, existing := range stx.Signatures {
		if existing.Key == sig.Key {
			stx.Signatures[i] = sig
			return
		}
	}
	stx.Signatures = append(stx.Signatures, sig)
}

// VerifySignature checks one signature against the transaction ID.
func (stx *SignedBundle) VerifySignature(sig Signature) error {
	pub, err := hex.DecodeString(sig.Key)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return InvalidSignatureError{Key: sig.Key}
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), stx.idBytes(), sig.Sig) {
		return InvalidSignatureError{Key: sig.Key}
	}
	return nil
}

// VerifySignatures checks every attached signature.
func (stx *SignedBundle) VerifySignatures() error {
	for _, sig := range stx.Signatures {
		if err := stx.VerifySignature(sig); err != nil {
			return err
		}
	}
	return nil
}

// VerifyRequired checks every attached signature and that each key in
// required has signed.
func (stx *SignedBundle) VerifyRequired(required []string) error {
	if err := stx.VerifySignatures(); err != nil {
		return err
	}
	if missing := stx.Missing(required); len(missing) > 0 {
		return MissingSignaturesError{Keys: missing}
	}
	return nil
}

// Missing returns the keys in required that have not signed.
func (stx *SignedBundle) Missing(required []string) []string {
	signed := make(map[string]struct{}, len(stx.Signatures))
	for _, sig := range stx.Signatures {
		signed[sig.Key] = struct{}{}
	}
	var missing []string
	for _, k := range required {
		if _, ok := signed[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
