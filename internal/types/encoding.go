package types

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// EncodeCanonical encodes v as core deterministic CBOR (sorted map keys,
// shortest integer forms), so equal values always produce equal bytes.
func EncodeCanonical(v any) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(v)
}

// DecodeCanonical decodes CBOR data into v.
func DecodeCanonical(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// HashID returns the hex blake2b-256 digest of data.
func HashID(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
