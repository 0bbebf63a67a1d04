package types

// Party is a ledger participant. OwningKey is the hex-encoded ed25519 public
// key of the party; two parties are equal only when both fields match.
type Party struct {
	Name      string `json:"name" cbor:"1,keyasint"`
	OwningKey string `json:"owning_key" cbor:"2,keyasint"`
}

func (p Party) String() string {
	return p.Name
}

// IsZero reports whether p is the empty party.
func (p Party) IsZero() bool {
	return p == (Party{})
}
