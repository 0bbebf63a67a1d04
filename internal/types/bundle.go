package types

import (
	"fmt"
	"sort"
)

// CommandKind names the intent a command declares.
type CommandKind string

const (
	CommandSend CommandKind = "Send"
)

// Command declares an intent and the keys that must authorize it.
type Command struct {
	Kind    CommandKind `json:"kind" cbor:"1,keyasint"`
	Signers []string    `json:"signers" cbor:"2,keyasint"`
}

// StateRef points at output Index of a previously recorded transaction.
type StateRef struct {
	TxID  string `json:"tx_id" cbor:"1,keyasint"`
	Index int    `json:"index" cbor:"2,keyasint"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s(%d)", r.TxID, r.Index)
}

// TransactionState is one output of a bundle. Yo is set for states of the
// Yo contract; Data carries the opaque encoding of any other contract's state.
type TransactionState struct {
	Contract string   `json:"contract" cbor:"1,keyasint"`
	Yo       *YoState `json:"yo,omitempty" cbor:"2,keyasint,omitempty"`
	Data     []byte   `json:"data,omitempty" cbor:"3,keyasint,omitempty"`
}

// Bundle is a proposed state transition: consumed inputs, produced outputs
// and the commands authorizing it.
type Bundle struct {
	Notary   Party              `json:"notary" cbor:"1,keyasint"`
	Inputs   []StateRef         `json:"inputs" cbor:"2,keyasint"`
	Outputs  []TransactionState `json:"outputs" cbor:"3,keyasint"`
	Commands []Command          `json:"commands" cbor:"4,keyasint"`
}

// CommandsOfKind returns the commands of the given kind in bundle order.
func (b Bundle) CommandsOfKind(kind CommandKind) []Command {
	var out []Command
	for _, c := range b.Commands {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// RequiredSigners returns the distinct keys named by any command, sorted.
func (b Bundle) RequiredSigners() []string {
	seen := make(map[string]struct{})
	for _, c := range b.Commands {
		for _, k := range c.Signers {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// YoStates returns the Yo states among the outputs.
func (b Bundle) YoStates() []YoState {
	var out []YoState
	for _, o := range b.Outputs {
		if o.Yo != nil {
			out = append(out, *o.Yo)
		}
	}
	return out
}

// Encode returns the canonical encoding of the bundle.
func (b Bundle) Encode() ([]byte, error) {
	return EncodeCanonical(b)
}

// Sign encodes the bundle and returns an envelope carrying the signer's
// signature over the transaction ID.
func (b Bundle) Sign(s Signer) (*SignedBundle, error) {
	raw, err := b.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	stx := &SignedBundle{Bundle: raw}
	stx.AddSignature(stx.SignWith(s))
	return stx, nil
}
