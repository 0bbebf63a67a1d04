package finality

import (
	"context"
	"fmt"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
)

// Receiver accepts finalized transactions delivered by other nodes.
type Receiver struct {
	self      types.Party
	network   *network.Map
	contracts *contract.Registry
	recorder  Recorder
	logger    *logger.Logger
}

// NewReceiver creates a receiver for the node owning self.
func NewReceiver(self types.Party, m *network.Map, contracts *contract.Registry, r Recorder, l *logger.Logger) *Receiver {
	if contracts == nil {
		contracts = contract.Default()
	}
	if l == nil {
		l = logger.New(100)
	}
	return &Receiver{self: self, network: m, contracts: contracts, recorder: r, logger: l}
}

// Receive checks stx and records it. The notary must be a known notary,
// every command signer and the notary must have signed, the contract must
// accept the bundle and at least one Yo must be addressed to this node.
// Verification failures are *RejectedError; a transaction that is already
// recorded is accepted again.
func (r *Receiver) Receive(ctx context.Context, stx *types.SignedBundle) (*Record, error) {
	txID := stx.ID()
	reject := func(err error) (*Record, error) {
		r.logger.Warningf("Finality: rejected %s: %v", txID, err)
		return nil, &RejectedError{TxID: txID, Err: err}
	}

	b, err := stx.GetBundle()
	if err != nil {
		return reject(err)
	}

	node, err := r.network.NodeForParty(b.Notary)
	if err != nil || !node.Notary {
		return reject(fmt.Errorf("%w: %s", ErrUntrustedNotary, b.Notary.Name))
	}
	if err := stx.VerifyRequired(requiredKeys(b)); err != nil {
		return reject(err)
	}
	if err := r.contracts.Verify(b); err != nil {
		return reject(err)
	}
	if !r.relevant(b) {
		return reject(ErrNotRelevant)
	}

	added, err := r.recorder.Record(ctx, stx)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", txID, err)
	}
	if added {
		for _, yo := range b.YoStates() {
			r.logger.Infof("Received %s", yo)
		}
	}
	return &Record{TxID: txID, Transaction: stx, Recipients: []types.Party{r.self}}, nil
}

func (r *Receiver) relevant(b types.Bundle) bool {
	keys := []string{r.self.OwningKey}
	for _, yo := range b.YoStates() {
		if yo.IsRelevant(keys) {
			return true
		}
	}
	return false
}
