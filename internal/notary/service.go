// Package notary implements the uniqueness service that finalizes Yo
// transactions. A notary refuses to sign a transaction ID twice and refuses
// inputs that an earlier transaction already consumed; otherwise it checks
// the sender signatures and the contract and countersigns the ID.
package notary

import (
	"context"
	"fmt"
	"sync"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/types"
)

// Notariser obtains a notary signature for a signed bundle.
type Notariser interface {
	Notarise(ctx context.Context, stx *types.SignedBundle) (types.Signature, error)
}

// Service is an in-process notary. Its consumed set lives in memory.
type Service struct {
	signer    types.Signer
	party     types.Party
	contracts *contract.Registry
	logger    *logger.Logger

	mu       sync.Mutex
	signed   map[string]struct{}
	consumed map[types.StateRef]string
}

// NewService creates a notary that signs as party with signer.
func NewService(signer types.Signer, party types.Party, contracts *contract.Registry, l *logger.Logger) *Service {
	if contracts == nil {
		contracts = contract.Default()
	}
	if l == nil {
		l = logger.New(100)
	}
	return &Service{
		signer:    signer,
		party:     party,
		contracts: contracts,
		logger:    l,
		signed:    make(map[string]struct{}),
		consumed:  make(map[types.StateRef]string),
	}
}

// Party returns the notary's identity.
func (s *Service) Party() types.Party {
	return s.party
}

// Notarise checks stx and returns the notary's signature over its ID.
func (s *Service) Notarise(ctx context.Context, stx *types.SignedBundle) (types.Signature, error) {
	if err := ctx.Err(); err != nil {
		return types.Signature{}, err
	}

	b, err := stx.GetBundle()
	if err != nil {
		return types.Signature{}, err
	}
	txID := stx.ID()

	if b.Notary != s.party {
		return types.Signature{}, WrongNotaryError{Want: s.party, Got: b.Notary}
	}
	if err := stx.VerifyRequired(b.RequiredSigners()); err != nil {
		return types.Signature{}, fmt.Errorf("check signatures of %s: %w", txID, err)
	}
	if err := s.contracts.Verify(b); err != nil {
		return types.Signature{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.signed[txID]; ok {
		return types.Signature{}, ConflictError{TxID: txID}
	}
	for _, in := range b.Inputs {
		if by, ok := s.consumed[in]; ok {
			ref := in
			return types.Signature{}, ConflictError{TxID: txID, Input: &ref, ConsumedBy: by}
		}
	}

	for _, in := range b.Inputs {
		s.consumed[in] = txID
	}
	s.signed[txID] = struct{}{}

	s.logger.Infof("Notary: signed %s", txID)
	return stx.SignWith(s.signer), nil
}
