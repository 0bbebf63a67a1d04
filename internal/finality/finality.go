// Package finality turns a signed, validated bundle into a recorded
// transaction: it obtains the notary signature, checks that every required
// key has signed, records the result locally and delivers it to the
// recipients' nodes. Receiver is the other half, run by the recipient.
package finality

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/notary"
	"yo.mini/yo/internal/telemetry"
	"yo.mini/yo/internal/types"
)

// Recorder stores finalized transactions.
type Recorder interface {
	Record(ctx context.Context, stx *types.SignedBundle) (bool, error)
}

// Distributor delivers a finalized transaction to one party's node.
type Distributor interface {
	Deliver(ctx context.Context, to types.Party, stx *types.SignedBundle) error
}

// Record is the outcome of a successful finalization.
type Record struct {
	TxID        string              `json:"tx_id"`
	Transaction *types.SignedBundle `json:"transaction"`
	Recipients  []types.Party       `json:"recipients"`
}

// Finalizer drives notarisation, recording and delivery.
type Finalizer struct {
	notariser   notary.Notariser
	recorder    Recorder
	distributor Distributor
	logger      *logger.Logger
}

// NewFinalizer wires a finalizer from its collaborators.
func NewFinalizer(n notary.Notariser, r Recorder, d Distributor, l *logger.Logger) *Finalizer {
	if l == nil {
		l = logger.New(100)
	}
	return &Finalizer{notariser: n, recorder: r, distributor: d, logger: l}
}

// Finalize finalizes stx and delivers it to recipients. Every failure is a
// *DistributionError; nothing is retried and a partial delivery is not
// undone.
func (f *Finalizer) Finalize(ctx context.Context, stx *types.SignedBundle, recipients []types.Party) (*Record, error) {
	txID := stx.ID()
	ctx, span := telemetry.Tracer().Start(ctx, "finality.Finalize")
	span.SetAttributes(attribute.String("yo.tx_id", txID))
	defer span.End()

	fail := func(stage Stage, err error) (*Record, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
		f.logger.Errorf("Finality: %s failed for %s: %v", stage, txID, err)
		return nil, &DistributionError{Stage: stage, TxID: txID, Err: err}
	}

	b, err := stx.GetBundle()
	if err != nil {
		return fail(StageVerify, err)
	}

	final := &types.SignedBundle{
		Bundle:     stx.Bundle,
		Signatures: append([]types.Signature(nil), stx.Signatures...),
	}

	sig, err := f.notariser.Notarise(ctx, final)
	if err != nil {
		return fail(StageNotarise, err)
	}
	if sig.Key != b.Notary.OwningKey {
		return fail(StageNotarise, fmt.Errorf("signature by %s, expected notary %s", sig.Key, b.Notary))
	}
	final.AddSignature(sig)

	if err := final.VerifyRequired(requiredKeys(b)); err != nil {
		return fail(StageVerify, err)
	}

	if _, err := f.recorder.Record(ctx, final); err != nil {
		return fail(StageRecord, err)
	}
	f.logger.Infof("Finality: recorded %s", txID)

	for _, to := range recipients {
		if err := f.distributor.Deliver(ctx, to, final); err != nil {
			return fail(StageDeliver, fmt.Errorf("deliver to %s: %w", to.Name, err))
		}
		f.logger.Infof("Finality: delivered %s to %s", txID, to.Name)
	}

	return &Record{TxID: txID, Transaction: final, Recipients: recipients}, nil
}

// requiredKeys is every command signer plus the notary.
func requiredKeys(b types.Bundle) []string {
	keys := b.RequiredSigners()
	if b.Notary.OwningKey != "" {
		keys = append(keys, b.Notary.OwningKey)
	}
	return keys
}
