// Package flow runs the submission workflow for a Yo: build, validate and
// sign the bundle, then hand it to finality. Flows are registered by name in
// a Registry at startup and started through it.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/finality"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/telemetry"
	"yo.mini/yo/internal/types"
)

// YoFlowName is the registry name of the Yo flow.
const YoFlowName = "YoFlow"

// Verifier validates a bundle against its contracts.
type Verifier interface {
	Verify(b types.Bundle) error
}

// NotaryLocator picks the notary for new bundles.
type NotaryLocator interface {
	Notary() (network.Node, error)
}

// Finalizer obtains finality for a signed bundle.
type Finalizer interface {
	Finalize(ctx context.Context, stx *types.SignedBundle, recipients []types.Party) (*finality.Record, error)
}

// YoConfig holds the collaborators of a YoFlow.
type YoConfig struct {
	Me        types.Party
	Signer    types.Signer
	Notaries  NotaryLocator
	Verifier  Verifier
	Finalizer Finalizer
	// Events receives phase transitions when set. Sends never block; a
	// full channel drops the event.
	Events chan<- Event
	Logger *logger.Logger
}

// YoFlow sends a Yo from Me to a target party.
type YoFlow struct {
	cfg YoConfig
}

// NewYoFlow creates the flow. A nil Verifier uses contract.Default().
func NewYoFlow(cfg YoConfig) *YoFlow {
	if cfg.Verifier == nil {
		cfg.Verifier = contract.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New(100)
	}
	return &YoFlow{cfg: cfg}
}

// Run builds a Yo to target and finalizes it.
func (f *YoFlow) Run(ctx context.Context, target types.Party) (*finality.Record, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "YoFlow.Run", trace.WithAttributes(
		attribute.String("yo.origin", f.cfg.Me.Name),
		attribute.String("yo.target", target.Name),
	))
	defer span.End()

	stx, err := f.Build(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build")
		return nil, err
	}
	rec, err := f.Finalize(ctx, stx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize")
		return nil, err
	}
	return rec, nil
}

// Build creates the Yo state and Send command, validates the bundle and
// signs it. A validation error is returned unchanged.
func (f *YoFlow) Build(ctx context.Context, target types.Party) (*types.SignedBundle, error) {
	end := f.enter(ctx, PhaseCreating)
	n, err := f.cfg.Notaries.Notary()
	if err != nil {
		return nil, f.fail(end, err)
	}
	yo := types.NewYoState(f.cfg.Me, target)
	b := types.Bundle{
		Notary:   n.Party,
		Outputs:  []types.TransactionState{{Contract: contract.ContractID, Yo: &yo}},
		Commands: []types.Command{{Kind: types.CommandSend, Signers: []string{f.cfg.Me.OwningKey}}},
	}
	end(nil)

	end = f.enter(ctx, PhaseVerifying)
	if err := f.cfg.Verifier.Verify(b); err != nil {
		return nil, f.fail(end, err)
	}
	end(nil)

	end = f.enter(ctx, PhaseSigning)
	stx, err := b.Sign(f.cfg.Signer)
	if err != nil {
		return nil, f.fail(end, err)
	}
	end(nil)

	return stx, nil
}

// Finalize hands stx to the finalizer with the Yo targets as recipients.
// Errors are returned unchanged; there is no retry.
func (f *YoFlow) Finalize(ctx context.Context, stx *types.SignedBundle) (*finality.Record, error) {
	end := f.enter(ctx, PhaseSending)
	b, err := stx.GetBundle()
	if err != nil {
		return nil, f.fail(end, err)
	}
	var recipients []types.Party
	for _, yo := range b.YoStates() {
		recipients = append(recipients, yo.Target)
	}
	if len(recipients) == 0 {
		return nil, f.fail(end, errors.New("bundle carries no Yo"))
	}

	rec, err := f.cfg.Finalizer.Finalize(ctx, stx, recipients)
	if err != nil {
		return nil, f.fail(end, err)
	}
	end(nil)

	f.emit(PhaseDone, nil)
	return rec, nil
}

// enter starts a phase span and reports the phase. The returned function
// ends the span.
func (f *YoFlow) enter(ctx context.Context, p Phase) func(error) {
	_, span := telemetry.Tracer().Start(ctx, fmt.Sprintf("YoFlow/%s", p))
	f.emit(p, nil)
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (f *YoFlow) fail(end func(error), err error) error {
	end(err)
	f.emit(PhaseFailed, err)
	return err
}

func (f *YoFlow) emit(p Phase, err error) {
	if err != nil {
		f.cfg.Logger.Warningf("%s: %s: %v", YoFlowName, p, err)
	} else {
		f.cfg.Logger.Infof("%s: %s", YoFlowName, p)
	}
	if f.cfg.Events == nil {
		return
	}
	select {
	case f.cfg.Events <- Event{Flow: YoFlowName, Phase: p, Err: err, At: time.Now()}:
	default:
	}
}
