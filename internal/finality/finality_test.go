package finality

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/identity"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/notary"
	"yo.mini/yo/internal/types"
)

type memRecorder struct {
	mu  sync.Mutex
	txs map[string]*types.SignedBundle
	err error
}

func newMemRecorder() *memRecorder {
	return &memRecorder{txs: make(map[string]*types.SignedBundle)}
}

func (m *memRecorder) Record(_ context.Context, stx *types.SignedBundle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.txs[stx.ID()]; ok {
		return false, nil
	}
	m.txs[stx.ID()] = stx
	return true, nil
}

type recordingDistributor struct {
	delivered []types.Party
	err       error
}

func (d *recordingDistributor) Deliver(_ context.Context, to types.Party, _ *types.SignedBundle) error {
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, to)
	return nil
}

type failingNotary struct{ err error }

func (n failingNotary) Notarise(context.Context, *types.SignedBundle) (types.Signature, error) {
	return types.Signature{}, n.err
}

type parties struct {
	alice, bob, controller *identity.Identity
}

func newIdentity(t *testing.T, name string) *identity.Identity {
	t.Helper()
	id, err := identity.LoadOrCreateIdentity(filepath.Join(t.TempDir(), name+".pem"))
	if err != nil {
		t.Fatalf("identity %s: %v", name, err)
	}
	return id
}

func newParties(t *testing.T) parties {
	return parties{
		alice:      newIdentity(t, "alice"),
		bob:        newIdentity(t, "bob"),
		controller: newIdentity(t, "controller"),
	}
}

func (p parties) signedYo(t *testing.T) *types.SignedBundle {
	t.Helper()
	yo := types.NewYoState(p.alice.Party("Alice"), p.bob.Party("Bob"))
	b := types.Bundle{
		Notary:   p.controller.Party("Controller"),
		Outputs:  []types.TransactionState{{Contract: contract.ContractID, Yo: &yo}},
		Commands: []types.Command{{Kind: types.CommandSend, Signers: []string{p.alice.PublicKeyHex()}}},
	}
	stx, err := b.Sign(p.alice)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return stx
}

func (p parties) notary() *notary.Service {
	return notary.NewService(p.controller, p.controller.Party("Controller"), contract.Default(), nil)
}

func TestFinalizeRecordsAndDelivers(t *testing.T) {
	p := newParties(t)
	rec := newMemRecorder()
	dist := &recordingDistributor{}
	f := NewFinalizer(p.notary(), rec, dist, nil)

	stx := p.signedYo(t)
	bob := p.bob.Party("Bob")
	res, err := f.Finalize(context.Background(), stx, []types.Party{bob})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.TxID != stx.ID() {
		t.Errorf("unexpected tx id %s", res.TxID)
	}
	if len(res.Transaction.Signatures) != 2 {
		t.Errorf("expected sender and notary signatures, got %d", len(res.Transaction.Signatures))
	}
	if len(stx.Signatures) != 1 {
		t.Errorf("input bundle should not be modified")
	}
	if _, ok := rec.txs[stx.ID()]; !ok {
		t.Error("expected transaction to be recorded locally")
	}
	if len(dist.delivered) != 1 || dist.delivered[0] != bob {
		t.Errorf("unexpected deliveries %+v", dist.delivered)
	}
}

func TestFinalizeFailuresAreDistributionErrors(t *testing.T) {
	p := newParties(t)
	boom := errors.New("boom")

	tests := []struct {
		name      string
		finalizer *Finalizer
		stage     Stage
	}{
		{"notary refuses", NewFinalizer(failingNotary{err: boom}, newMemRecorder(), &recordingDistributor{}, nil), StageNotarise},
		{"record fails", NewFinalizer(p.notary(), &memRecorder{txs: map[string]*types.SignedBundle{}, err: boom}, &recordingDistributor{}, nil), StageRecord},
		{"delivery fails", NewFinalizer(p.notary(), newMemRecorder(), &recordingDistributor{err: boom}, nil), StageDeliver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.finalizer.Finalize(context.Background(), p.signedYo(t), []types.Party{p.bob.Party("Bob")})
			if !errors.Is(err, ErrDistribution) {
				t.Fatalf("expected distribution error, got %v", err)
			}
			var dErr *DistributionError
			if !errors.As(err, &dErr) || dErr.Stage != tt.stage {
				t.Fatalf("expected stage %s, got %v", tt.stage, err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("cause should be preserved: %v", err)
			}
		})
	}
}

func TestFinalizeRejectsForeignNotarySignature(t *testing.T) {
	p := newParties(t)
	// A notary that signs as someone other than the bundle's notary.
	impostor := notary.NewService(p.bob, p.controller.Party("Controller"), contract.Default(), nil)
	f := NewFinalizer(impostor, newMemRecorder(), &recordingDistributor{}, nil)

	_, err := f.Finalize(context.Background(), p.signedYo(t), nil)
	var dErr *DistributionError
	if !errors.As(err, &dErr) || dErr.Stage != StageNotarise {
		t.Fatalf("expected notarise failure, got %v", err)
	}
}

func networkFor(p parties, self types.Party) *network.Map {
	m := network.NewMap(network.Node{Party: self})
	_ = m.Add(network.Node{Party: p.alice.Party("Alice")})
	_ = m.Add(network.Node{Party: p.bob.Party("Bob")})
	_ = m.Add(network.Node{Party: p.controller.Party("Controller"), Notary: true})
	return m
}

func TestReceiver(t *testing.T) {
	p := newParties(t)
	bob := p.bob.Party("Bob")

	finalized := func(t *testing.T) *types.SignedBundle {
		f := NewFinalizer(p.notary(), newMemRecorder(), &recordingDistributor{}, nil)
		res, err := f.Finalize(context.Background(), p.signedYo(t), nil)
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		return res.Transaction
	}

	t.Run("accepts finalized transaction", func(t *testing.T) {
		rec := newMemRecorder()
		r := NewReceiver(bob, networkFor(p, bob), nil, rec, nil)
		stx := finalized(t)
		if _, err := r.Receive(context.Background(), stx); err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if _, ok := rec.txs[stx.ID()]; !ok {
			t.Fatal("expected transaction to be recorded")
		}
		// Redelivery is harmless.
		if _, err := r.Receive(context.Background(), stx); err != nil {
			t.Fatalf("second Receive: %v", err)
		}
	})

	t.Run("rejects missing notary signature", func(t *testing.T) {
		r := NewReceiver(bob, networkFor(p, bob), nil, newMemRecorder(), nil)
		_, err := r.Receive(context.Background(), p.signedYo(t))
		if !errors.Is(err, ErrRejected) || !errors.Is(err, types.ErrMissingSignatures) {
			t.Fatalf("expected rejection for missing signatures, got %v", err)
		}
	})

	t.Run("rejects unknown notary", func(t *testing.T) {
		m := network.NewMap(network.Node{Party: bob})
		r := NewReceiver(bob, m, nil, newMemRecorder(), nil)
		_, err := r.Receive(context.Background(), finalized(t))
		if !errors.Is(err, ErrUntrustedNotary) {
			t.Fatalf("expected untrusted notary, got %v", err)
		}
	})

	t.Run("rejects transaction for someone else", func(t *testing.T) {
		carol := newIdentity(t, "carol").Party("Carol")
		r := NewReceiver(carol, networkFor(p, carol), nil, newMemRecorder(), nil)
		_, err := r.Receive(context.Background(), finalized(t))
		if !errors.Is(err, ErrNotRelevant) {
			t.Fatalf("expected not relevant, got %v", err)
		}
	})

	t.Run("rejects fully signed yo to self", func(t *testing.T) {
		alice := p.alice.Party("Alice")
		yo := types.NewYoState(alice, alice)
		b := types.Bundle{
			Notary:   p.controller.Party("Controller"),
			Outputs:  []types.TransactionState{{Contract: contract.ContractID, Yo: &yo}},
			Commands: []types.Command{{Kind: types.CommandSend, Signers: []string{p.alice.PublicKeyHex()}}},
		}
		stx, err := b.Sign(p.alice)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		// A hostile notary signs what ours would refuse.
		stx.AddSignature(stx.SignWith(p.controller))

		rec := newMemRecorder()
		r := NewReceiver(alice, networkFor(p, alice), nil, rec, nil)
		_, err = r.Receive(context.Background(), stx)
		if !errors.Is(err, ErrRejected) || !errors.Is(err, contract.ErrSelfAddressed) {
			t.Fatalf("expected self-addressed rejection, got %v", err)
		}
		if len(rec.txs) != 0 {
			t.Fatal("rejected transaction was recorded")
		}
	})
}

func TestHTTPDistributor(t *testing.T) {
	p := newParties(t)
	bob := p.bob.Party("Bob")

	var got types.SignedBundle
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ReceivePath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := network.NewMap(network.Node{Party: p.alice.Party("Alice")})
	if err := m.Add(network.Node{Party: bob, Address: srv.URL}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	d := NewHTTPDistributor(m, srv.Client())

	stx := p.signedYo(t)
	if err := d.Deliver(context.Background(), bob, stx); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got.ID() != stx.ID() {
		t.Errorf("server received %s, want %s", got.ID(), stx.ID())
	}

	if err := d.Deliver(context.Background(), types.Party{Name: "Nobody", OwningKey: "00"}, stx); !errors.Is(err, network.ErrUnknownIdentity) {
		t.Errorf("expected unknown identity, got %v", err)
	}
}
