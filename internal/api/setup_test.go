package api

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/discovery"
	"yo.mini/yo/internal/docs"
	"yo.mini/yo/internal/finality"
	"yo.mini/yo/internal/flow"
	"yo.mini/yo/internal/identity"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/notary"
	"yo.mini/yo/internal/types"
	"yo.mini/yo/internal/vault"
)

// testEnv is a node named Alice that knows Bob and a Controller notary.
// The Yo flow is a stub whose outcome each test chooses.
type testEnv struct {
	svc        *Service
	store      *vault.Store
	network    *network.Map
	logger     *logger.Logger
	alice      *identity.Identity
	bob        *identity.Identity
	controller *identity.Identity
	flowErr    error
	flowTarget types.Party
}

func newIdentity(t *testing.T, name string) *identity.Identity {
	t.Helper()
	id, err := identity.LoadOrCreateIdentity(filepath.Join(t.TempDir(), name+".pem"))
	if err != nil {
		t.Fatalf("identity %s: %v", name, err)
	}
	return id
}

// setupTest creates a temporary vault and service for testing
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		alice:      newIdentity(t, "alice"),
		bob:        newIdentity(t, "bob"),
		controller: newIdentity(t, "controller"),
		logger:     logger.New(100),
	}

	store, err := vault.NewStore(filepath.Join(t.TempDir(), "yo.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	env.store = store

	env.network = network.NewMap(network.Node{Party: env.alice.Party("Alice"), Address: "http://alice"})
	mustAdd(t, env.network, network.Node{Party: env.bob.Party("Bob"), Address: "http://bob"})
	mustAdd(t, env.network, network.Node{Party: env.controller.Party("Controller"), Address: "http://controller", Notary: true})

	flows := flow.NewRegistry()
	if err := flows.Register(flow.YoFlowName, func(ctx context.Context, args flow.Args) (*finality.Record, error) {
		env.flowTarget = args.Target
		if env.flowErr != nil {
			return nil, env.flowErr
		}
		return &finality.Record{TxID: "tx-1", Recipients: []types.Party{args.Target}}, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	env.svc = NewService(Config{
		Network:  env.network,
		Flows:    flows,
		Vault:    store,
		Receiver: finality.NewReceiver(env.alice.Party("Alice"), env.network, contract.Default(), store, env.logger),
		Docs: docs.NewService(fstest.MapFS{
			"yo.adoc": {Data: []byte("= Yo\n\nSay *Yo!*.\n")},
		}),
		Logger: env.logger,
	})
	return env
}

func mustAdd(t *testing.T, m *network.Map, n network.Node) {
	t.Helper()
	if err := m.Add(n); err != nil {
		t.Fatalf("Add %s: %v", n.Party.Name, err)
	}
}

// finalizedYo returns a Yo from Bob to Alice carrying Bob's and the
// Controller's signatures.
func (env *testEnv) finalizedYo(t *testing.T) *types.SignedBundle {
	t.Helper()
	yo := types.NewYoState(env.bob.Party("Bob"), env.alice.Party("Alice"))
	b := types.Bundle{
		Notary:   env.controller.Party("Controller"),
		Outputs:  []types.TransactionState{{Contract: contract.ContractID, Yo: &yo}},
		Commands: []types.Command{{Kind: types.CommandSend, Signers: []string{env.bob.PublicKeyHex()}}},
	}
	stx, err := b.Sign(env.bob)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	n := notary.NewService(env.controller, env.controller.Party("Controller"), contract.Default(), nil)
	sig, err := n.Notarise(context.Background(), stx)
	if err != nil {
		t.Fatalf("Notarise: %v", err)
	}
	stx.AddSignature(sig)
	return stx
}

type fakeScanner struct {
	done chan int
}

func (f *fakeScanner) ScanInto(ctx context.Context, sink discovery.Sink) (int, error) {
	err := sink.Add(network.Node{Party: types.Party{Name: "Carol", OwningKey: "ca01"}, Address: "http://carol"})
	n := 1
	if err != nil {
		n = 0
	}
	f.done <- n
	return n, err
}
