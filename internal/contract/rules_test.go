package contract_test

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/types"
)

var (
	alice   = types.Party{Name: "Alice", OwningKey: "a1a1a1"}
	bob     = types.Party{Name: "Bob", OwningKey: "b0b0b0"}
	mallory = types.Party{Name: "Mallory", OwningKey: "7a7a7a"}
)

func yoOutput(origin, target types.Party) types.TransactionState {
	yo := types.NewYoState(origin, target)
	return types.TransactionState{Contract: contract.ContractID, Yo: &yo}
}

func send(signers ...types.Party) types.Command {
	keys := make([]string, len(signers))
	for i, p := range signers {
		keys[i] = p.OwningKey
	}
	return types.Command{Kind: types.CommandSend, Signers: keys}
}

func validBundle() types.Bundle {
	return types.Bundle{
		Outputs:  []types.TransactionState{yoOutput(alice, bob)},
		Commands: []types.Command{send(alice)},
	}
}

func TestScenarios(t *testing.T) {
	testDefs := []struct {
		name    string
		bundle  types.Bundle
		wantErr error
	}{
		{
			name: "input state present",
			bundle: types.Bundle{
				Inputs:   []types.StateRef{{TxID: "dummy", Index: 0}},
				Outputs:  []types.TransactionState{yoOutput(alice, bob)},
				Commands: []types.Command{send(alice)},
			},
			wantErr: contract.ErrUnexpectedInputs,
		},
		{
			name: "two outputs",
			bundle: types.Bundle{
				Outputs:  []types.TransactionState{yoOutput(alice, bob), yoOutput(alice, bob)},
				Commands: []types.Command{send(alice)},
			},
			wantErr: contract.ErrWrongOutputCount,
		},
		{
			name: "sending to yourself",
			bundle: types.Bundle{
				Outputs:  []types.TransactionState{yoOutput(alice, alice)},
				Commands: []types.Command{send(alice)},
			},
			wantErr: contract.ErrSelfAddressed,
		},
		{
			name: "same key under another name",
			bundle: types.Bundle{
				Outputs:  []types.TransactionState{yoOutput(alice, types.Party{Name: "AliceAlias", OwningKey: alice.OwningKey})},
				Commands: []types.Command{send(alice)},
			},
			wantErr: contract.ErrSelfAddressed,
		},
		{
			name: "signed by wrong key",
			bundle: types.Bundle{
				Outputs:  []types.TransactionState{yoOutput(alice, bob)},
				Commands: []types.Command{send(mallory)},
			},
			wantErr: contract.ErrUnauthorizedSigner,
		},
		{
			name:   "valid Yo",
			bundle: validBundle(),
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := contract.Verify(testDef.bundle)
			if testDef.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, testDef.wantErr)
		})
	}
}

func TestCommandRules(t *testing.T) {
	t.Run("no command", func(t *testing.T) {
		b := validBundle()
		b.Commands = nil
		assert.ErrorIs(t, contract.Verify(b), contract.ErrMissingOrAmbiguousCommand)
	})
	t.Run("wrong command kind", func(t *testing.T) {
		b := validBundle()
		b.Commands = []types.Command{{Kind: "Dummy", Signers: []string{alice.OwningKey}}}
		assert.ErrorIs(t, contract.Verify(b), contract.ErrMissingOrAmbiguousCommand)
	})
	t.Run("two send commands", func(t *testing.T) {
		b := validBundle()
		b.Commands = append(b.Commands, send(alice))
		err := contract.Verify(b)
		require.ErrorIs(t, err, contract.ErrMissingOrAmbiguousCommand)
		var cmdErr contract.MissingOrAmbiguousCommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, 2, cmdErr.Count)
	})
	t.Run("other command kinds are ignored", func(t *testing.T) {
		b := validBundle()
		b.Commands = append(b.Commands, types.Command{Kind: "Dummy", Signers: []string{mallory.OwningKey}})
		assert.NoError(t, contract.Verify(b))
	})
	t.Run("duplicate signer collapses to a set", func(t *testing.T) {
		b := validBundle()
		b.Commands = []types.Command{send(alice, alice)}
		assert.NoError(t, contract.Verify(b))
	})
	t.Run("extra signer is unauthorized", func(t *testing.T) {
		b := validBundle()
		b.Commands = []types.Command{send(alice, bob)}
		assert.ErrorIs(t, contract.Verify(b), contract.ErrUnauthorizedSigner)
	})
	t.Run("no signers is unauthorized", func(t *testing.T) {
		b := validBundle()
		b.Commands = []types.Command{{Kind: types.CommandSend}}
		assert.ErrorIs(t, contract.Verify(b), contract.ErrUnauthorizedSigner)
	})
}

func TestNonYoOutputIsRejected(t *testing.T) {
	b := validBundle()
	b.Outputs = []types.TransactionState{{Contract: "dummy.contract", Data: []byte{0x01}}}
	assert.ErrorIs(t, contract.Verify(b), contract.ErrUnexpectedOutputType)
}

func TestValidationErrorReportsRule(t *testing.T) {
	b := validBundle()
	b.Outputs = nil
	err := contract.Verify(b)
	var vErr *contract.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, contract.ContractID, vErr.Contract)
	assert.Equal(t, "single-output", vErr.Rule)
	assert.Equal(t, 2, vErr.Index)
}

// randomBundle builds a bundle with one Send command and then perturbs the
// requested aspects, leaving the rest valid.
func randomBundle(r *rand.Rand, inputs, outputs int, selfAddressed bool, signer types.Party) types.Bundle {
	b := types.Bundle{Commands: []types.Command{send(signer)}}
	for i := 0; i < inputs; i++ {
		b.Inputs = append(b.Inputs, types.StateRef{TxID: fmt.Sprintf("tx-%d", r.Intn(1000)), Index: r.Intn(4)})
	}
	target := bob
	if selfAddressed {
		target = alice
	}
	for i := 0; i < outputs; i++ {
		b.Outputs = append(b.Outputs, yoOutput(alice, target))
	}
	return b
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	signers := []types.Party{alice, bob, mallory}

	for i := 0; i < 200; i++ {
		inputs := r.Intn(3)
		outputs := r.Intn(4)
		self := r.Intn(2) == 0
		signer := signers[r.Intn(len(signers))]
		b := randomBundle(r, inputs, outputs, self, signer)
		err := contract.Verify(b)

		switch {
		case inputs > 0:
			assert.ErrorIs(t, err, contract.ErrUnexpectedInputs, "bundle %d", i)
		case outputs != 1:
			assert.ErrorIs(t, err, contract.ErrWrongOutputCount, "bundle %d", i)
		case self:
			assert.ErrorIs(t, err, contract.ErrSelfAddressed, "bundle %d", i)
		case signer != alice:
			assert.ErrorIs(t, err, contract.ErrUnauthorizedSigner, "bundle %d", i)
		default:
			assert.NoError(t, err, "bundle %d", i)
		}

		// Validation is a pure function of its input.
		assert.Equal(t, err, contract.Verify(b), "bundle %d", i)
	}
}

func TestConcurrentVerify(t *testing.T) {
	valid := validBundle()
	invalid := validBundle()
	invalid.Commands = []types.Command{send(mallory)}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := contract.Verify(valid); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if err := contract.Verify(invalid); !errors.Is(err, contract.ErrUnauthorizedSigner) {
				errs <- fmt.Errorf("unexpected result: %v", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRegistry(t *testing.T) {
	reg := contract.Default()
	assert.Equal(t, []string{contract.ContractID}, reg.Contracts())
	assert.NoError(t, reg.Verify(validBundle()))
	assert.Error(t, reg.Register(contract.ContractID, contract.Verify))

	b := validBundle()
	b.Outputs = []types.TransactionState{{Contract: "dummy.contract"}}
	assert.ErrorIs(t, reg.Verify(b), contract.ErrUnknownContract)

	called := false
	require.NoError(t, reg.Register("dummy.contract", func(types.Bundle) error {
		called = true
		return nil
	}))
	assert.NoError(t, reg.Verify(b))
	assert.True(t, called)

	assert.ErrorIs(t, reg.Verify(types.Bundle{}), contract.ErrMissingOrAmbiguousCommand)
}

func TestLegalContractReference(t *testing.T) {
	assert.Len(t, contract.LegalContractReference, 64)
}
