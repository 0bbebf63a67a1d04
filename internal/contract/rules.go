package contract

import (
	"sort"

	"yo.mini/yo/internal/types"
)

// RuleFunc checks one property of a bundle.
type RuleFunc func(b types.Bundle) error

// Rule is a named RuleFunc.
type Rule struct {
	Name  string
	Check RuleFunc
}

// YoRules are the rules of the Yo contract in evaluation order. Later rules
// may rely on the shape guaranteed by earlier ones.
var YoRules = []Rule{
	{Name: "single-send-command", Check: ValidateSingleSendCommand},
	{Name: "no-inputs", Check: ValidateNoInputs},
	{Name: "single-output", Check: ValidateSingleOutput},
	{Name: "not-self-addressed", Check: ValidateNotSelfAddressed},
	{Name: "signed-by-sender", Check: ValidateSignedBySender},
}

// ValidateSingleSendCommand ensures exactly one Send command is present.
// Commands of other kinds are not counted.
func ValidateSingleSendCommand(b types.Bundle) error {
	sends := b.CommandsOfKind(types.CommandSend)
	if len(sends) == 1 {
		return nil
	}
	return MissingOrAmbiguousCommandError{
		Kind:  string(types.CommandSend),
		Count: len(sends),
	}
}

// ValidateNoInputs ensures the bundle consumes nothing
func ValidateNoInputs(b types.Bundle) error {
	if len(b.Inputs) == 0 {
		return nil
	}
	return UnexpectedInputsError{Count: len(b.Inputs)}
}

// ValidateSingleOutput ensures the bundle produces exactly one state
func ValidateSingleOutput(b types.Bundle) error {
	if len(b.Outputs) == 1 {
		return nil
	}
	return WrongOutputCountError{Count: len(b.Outputs)}
}

// ValidateNotSelfAddressed ensures the single output is a Yo whose target
// key differs from its origin key. Names are labels; keys are identities.
func ValidateNotSelfAddressed(b types.Bundle) error {
	yo, err := singleYo(b)
	if err != nil {
		return err
	}
	if yo.Target.OwningKey != yo.Origin.OwningKey {
		return nil
	}
	return SelfAddressedError{Party: yo.Origin.Name}
}

// ValidateSignedBySender ensures the Send command's signers, taken as a set,
// are exactly the origin's owning key.
func ValidateSignedBySender(b types.Bundle) error {
	yo, err := singleYo(b)
	if err != nil {
		return err
	}
	sends := b.CommandsOfKind(types.CommandSend)
	if len(sends) != 1 {
		return MissingOrAmbiguousCommandError{Kind: string(types.CommandSend), Count: len(sends)}
	}
	signers := signerSet(sends[0].Signers)
	if len(signers) == 1 && signers[0] == yo.Origin.OwningKey {
		return nil
	}
	return UnauthorizedSignerError{
		Expected: yo.Origin.OwningKey,
		Signers:  signers,
	}
}

func singleYo(b types.Bundle) (types.YoState, error) {
	if len(b.Outputs) != 1 {
		return types.YoState{}, WrongOutputCountError{Count: len(b.Outputs)}
	}
	out := b.Outputs[0]
	if out.Contract != ContractID || out.Yo == nil {
		return types.YoState{}, UnexpectedOutputTypeError{Contract: out.Contract}
	}
	return *out.Yo, nil
}

func signerSet(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
