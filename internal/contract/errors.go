package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingOrAmbiguousCommand = errors.New("missing or ambiguous command")
	ErrUnexpectedInputs          = errors.New("unexpected inputs")
	ErrWrongOutputCount          = errors.New("wrong output count")
	ErrUnexpectedOutputType      = errors.New("unexpected output type")
	ErrSelfAddressed             = errors.New("self addressed")
	ErrUnauthorizedSigner        = errors.New("unauthorized signer")
	ErrUnknownContract           = errors.New("unknown contract")
)

// ValidationError wraps the first rule violation found in a bundle.
type ValidationError struct {
	Contract string
	Rule     string
	Index    int
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: rule %d (%s) failed: %v", e.Contract, e.Index, e.Rule, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

type MissingOrAmbiguousCommandError struct {
	Kind  string
	Count int
}

func (e MissingOrAmbiguousCommandError) Error() string {
	return fmt.Sprintf("required exactly one %s command, found %d", e.Kind, e.Count)
}

func (MissingOrAmbiguousCommandError) Is(target error) bool {
	return target == ErrMissingOrAmbiguousCommand
}

type UnexpectedInputsError struct {
	Count int
}

func (e UnexpectedInputsError) Error() string {
	return fmt.Sprintf("there can be no inputs when sending a Yo (found %d)", e.Count)
}

func (UnexpectedInputsError) Is(target error) bool {
	return target == ErrUnexpectedInputs
}

type WrongOutputCountError struct {
	Count int
}

func (e WrongOutputCountError) Error() string {
	return fmt.Sprintf("there must be one output, the Yo (found %d)", e.Count)
}

func (WrongOutputCountError) Is(target error) bool {
	return target == ErrWrongOutputCount
}

type UnexpectedOutputTypeError struct {
	Contract string
}

func (e UnexpectedOutputTypeError) Error() string {
	return fmt.Sprintf("output is not a Yo state (contract %q)", e.Contract)
}

func (UnexpectedOutputTypeError) Is(target error) bool {
	return target == ErrUnexpectedOutputType
}

type SelfAddressedError struct {
	Party string
}

func (e SelfAddressedError) Error() string {
	return fmt.Sprintf("no sending Yos to yourself (%s)", e.Party)
}

func (SelfAddressedError) Is(target error) bool {
	return target == ErrSelfAddressed
}

type UnauthorizedSignerError struct {
	Expected string
	Signers  []string
}

func (e UnauthorizedSignerError) Error() string {
	return fmt.Sprintf(
		"the Yo must be signed by the sender only: expected %s, got [%s]",
		e.Expected,
		strings.Join(e.Signers, ", "),
	)
}

func (UnauthorizedSignerError) Is(target error) bool {
	return target == ErrUnauthorizedSigner
}

type UnknownContractError struct {
	Contract string
}

func (e UnknownContractError) Error() string {
	return fmt.Sprintf("no contract registered for %q", e.Contract)
}

func (UnknownContractError) Is(target error) bool {
	return target == ErrUnknownContract
}
