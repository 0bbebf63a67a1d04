package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrMissingSignatures = errors.New("missing signatures")
)

// InvalidSignatureError reports a signature that does not verify for its key.
type InvalidSignatureError struct {
	Key string
}

func (e InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature for key %s", e.Key)
}

func (InvalidSignatureError) Is(target error) bool {
	return target == ErrInvalidSignature
}

// MissingSignaturesError lists required keys that have not signed.
type MissingSignaturesError struct {
	Keys []string
}

func (e MissingSignaturesError) Error() string {
	return "missing signatures from: " + strings.Join(e.Keys, ", ")
}

func (MissingSignaturesError) Is(target error) bool {
	return target == ErrMissingSignatures
}
