package notary

import (
	"errors"
	"fmt"

	"yo.mini/yo/internal/types"
)

var (
	ErrConflict    = errors.New("notarisation conflict")
	ErrWrongNotary = errors.New("bundle names a different notary")
	ErrRejected    = errors.New("notary rejected the bundle")
)

// ConflictError reports a transaction the notary has already signed, or an
// input an earlier transaction already consumed.
type ConflictError struct {
	TxID       string
	Input      *types.StateRef
	ConsumedBy string
}

func (e ConflictError) Error() string {
	if e.Input != nil {
		return fmt.Sprintf("input %s of %s was already consumed by %s", e.Input, e.TxID, e.ConsumedBy)
	}
	return fmt.Sprintf("transaction %s was already notarised", e.TxID)
}

func (e ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// WrongNotaryError reports a bundle addressed to another notary.
type WrongNotaryError struct {
	Want types.Party
	Got  types.Party
}

func (e WrongNotaryError) Error() string {
	return fmt.Sprintf("bundle names notary %q, this notary is %q", e.Got.Name, e.Want.Name)
}

func (e WrongNotaryError) Is(target error) bool {
	return target == ErrWrongNotary
}

// RemoteError is a rejection returned by a notary over JSON-RPC.
type RemoteError struct {
	Code    int
	Message string
	Data    string
}

func (e *RemoteError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("notary error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("notary error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.Code == CodeConflict
	case ErrWrongNotary:
		return e.Code == CodeWrongNotary
	case ErrRejected:
		return e.Code >= CodeEncodingError && e.Code <= CodeWrongNotary
	}
	return false
}
