package finality

import (
	"errors"
	"fmt"
)

// Stage names the step of finalization that failed.
type Stage string

const (
	StageNotarise Stage = "notarise"
	StageVerify   Stage = "verify"
	StageRecord   Stage = "record"
	StageDeliver  Stage = "deliver"
)

var (
	ErrDistribution    = errors.New("distribution failed")
	ErrRejected        = errors.New("transaction rejected")
	ErrUntrustedNotary = errors.New("notary is not trusted")
	ErrNotRelevant     = errors.New("transaction is not relevant to this node")
)

// DistributionError wraps any failure after local validation succeeded.
type DistributionError struct {
	Stage Stage
	TxID  string
	Err   error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("distribution of %s failed at %s: %v", e.TxID, e.Stage, e.Err)
}

func (e *DistributionError) Unwrap() error { return e.Err }

func (e *DistributionError) Is(target error) bool {
	return target == ErrDistribution
}

// RejectedError reports a transaction a receiving node refused.
type RejectedError struct {
	TxID string
	Err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected %s: %v", e.TxID, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
