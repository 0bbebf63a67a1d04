// Package contract holds the Yo contract: the rules a bundle must satisfy to
// be a legal "send a Yo" transition, and the table that maps contract IDs to
// their verify functions.
//
// Verification is a pure function of the bundle. It performs no I/O and
// touches no shared state, so every party evaluates it identically and it is
// safe to call from any number of goroutines.
package contract

import (
	"crypto/sha256"
	"encoding/hex"

	"yo.mini/yo/internal/types"
)

// ContractID identifies Yo states and the Yo contract.
const ContractID = "yo.contract"

// LegalContractReference is the hash of the contract's legal prose.
var LegalContractReference = func() string {
	sum := sha256.Sum256([]byte(types.DefaultYo))
	return hex.EncodeToString(sum[:])
}()

// Verify runs the Yo rules in order and returns the first violation wrapped
// in a *ValidationError, or nil when the bundle is a valid transition.
func Verify(b types.Bundle) error {
	return VerifyRules(ContractID, b, YoRules)
}

// VerifyRules runs rules in order and stops at the first failure.
func VerifyRules(contractID string, b types.Bundle, rules []Rule) error {
	for i, rule := range rules {
		if err := rule.Check(b); err != nil {
			return &ValidationError{
				Contract: contractID,
				Rule:     rule.Name,
				Index:    i,
				Err:      err,
			}
		}
	}
	return nil
}
