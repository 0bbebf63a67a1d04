package types

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultYo is the message carried by every Yo unless stated otherwise.
const DefaultYo = "Yo!"

// YoState is one directed notification from Origin to Target.
// LinearID distinguishes two Yos with identical content.
type YoState struct {
	Origin   Party  `json:"origin" cbor:"1,keyasint"`
	Target   Party  `json:"target" cbor:"2,keyasint"`
	Yo       string `json:"yo" cbor:"3,keyasint"`
	LinearID string `json:"linear_id" cbor:"4,keyasint"`
}

// NewYoState creates a Yo from origin to target with a fresh linear ID.
func NewYoState(origin, target Party) YoState {
	return YoState{
		Origin:   origin,
		Target:   target,
		Yo:       DefaultYo,
		LinearID: uuid.NewString(),
	}
}

// Participants returns the keys of the parties that must store the state.
// Only the target is a participant; the origin keeps its copy as the sender.
func (s YoState) Participants() []string {
	return []string{s.Target.OwningKey}
}

// IsRelevant reports whether any of the given keys is a participant.
func (s YoState) IsRelevant(keys []string) bool {
	for _, p := range s.Participants() {
		for _, k := range keys {
			if p == k {
				return true
			}
		}
	}
	return false
}

func (s YoState) String() string {
	return fmt.Sprintf("%s: %s", s.Origin.Name, s.Yo)
}
