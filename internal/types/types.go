// Package types defines the ledger data model shared by every yo component:
// parties, the Yo state, transition bundles and the signed envelopes that
// travel between nodes. Bundles are encoded canonically so that every party
// derives the same transaction ID from the same content.
package types

// Version is the current version of the yo node
const Version = "0.1.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"
