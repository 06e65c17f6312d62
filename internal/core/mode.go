// Package core is the orchestration layer. It composes the session,
// its transport and a capability into a running IRC client, and
// provides a builder that wires all of it from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  capability  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of ircsess. It owns its full
// lifecycle from the first connection attempt to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
