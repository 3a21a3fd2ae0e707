// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

// AgentState is the state a machine or unit agent reports in the
// agent-state field of the environment status.
type AgentState string

// String returns a string representation of the AgentState.
func (s AgentState) String() string {
	return string(s)
}

const (
	// Error means the entity requires human intervention
	// in order to operate correctly.
	Error AgentState = "error"

	// Started is set when the entity is actively participating in the
	// environment.
	Started AgentState = "started"

	// Pending is set when the machine or unit is not yet participating in
	// the environment.
	Pending AgentState = "pending"

	// NoAgent is reported for entities whose status carries no agent-state
	// at all yet.
	NoAgent AgentState = "no-agent"
)

// UnknownVersion is reported for entities that do not (yet) carry an
// agent-version.
const UnknownVersion = "unknown"
