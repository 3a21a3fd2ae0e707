// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package errors defines the kinds of failure a deployment run can end with.
// Each kind is a ConstError; errors raised by the run are tagged with one
// using WithKind so the command can report it alongside the message.
package errors

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// BootstrapFailure is raised when the environment could not be
	// bootstrapped.
	BootstrapFailure = errors.ConstError("BootstrapFailure")

	// VersionConvergenceTimeout is raised when the agents did not all report
	// the target version within the allowed time.
	VersionConvergenceTimeout = errors.ConstError("VersionConvergenceTimeout")

	// UpgradeFailure is raised when the upgrade-juju command fails.
	UpgradeFailure = errors.ConstError("UpgradeFailure")

	// MachineProvisionFailure is raised when adding a machine fails.
	MachineProvisionFailure = errors.ConstError("MachineProvisionFailure")

	// DeployFailure is raised when a charm cannot be deployed or configured.
	DeployFailure = errors.ConstError("DeployFailure")

	// RelationFailure is raised when a relation cannot be added.
	RelationFailure = errors.ConstError("RelationFailure")

	// ExposeFailure is raised when a service cannot be exposed.
	ExposeFailure = errors.ConstError("ExposeFailure")

	// StartupTimeout is raised when the agents did not all start in time, or
	// one of them went into an error state while waiting.
	StartupTimeout = errors.ConstError("StartupTimeout")

	// VerificationMismatch is raised when the deployed stack does not behave
	// as expected.
	VerificationMismatch = errors.ConstError("VerificationMismatch")

	// StatusFailure is raised when the environment status cannot be read.
	StatusFailure = errors.ConstError("StatusFailure")

	// ConfigFailure is raised when the named environment cannot be resolved.
	ConfigFailure = errors.ConstError("ConfigFailure")
)

// UnknownKind is reported for errors that carry none of the kinds above.
const UnknownKind = errors.ConstError("Error")

var allKinds = []errors.ConstError{
	BootstrapFailure,
	VersionConvergenceTimeout,
	UpgradeFailure,
	MachineProvisionFailure,
	DeployFailure,
	RelationFailure,
	ExposeFailure,
	StartupTimeout,
	VerificationMismatch,
	StatusFailure,
	ConfigFailure,
}

// WithKind tags err with the given kind. A nil error stays nil, and an error
// that already carries a kind keeps it, so the innermost failure wins.
func WithKind(err error, kind errors.ConstError) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != UnknownKind {
		return err
	}
	return errors.WithType(err, kind)
}

// KindOf returns the kind attached to err, or UnknownKind.
func KindOf(err error) errors.ConstError {
	for _, kind := range allKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return UnknownKind
}

// Describe renders err as "<message> (<kind>)".
func Describe(err error) string {
	return fmt.Sprintf("%s (%s)", err.Error(), KindOf(err))
}
