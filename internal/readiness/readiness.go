// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package readiness brings an environment to a known-ready state before a
// stack is deployed to it: bootstrapped, running a single agent version that
// matches the client, and holding any extra machines asked for.
package readiness

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/naturalsort"

	coreerrors "github.com/juju/deploystack/core/errors"
	"github.com/juju/deploystack/core/status"
	"github.com/juju/deploystack/juju/osenv"
)

var logger = loggo.GetLogger("deploystack.readiness")

const (
	// DefaultConvergenceTimeout bounds the initial wait for the agents to
	// agree on a version. Running out of it is not an error: an upgrade is
	// requested instead.
	DefaultConvergenceTimeout = 30 * time.Second

	// DefaultPollInterval is the delay between two status queries of the
	// convergence poll.
	DefaultPollInterval = time.Second

	// DefaultVersionTimeout bounds the wait for every agent to report the
	// target version.
	DefaultVersionTimeout = 300 * time.Second
)

// Environ is the part of the environment the readiness phase drives.
type Environ interface {
	Name() string
	Bootstrap(ctx context.Context) error
	MatchingAgentVersion(ctx context.Context) (string, error)
	Status(ctx context.Context) (*status.Status, error)
	UpgradeJuju(ctx context.Context, agentVersion string) error
	WaitForVersion(ctx context.Context, agentVersion string, timeout time.Duration) error
	AddMachine(ctx context.Context, placement string) error
}

// Config holds everything Prepare needs.
type Config struct {
	// EnvName names the environment to prepare.
	EnvName string

	// AlreadyBootstrapped skips bootstrapping.
	AlreadyBootstrapped bool

	// Machines are added to the environment, in order, once it is ready.
	Machines []string

	// Open resolves EnvName to an environment.
	Open func(name string) (Environ, error)

	// Clock paces and bounds the convergence poll.
	Clock clock.Clock

	ConvergenceTimeout time.Duration
	PollInterval       time.Duration
	VersionTimeout     time.Duration

	// Platform is the client platform, as reported by osenv.OSVersion.
	Platform string

	// Output receives the messages meant for the operator.
	Output io.Writer
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	if c.EnvName == "" {
		return errors.NotValidf("empty EnvName")
	}
	if c.Open == nil {
		return errors.NotValidf("nil Open")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.ConvergenceTimeout < 0 {
		return errors.NotValidf("negative ConvergenceTimeout")
	}
	if c.PollInterval <= 0 {
		return errors.NotValidf("non-positive PollInterval")
	}
	if c.VersionTimeout <= 0 {
		return errors.NotValidf("non-positive VersionTimeout")
	}
	if c.Output == nil {
		return errors.NotValidf("nil Output")
	}
	return nil
}

// Prepare returns the named environment once it is bootstrapped, runs the
// agent version matching the client everywhere, and holds the requested
// machines. Any failure aborts the preparation; nothing is rolled back.
func Prepare(ctx context.Context, config Config) (Environ, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.Platform == osenv.Windows {
		if err := osenv.StripOpenSSHFromPath(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	env, err := config.Open(config.EnvName)
	if err != nil {
		return nil, coreerrors.WithKind(errors.Trace(err), coreerrors.ConfigFailure)
	}
	if !config.AlreadyBootstrapped {
		logger.Infof("bootstrapping %s", env.Name())
		if err := env.Bootstrap(ctx); err != nil {
			return nil, coreerrors.WithKind(errors.Trace(err), coreerrors.BootstrapFailure)
		}
	}

	agentVersion, err := env.MatchingAgentVersion(ctx)
	if err != nil {
		return nil, coreerrors.WithKind(
			errors.Annotate(err, "cannot determine agent version"), coreerrors.ConfigFailure)
	}

	versions, converged, err := PollAgentVersions(ctx, env, config.Clock, config.ConvergenceTimeout, config.PollInterval)
	if err != nil {
		return nil, coreerrors.WithKind(errors.Trace(err), coreerrors.StatusFailure)
	}
	if !converged {
		logger.Warningf("agent versions did not converge within %v", config.ConvergenceTimeout)
	}

	// Agents that agreed on a version other than the client's still need
	// the upgrade.
	if !IsOnlyVersion(versions, agentVersion) {
		fmt.Fprintf(config.Output, "Current versions: %s\n", strings.Join(VersionNames(versions), ", "))
		if err := env.UpgradeJuju(ctx, agentVersion); err != nil {
			return nil, coreerrors.WithKind(
				errors.Annotatef(err, "upgrading %s to %s", env.Name(), agentVersion), coreerrors.UpgradeFailure)
		}
	}

	if err := env.WaitForVersion(ctx, agentVersion, config.VersionTimeout); err != nil {
		return nil, coreerrors.WithKind(errors.Trace(err), coreerrors.VersionConvergenceTimeout)
	}

	for _, machine := range config.Machines {
		logger.Infof("adding machine %q to %s", machine, env.Name())
		if err := env.AddMachine(ctx, machine); err != nil {
			return nil, coreerrors.WithKind(
				errors.Annotatef(err, "adding machine %q", machine), coreerrors.MachineProvisionFailure)
		}
	}
	return env, nil
}

// PollAgentVersions queries the environment status until the agents agree
// on a single known version or timeout elapses, whichever comes first. It
// returns the versions seen by the last query and whether they converged.
// Every check is made against a fresh status, and no query is started once
// the timeout has elapsed.
//
// The caller decides whether to upgrade from the returned versions. No
// further status query is made after the loop ends.
func PollAgentVersions(
	ctx context.Context,
	env Environ,
	clk clock.Clock,
	timeout, interval time.Duration,
) (versions map[string]set.Strings, converged bool, err error) {
	deadline := clk.Now().Add(timeout)
	for {
		st, err := env.Status(ctx)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		versions = st.AgentVersions()
		if isConverged(versions) {
			return versions, true, nil
		}
		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			return versions, false, nil
		}
		select {
		case <-ctx.Done():
			return versions, false, errors.Trace(ctx.Err())
		case <-clk.After(min(interval, remaining)):
		}
		if !clk.Now().Before(deadline) {
			return versions, false, nil
		}
	}
}

func isConverged(versions map[string]set.Strings) bool {
	if _, ok := versions[status.UnknownVersion]; ok {
		return false
	}
	return len(versions) == 1
}

// IsOnlyVersion reports whether agentVersion is the one and only version
// in versions.
func IsOnlyVersion(versions map[string]set.Strings, agentVersion string) bool {
	_, ok := versions[agentVersion]
	return ok && len(versions) == 1
}

// VersionNames returns the versions in versions, in natural order.
func VersionNames(versions map[string]set.Strings) []string {
	names := make([]string, 0, len(versions))
	for v := range versions {
		names = append(names, v)
	}
	return naturalsort.Sort(names)
}
