// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package jujucli

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/juju/retry"

	"github.com/juju/deploystack/core/status"
)

// errNotYet is returned inside the wait loops while the environment has not
// reached the awaited state.
const errNotYet = errors.ConstError("not yet")

// WaitForStarted waits, for at most timeout, until every machine and unit
// agent reports it has started, and returns that status. An agent in an
// error state ends the wait straight away.
func (e *Environment) WaitForStarted(ctx context.Context, timeout time.Duration) (*status.Status, error) {
	var started *status.Status
	err := e.poll(ctx, timeout, func() error {
		st, err := e.Status(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		states, err := st.CheckAgentsStarted()
		if err != nil {
			return errors.Trace(err)
		}
		if states != nil {
			logger.Infof("%s: waiting for started: %s", e.Name(), status.FormatListing(states))
			return errNotYet
		}
		started = st
		return nil
	})
	if err != nil {
		var errored *status.ErroredUnitError
		if errors.As(err, &errored) {
			return nil, errors.Trace(errored)
		}
		return nil, errors.Annotatef(err, "timed out waiting for agents to start in %s", e.Name())
	}
	return started, nil
}

// WaitForVersion waits, for at most timeout, until every machine and unit
// agent reports the given version.
func (e *Environment) WaitForVersion(ctx context.Context, agentVersion string, timeout time.Duration) error {
	err := e.poll(ctx, timeout, func() error {
		st, err := e.Status(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		versions := st.AgentVersions()
		if _, ok := versions[agentVersion]; ok && len(versions) == 1 {
			return nil
		}
		logger.Infof("%s: waiting for %s: %s", e.Name(), agentVersion, status.FormatListing(versions))
		return errNotYet
	})
	if err != nil {
		return errors.Annotatef(err, "some versions did not update to %s in %s", agentVersion, e.Name())
	}
	return nil
}

// poll calls check until it succeeds, returns a fatal error, or timeout
// elapses. Status query failures are retried: the state server may refuse
// connections for a while after bootstrap or upgrade.
func (e *Environment) poll(ctx context.Context, timeout time.Duration, check func() error) error {
	err := retry.Call(retry.CallArgs{
		Func: check,
		IsFatalError: func(err error) bool {
			var errored *status.ErroredUnitError
			return errors.As(err, &errored)
		},
		NotifyFunc: func(err error, attempt int) {
			if !errors.Is(err, errNotYet) {
				logger.Debugf("%s: attempt %d: %v", e.Name(), attempt, err)
			}
		},
		Attempts:    retry.UnlimitedAttempts,
		Delay:       e.client.config.PollInterval,
		MaxDuration: timeout,
		Clock:       e.client.config.Clock,
		Stop:        ctx.Done(),
	})
	if retry.IsDurationExceeded(err) || retry.IsRetryStopped(err) {
		if last := retry.LastError(err); last != nil && !errors.Is(last, errNotYet) {
			return errors.Trace(last)
		}
		return errors.Timeoutf("after %v", timeout)
	}
	return errors.Trace(err)
}
