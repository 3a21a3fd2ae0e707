// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package verify checks that a deployed stack actually works, through a
// channel outside the orchestration platform: HTTP for the WordPress stack,
// a token written by one unit and read back on another for the dummy stack.
package verify

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	coreerrors "github.com/juju/deploystack/core/errors"
	"github.com/juju/deploystack/core/status"
)

var logger = loggo.GetLogger("deploystack.verify")

// WordPress checks the web site served by unit, whose address is taken
// from the post-deployment status.
func WordPress(ctx context.Context, st *status.Status, unit string, checker HTTPChecker) error {
	address, err := st.PublicAddress(unit)
	if err != nil {
		return coreerrors.WithKind(errors.Trace(err), coreerrors.VerificationMismatch)
	}
	if err := checker.CheckReachable(ctx, address); err != nil {
		return coreerrors.WithKind(errors.Trace(err), coreerrors.VerificationMismatch)
	}
	return nil
}
