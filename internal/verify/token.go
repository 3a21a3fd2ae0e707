// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"

	coreerrors "github.com/juju/deploystack/core/errors"
)

const (
	// TokenPath is where the dummy-sink charm writes the token it received
	// over its relation with dummy-source.
	TokenPath = "/var/run/dummy-sink/token"

	// TokenWaitAttempts is how many times, one second apart, the remote
	// script looks for the token file before giving up.
	TokenWaitAttempts = 30
)

// TokenScript returns the shell script that waits for the file at path to
// appear, checking once a second up to attempts times, and prints it. It
// prints nothing if the file never appears.
func TokenScript(path string, attempts int) string {
	return fmt.Sprintf(`
for x in $(seq %d); do
  if [ -f %s ]; then
    break
  fi
  sleep 1
done
cat %s
`, attempts, path, path)
}

// RemoteRunner runs shell scripts on the machines of the environment.
type RemoteRunner interface {
	SSH(ctx context.Context, unit, script string) (string, error)
}

// FirstLine returns output up to, and excluding, its first CR or LF.
func FirstLine(output string) string {
	if i := strings.IndexAny(output, "\r\n"); i >= 0 {
		return output[:i]
	}
	return output
}

// Token reads the token written on unit and checks it matches the one the
// stack was deployed with.
func Token(ctx context.Context, runner RemoteRunner, unit, token string) error {
	out, err := runner.SSH(ctx, unit, TokenScript(TokenPath, TokenWaitAttempts))
	if err != nil {
		return coreerrors.WithKind(
			errors.Annotatef(err, "reading token from %s", unit), coreerrors.VerificationMismatch)
	}
	got := FirstLine(out)
	if got != token {
		return coreerrors.WithKind(errors.Errorf("token is %q", got), coreerrors.VerificationMismatch)
	}
	logger.Infof("token %s read back from %s", got, unit)
	return nil
}
