// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package osenv

import (
	"os"
	"path/filepath"
	"strings"
)

// OpenSSHPathMarker identifies PATH entries belonging to an OpenSSH install.
// Windows clients must not pick up that ssh when talking to the controller.
const OpenSSHPathMarker = "OpenSSH"

// FilterPath returns the entries of a PATH-style list that do not contain
// marker, preserving their order.
func FilterPath(path, marker string) string {
	var kept []string
	for _, entry := range filepath.SplitList(path) {
		if strings.Contains(entry, marker) {
			continue
		}
		kept = append(kept, entry)
	}
	return strings.Join(kept, string(os.PathListSeparator))
}

// StripOpenSSHFromPath removes every OpenSSH entry from the PATH of the
// current process.
func StripOpenSSHFromPath() error {
	path := os.Getenv(PathEnvKey)
	return os.Setenv(PathEnvKey, FilterPath(path, OpenSSHPathMarker))
}
