// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package osenv

import (
	"runtime"
)

const (
	JujuHomeEnvKey          = "JUJU_HOME"
	JujuLoggingConfigEnvKey = "JUJU_LOGGING_CONFIG"
	PathEnvKey              = "PATH"
)

// Windows is the platform name reported by OSVersion for Windows clients.
const Windows = "windows"

// OSVersion returns the platform the client is running on, as far as the
// deployment run cares: "windows" or "ubuntu".
func OSVersion() string {
	if runtime.GOOS == Windows {
		return Windows
	}
	return "ubuntu"
}
