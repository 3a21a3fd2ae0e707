// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package osenv

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
)

// jujuHome stores the path to the juju configuration
// folder defined by $JUJU_HOME or default ~/.juju.
var (
	jujuHomeMu sync.Mutex
	jujuHome   string
)

// SetJujuHome sets the value of juju home and returns the previous one.
// An empty value means the home is derived from the environment again.
func SetJujuHome(home string) string {
	jujuHomeMu.Lock()
	defer jujuHomeMu.Unlock()

	old := jujuHome
	jujuHome = home
	return old
}

// JujuHome returns the current juju home: the value set with SetJujuHome,
// else $JUJU_HOME, else ~/.juju.
func JujuHome() (string, error) {
	jujuHomeMu.Lock()
	defer jujuHomeMu.Unlock()

	if jujuHome != "" {
		return jujuHome, nil
	}
	if home := os.Getenv(JujuHomeEnvKey); home != "" {
		return home, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.NotFoundf("$%s or $HOME", JujuHomeEnvKey)
	}
	return filepath.Join(home, ".juju"), nil
}

// JujuHomePath returns the path to a file in the current juju home.
func JujuHomePath(names ...string) (string, error) {
	home, err := JujuHome()
	if err != nil {
		return "", errors.Trace(err)
	}
	all := append([]string{home}, names...)
	return filepath.Join(all...), nil
}
