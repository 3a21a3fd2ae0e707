// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config resolves a named environment from the environments.yaml
// file in the juju home directory.
package config

import (
	"os"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"

	"github.com/juju/deploystack/juju/osenv"
)

var logger = loggo.GetLogger("deploystack.environs.config")

const (
	// EnvironmentsFile is the name of the file, relative to the juju home,
	// holding the environment definitions.
	EnvironmentsFile = "environments.yaml"

	// TypeKey holds the provider type of an environment.
	TypeKey = "type"

	// AgentVersionKey holds a pinned agent version, if any.
	AgentVersionKey = "agent-version"

	// DefaultSeriesKey holds the series new machines are started with.
	DefaultSeriesKey = "default-series"

	// LocalProvider is the provider type of environments running on the
	// client machine itself.
	LocalProvider = "local"
)

var fields = schema.Fields{
	TypeKey:          schema.String(),
	AgentVersionKey:  schema.String(),
	DefaultSeriesKey: schema.String(),
}

var defaults = schema.Defaults{
	AgentVersionKey:  schema.Omit,
	DefaultSeriesKey: schema.Omit,
}

var checker = schema.FieldMap(fields, defaults)

// Config holds the immutable configuration of a single environment.
type Config struct {
	name  string
	attrs map[string]interface{}
}

// New returns the configuration of the environment called name, validating
// the known attributes. Unknown attributes are kept as they are.
func New(name string, attrs map[string]interface{}) (*Config, error) {
	if name == "" {
		return nil, errors.NotValidf("empty environment name")
	}
	coerced, err := checker.Coerce(attrs, []string{name})
	if err != nil {
		return nil, errors.Annotatef(err, "environment %q", name)
	}
	all := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		all[k] = v
	}
	for k, v := range coerced.(map[string]interface{}) {
		all[k] = v
	}
	return &Config{name: name, attrs: all}, nil
}

// Name returns the environment name.
func (c *Config) Name() string {
	return c.name
}

// Type returns the provider type of the environment.
func (c *Config) Type() string {
	return c.attrs[TypeKey].(string)
}

// IsLocal reports whether the environment uses the local provider.
func (c *Config) IsLocal() bool {
	return c.Type() == LocalProvider
}

// Environs holds the environments defined in an environments.yaml file.
type Environs struct {
	// Default is the environment used when none is named.
	Default string

	raw map[string]map[string]interface{}
}

type environsFile struct {
	Default      string                            `yaml:"default"`
	Environments map[string]map[string]interface{} `yaml:"environments"`
}

// ReadEnvironsBytes parses the contents of an environments.yaml file.
func ReadEnvironsBytes(data []byte) (*Environs, error) {
	var file environsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Annotate(err, "cannot parse environments")
	}
	if file.Default != "" {
		if _, ok := file.Environments[file.Default]; !ok {
			return nil, errors.NotFoundf("default environment %q", file.Default)
		}
	}
	return &Environs{
		Default: file.Default,
		raw:     file.Environments,
	}, nil
}

// ReadEnvirons reads and parses the environments file at path.
func ReadEnvirons(path string) (*Environs, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("environments file %q", path)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	envs, err := ReadEnvironsBytes(data)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %q", path)
	}
	return envs, nil
}

// Names returns the sorted names of all the environments.
func (e *Environs) Names() []string {
	names := make([]string, 0, len(e.raw))
	for name := range e.raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the configuration of the named environment. An empty name
// selects the default environment, or the only one if there is just one.
func (e *Environs) Config(name string) (*Config, error) {
	if name == "" {
		switch {
		case e.Default != "":
			name = e.Default
		case len(e.raw) == 1:
			name = e.Names()[0]
		default:
			return nil, errors.NotValidf("no environment named and no default set")
		}
	}
	attrs, ok := e.raw[name]
	if !ok {
		return nil, errors.NotFoundf("environment %q", name)
	}
	return New(name, attrs)
}

// Load resolves the named environment from the environments file in the
// current juju home.
func Load(name string) (*Config, error) {
	path, err := osenv.JujuHomePath(EnvironmentsFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("reading environment %q from %s", name, path)
	envs, err := ReadEnvirons(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return envs.Config(name)
}
