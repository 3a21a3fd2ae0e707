// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package jujucli

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/juju/deploystack/core/status"
	"github.com/juju/deploystack/environs/config"
)

// bootstrapConstraints are the constraints the bootstrap node is started
// with; the state server needs more memory than the provider default.
const bootstrapConstraints = "mem=2G"

// Environment is a named juju environment driven through the client.
type Environment struct {
	client *Client
	config *config.Config
}

// NewEnvironment returns the environment described by cfg.
func NewEnvironment(client *Client, cfg *config.Config) *Environment {
	return &Environment{
		client: client,
		config: cfg,
	}
}

// Open resolves the named environment from the juju home and returns it.
func Open(client *Client, name string) (*Environment, error) {
	cfg, err := config.Load(name)
	if err != nil {
		return nil, errors.Annotatef(err, "cannot resolve environment %q", name)
	}
	return NewEnvironment(client, cfg), nil
}

// Name returns the environment name.
func (e *Environment) Name() string {
	return e.config.Name()
}

func (e *Environment) juju(ctx context.Context, command string, args ...string) error {
	_, err := e.client.Juju(ctx, e.Name(), command, args...)
	return errors.Trace(err)
}

// Bootstrap bootstraps the environment.
func (e *Environment) Bootstrap(ctx context.Context) error {
	args := []string{"--constraints", bootstrapConstraints}
	var err error
	if e.config.IsLocal() {
		_, err = e.client.SudoJuju(ctx, e.Name(), "bootstrap", args...)
	} else {
		_, err = e.client.Juju(ctx, e.Name(), "bootstrap", args...)
	}
	if err != nil {
		return errors.Annotatef(err, "bootstrapping %s", e.Name())
	}
	return nil
}

// MatchingAgentVersion returns the agent version matching the client: the
// client version without series and arch. Local environments run agents
// built by the client, which carry build number 1.
func (e *Environment) MatchingAgentVersion(ctx context.Context) (string, error) {
	bin, err := e.client.Version(ctx)
	if err != nil {
		return "", errors.Trace(err)
	}
	number := bin.Number
	if e.config.IsLocal() {
		number.Build = 1
	}
	return number.String(), nil
}

// Status queries and returns the current environment status.
func (e *Environment) Status(ctx context.Context) (*status.Status, error) {
	st, err := e.queryStatus(ctx)
	if notify := e.client.config.StatusQueried; notify != nil {
		notify(err)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return st, nil
}

func (e *Environment) queryStatus(ctx context.Context) (*status.Status, error) {
	out, err := e.client.Juju(ctx, e.Name(), "status", "--format", "yaml")
	if err != nil {
		return nil, errors.Annotatef(err, "querying status of %s", e.Name())
	}
	return status.Parse(out)
}

// UpgradeJuju upgrades the environment agents to the given version.
func (e *Environment) UpgradeJuju(ctx context.Context, agentVersion string) error {
	return errors.Trace(e.juju(ctx, "upgrade-juju", "--version", agentVersion))
}

// Deploy deploys the given charm.
func (e *Environment) Deploy(ctx context.Context, charm string) error {
	return errors.Trace(e.juju(ctx, "deploy", charm))
}

// SetConfig sets one configuration key of a deployed service.
func (e *Environment) SetConfig(ctx context.Context, service, key, value string) error {
	return errors.Trace(e.juju(ctx, "set", service, fmt.Sprintf("%s=%s", key, value)))
}

// AddRelation relates the two services.
func (e *Environment) AddRelation(ctx context.Context, a, b string) error {
	return errors.Trace(e.juju(ctx, "add-relation", a, b))
}

// Expose opens the service to external traffic.
func (e *Environment) Expose(ctx context.Context, service string) error {
	return errors.Trace(e.juju(ctx, "expose", service))
}

// AddMachine adds a machine to the environment. The placement is passed to
// add-machine as is, for example "lxc" or "ssh:user@host".
func (e *Environment) AddMachine(ctx context.Context, placement string) error {
	return errors.Trace(e.juju(ctx, "add-machine", placement))
}

// SSH runs script on the machine hosting unit and returns its output.
func (e *Environment) SSH(ctx context.Context, unit, script string) (string, error) {
	out, err := e.client.Juju(ctx, e.Name(), "ssh", unit, script)
	if err != nil {
		return "", errors.Annotatef(err, "running script on %s", unit)
	}
	return string(out), nil
}
