// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package jujucli implements the deployment environment on top of the juju
// command line client.
package jujucli

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/version/v2"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("deploystack.environs.jujucli")

const (
	// DefaultBinary is the juju client looked up on the PATH when no other
	// binary is configured.
	DefaultBinary = "juju"

	// DefaultPollInterval is the delay between status queries while
	// waiting on the environment.
	DefaultPollInterval = time.Second
)

// ClientConfig holds the dependencies of a Client.
type ClientConfig struct {
	// Binary is the path of the juju client.
	Binary string

	// Runner runs the juju client.
	Runner CommandRunner

	// Clock is used to pace and bound the wait loops.
	Clock clock.Clock

	// PollInterval is the delay between status queries while waiting.
	PollInterval time.Duration

	// StatusQueried, if set, is called after every status query with the
	// error it returned.
	StatusQueried func(error)
}

// Validate returns an error if the config cannot be used.
func (c ClientConfig) Validate() error {
	if c.Binary == "" {
		return errors.NotValidf("empty Binary")
	}
	if c.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.PollInterval <= 0 {
		return errors.NotValidf("non-positive PollInterval")
	}
	return nil
}

// Client runs commands with one juju client binary.
type Client struct {
	config ClientConfig
}

// NewClient returns a Client using the given config.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Client{config: config}, nil
}

// Version returns the version of the juju client binary.
func (c *Client) Version(ctx context.Context) (version.Binary, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return version.Binary{}, errors.Trace(err)
	}
	v, err := version.ParseBinary(strings.TrimSpace(string(out)))
	if err != nil {
		return version.Binary{}, errors.Annotate(err, "cannot parse juju version")
	}
	return v, nil
}

// Juju runs a juju command against the named environment, returning its
// standard output. The arguments are laid out as
// "juju <command> -e <env> <args...>".
func (c *Client) Juju(ctx context.Context, envName, command string, args ...string) ([]byte, error) {
	all := append([]string{command, "-e", envName}, args...)
	return c.run(ctx, all...)
}

// SudoJuju is like Juju but runs the client through "sudo -E", which the
// local provider needs to bootstrap.
func (c *Client) SudoJuju(ctx context.Context, envName, command string, args ...string) ([]byte, error) {
	all := append([]string{"-E", c.config.Binary, command, "-e", envName}, args...)
	logger.Debugf("running %s", shellquote.Join(append([]string{"sudo"}, all...)...))
	out, err := c.config.Runner.Run(ctx, "sudo", all...)
	return out, errors.Trace(err)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	logger.Debugf("running %s", shellquote.Join(append([]string{c.config.Binary}, args...)...))
	out, err := c.config.Runner.Run(ctx, c.config.Binary, args...)
	return out, errors.Trace(err)
}
