// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package stack deploys one of the known two-charm stacks to a ready
// environment, waits for it to start, and hands it to the verifier.
package stack

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4"

	coreerrors "github.com/juju/deploystack/core/errors"
	"github.com/juju/deploystack/core/status"
	"github.com/juju/deploystack/internal/verify"
)

var logger = loggo.GetLogger("deploystack.stack")

// DefaultStartedTimeout bounds the wait for the deployed agents to start.
const DefaultStartedTimeout = 1200 * time.Second

// TokenLength is the number of characters in a generated token.
const TokenLength = 20

// Kind selects the stack to deploy.
type Kind int

const (
	// RealStack is WordPress backed by MySQL, checked over HTTP.
	RealStack Kind = iota

	// DummyStack is dummy-source feeding a token to dummy-sink, checked by
	// reading the token back on the sink.
	DummyStack
)

// String returns the name of the stack.
func (k Kind) String() string {
	switch k {
	case RealStack:
		return "wordpress"
	case DummyStack:
		return "dummy"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Environ is the part of the environment a stack is deployed through.
type Environ interface {
	Name() string
	Deploy(ctx context.Context, charm string) error
	SetConfig(ctx context.Context, service, key, value string) error
	AddRelation(ctx context.Context, a, b string) error
	Expose(ctx context.Context, service string) error
	WaitForStarted(ctx context.Context, timeout time.Duration) (*status.Status, error)
	SSH(ctx context.Context, unit, script string) (string, error)
}

// Config describes the stack to deploy.
type Config struct {
	Kind Kind

	// CharmPrefix is prepended to every charm name, e.g. "cs:precise/".
	CharmPrefix string

	// StartedTimeout bounds the wait for the agents to start.
	StartedTimeout time.Duration

	// Checker probes the web site of the real stack. It is not used by the
	// dummy stack.
	Checker verify.HTTPChecker

	// NewToken returns the token passed through the dummy stack. It
	// defaults to GenerateToken.
	NewToken func() string
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	switch c.Kind {
	case RealStack:
		if c.Checker == nil {
			return errors.NotValidf("nil Checker")
		}
	case DummyStack:
	default:
		return errors.NotValidf("stack %v", c.Kind)
	}
	if c.StartedTimeout <= 0 {
		return errors.NotValidf("non-positive StartedTimeout")
	}
	return nil
}

// GenerateToken returns a random token of upper case letters and digits.
func GenerateToken() string {
	return utils.RandomString(TokenLength, append(append([]rune{}, utils.UpperAlpha...), utils.Digits...))
}

// Deployment is a stack whose agents have all started.
type Deployment struct {
	config Config
	env    Environ

	// Status is the status that showed every agent started.
	Status *status.Status

	// Token is the token handed to a dummy stack, empty otherwise.
	Token string
}

// Deploy deploys the stack to env and waits for its agents to start.
func Deploy(ctx context.Context, env Environ, config Config) (*Deployment, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	d := &Deployment{config: config, env: env}
	logger.Infof("deploying the %v stack to %s", config.Kind, env.Name())

	var err error
	switch config.Kind {
	case RealStack:
		err = d.deployReal(ctx)
	case DummyStack:
		err = d.deployDummy(ctx)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	st, err := env.WaitForStarted(ctx, config.StartedTimeout)
	if err != nil {
		return nil, coreerrors.WithKind(errors.Trace(err), coreerrors.StartupTimeout)
	}
	d.Status = st
	return d, nil
}

// Verify checks the deployed stack works end to end.
func (d *Deployment) Verify(ctx context.Context) error {
	switch d.config.Kind {
	case RealStack:
		return errors.Trace(verify.WordPress(ctx, d.Status, "wordpress/0", d.config.Checker))
	case DummyStack:
		return errors.Trace(verify.Token(ctx, d.env, "dummy-sink/0", d.Token))
	}
	return errors.NotValidf("stack %v", d.config.Kind)
}

// DeployAndVerify deploys the stack to env, waits for it to start and
// verifies it. It returns the status seen once everything started.
func DeployAndVerify(ctx context.Context, env Environ, config Config) (*status.Status, error) {
	d, err := Deploy(ctx, env, config)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := d.Verify(ctx); err != nil {
		return d.Status, errors.Trace(err)
	}
	return d.Status, nil
}

func (d *Deployment) deployReal(ctx context.Context) error {
	if err := d.deploy(ctx, "wordpress"); err != nil {
		return err
	}
	if err := d.deploy(ctx, "mysql"); err != nil {
		return err
	}
	if err := d.relate(ctx, "mysql", "wordpress"); err != nil {
		return err
	}
	return d.expose(ctx, "wordpress")
}

func (d *Deployment) deployDummy(ctx context.Context) error {
	newToken := d.config.NewToken
	if newToken == nil {
		newToken = GenerateToken
	}
	d.Token = newToken()

	if err := d.deploy(ctx, "dummy-source"); err != nil {
		return err
	}
	if err := d.env.SetConfig(ctx, "dummy-source", "token", d.Token); err != nil {
		return coreerrors.WithKind(
			errors.Annotate(err, "setting token on dummy-source"), coreerrors.DeployFailure)
	}
	if err := d.deploy(ctx, "dummy-sink"); err != nil {
		return err
	}
	if err := d.relate(ctx, "dummy-source", "dummy-sink"); err != nil {
		return err
	}
	return d.expose(ctx, "dummy-sink")
}

func (d *Deployment) deploy(ctx context.Context, charm string) error {
	url := d.config.CharmPrefix + charm
	if err := d.env.Deploy(ctx, url); err != nil {
		return coreerrors.WithKind(errors.Annotatef(err, "deploying %s", url), coreerrors.DeployFailure)
	}
	return nil
}

func (d *Deployment) relate(ctx context.Context, a, b string) error {
	if err := d.env.AddRelation(ctx, a, b); err != nil {
		return coreerrors.WithKind(
			errors.Annotatef(err, "relating %s to %s", a, b), coreerrors.RelationFailure)
	}
	return nil
}

func (d *Deployment) expose(ctx context.Context, service string) error {
	if err := d.env.Expose(ctx, service); err != nil {
		return coreerrors.WithKind(errors.Annotatef(err, "exposing %s", service), coreerrors.ExposeFailure)
	}
	return nil
}
