// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"

	coreerrors "github.com/juju/deploystack/core/errors"
	"github.com/juju/deploystack/environs/jujucli"
	"github.com/juju/deploystack/internal/metrics"
	"github.com/juju/deploystack/internal/readiness"
	"github.com/juju/deploystack/internal/stack"
	"github.com/juju/deploystack/internal/verify"
	"github.com/juju/deploystack/juju/osenv"
)

var logger = loggo.GetLogger("deploystack.cmd")

const doc = `
deploystack bootstraps the named environment, unless it is already
bootstrapped, makes sure every agent runs the version matching the juju
client, adds the requested machines, then deploys a two-charm stack and
checks it works.

The default stack is wordpress related to mysql; once started, the
WordPress installation page must be served on the public address of
wordpress/0. With --dummy, dummy-source is given a random token that it
passes to dummy-sink over their relation; the token must then be readable
on dummy-sink/0.

Any failure stops the run. Its cause is printed on stdout followed by the
kind of failure in parentheses, and the command exits with status 1.

On Windows the run stops once the environment is ready.
`

// NewCommand returns the deploystack command.
func NewCommand() cmd.Command {
	return &deployStackCommand{
		clock:      clock.WallClock,
		platform:   osenv.OSVersion(),
		newRunner:  jujucli.NewExecRunner,
		newChecker: newWordPressChecker,
	}
}

func newWordPressChecker(clk clock.Clock) (verify.HTTPChecker, error) {
	return verify.NewWordPressChecker(&http.Client{Timeout: 30 * time.Second}, clk, verify.DefaultHTTPTimeout)
}

type deployStackCommand struct {
	cmd.CommandBase

	envName             string
	charmPrefix         string
	alreadyBootstrapped bool
	machines            []string
	dummy               bool
	startedTimeout      time.Duration
	versionTimeout      time.Duration
	jujuBinary          string
	metricsFile         string
	logFile             string
	logLevelName        string
	logLevel            loggo.Level

	clock      clock.Clock
	platform   string
	newRunner  func() jujucli.CommandRunner
	newChecker func(clock.Clock) (verify.HTTPChecker, error)
}

// Info implements cmd.Command.
func (c *deployStackCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "deploystack",
		Args:    "<environment>",
		Purpose: "Deploy a test stack to an environment and verify it.",
		Doc:     doc,
	}
}

// SetFlags implements cmd.Command.
func (c *deployStackCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.charmPrefix, "charm-prefix", "", "prefix for the charm names, e.g. cs:precise/")
	f.BoolVar(&c.alreadyBootstrapped, "already-bootstrapped", false, "the environment is already bootstrapped")
	f.Var(cmd.NewAppendStringsValue(&c.machines), "machine", "a machine to add before deploying; may be repeated")
	f.BoolVar(&c.dummy, "dummy", false, "deploy the dummy stack instead of wordpress")
	f.DurationVar(&c.startedTimeout, "started-timeout", stack.DefaultStartedTimeout, "how long to wait for the stack to start")
	f.DurationVar(&c.versionTimeout, "version-timeout", readiness.DefaultVersionTimeout, "how long to wait for the agents to reach the client version")
	f.StringVar(&c.jujuBinary, "juju", jujucli.DefaultBinary, "the juju client to run")
	f.StringVar(&c.metricsFile, "metrics-file", "", "write the run metrics to this file, in Prometheus text format")
	f.StringVar(&c.logFile, "log-file", "", "also log to this file, rotated when it grows large")
	f.StringVar(&c.logLevelName, "log-level", "INFO", "log level of the root logger")
}

// Init implements cmd.Command.
func (c *deployStackCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no environment specified")
	}
	c.envName, args = args[0], args[1:]

	level, ok := loggo.ParseLevel(c.logLevelName)
	if !ok {
		return errors.NotValidf("log level %q", c.logLevelName)
	}
	c.logLevel = level
	if c.startedTimeout <= 0 {
		return errors.NotValidf("started timeout %v", c.startedTimeout)
	}
	if c.versionTimeout <= 0 {
		return errors.NotValidf("version timeout %v", c.versionTimeout)
	}
	if c.jujuBinary == "" {
		return errors.NotValidf("empty juju binary")
	}
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *deployStackCommand) Run(ctx *cmd.Context) error {
	var logFile string
	if c.logFile != "" {
		logFile = ctx.AbsPath(c.logFile)
	}
	closeLog, err := setupLogging(ctx.Stderr, c.logLevel, logFile)
	if err != nil {
		return c.fail(ctx, coreerrors.WithKind(errors.Trace(err), coreerrors.ConfigFailure))
	}
	defer closeLog()

	collector := metrics.NewCollector(c.clock)
	err = c.deploy(context.Background(), ctx, collector)
	collector.RecordOutcome(err)
	if c.metricsFile != "" {
		if werr := collector.WriteTextfile(ctx.AbsPath(c.metricsFile)); werr != nil {
			logger.Errorf("%v", werr)
		}
	}
	if err != nil {
		return c.fail(ctx, err)
	}
	return nil
}

// fail reports err as "<message> (<kind>)" on stdout. The returned
// cmd.ErrSilent stops cmd.Main printing it again.
func (c *deployStackCommand) fail(ctx *cmd.Context, err error) error {
	logger.Debugf("run failed: %s", errors.ErrorStack(err))
	fmt.Fprintln(ctx.Stdout, coreerrors.Describe(err))
	return cmd.ErrSilent
}

func (c *deployStackCommand) deploy(stdctx context.Context, ctx *cmd.Context, collector *metrics.Collector) error {
	client, err := jujucli.NewClient(jujucli.ClientConfig{
		Binary:        c.jujuBinary,
		Runner:        c.newRunner(),
		Clock:         c.clock,
		PollInterval:  jujucli.DefaultPollInterval,
		StatusQueried: collector.StatusQueried,
	})
	if err != nil {
		return coreerrors.WithKind(errors.Trace(err), coreerrors.ConfigFailure)
	}

	var env *jujucli.Environment
	done := collector.StartPhase(metrics.PhaseReadiness)
	_, err = readiness.Prepare(stdctx, readiness.Config{
		EnvName:             c.envName,
		AlreadyBootstrapped: c.alreadyBootstrapped,
		Machines:            c.machines,
		Open: func(name string) (readiness.Environ, error) {
			opened, err := jujucli.Open(client, name)
			if err != nil {
				return nil, errors.Trace(err)
			}
			env = opened
			return env, nil
		},
		Clock:              c.clock,
		ConvergenceTimeout: readiness.DefaultConvergenceTimeout,
		PollInterval:       readiness.DefaultPollInterval,
		VersionTimeout:     c.versionTimeout,
		Platform:           c.platform,
		Output:             ctx.Stdout,
	})
	done()
	if err != nil {
		return errors.Trace(err)
	}
	if c.platform == osenv.Windows {
		logger.Infof("%s is ready, not deploying from %s", c.envName, osenv.Windows)
		return nil
	}

	config := stack.Config{
		Kind:           stack.RealStack,
		CharmPrefix:    c.charmPrefix,
		StartedTimeout: c.startedTimeout,
	}
	if c.dummy {
		config.Kind = stack.DummyStack
	} else {
		checker, err := c.newChecker(c.clock)
		if err != nil {
			return coreerrors.WithKind(errors.Trace(err), coreerrors.ConfigFailure)
		}
		config.Checker = checker
	}

	done = collector.StartPhase(metrics.PhaseDeploy)
	deployment, err := stack.Deploy(stdctx, env, config)
	done()
	if err != nil {
		return errors.Trace(err)
	}

	done = collector.StartPhase(metrics.PhaseVerify)
	err = deployment.Verify(stdctx)
	done()
	if err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("%s stack deployed to %s and verified", config.Kind, c.envName)
	return nil
}
