// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package readiness_test

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coreerrors "github.com/juju/deploystack/core/errors"
	"github.com/juju/deploystack/core/status"
	"github.com/juju/deploystack/internal/readiness"
	"github.com/juju/deploystack/juju/osenv"
)

type readinessSuite struct {
	testing.IsolationSuite

	clock  *testclock.Clock
	start  time.Time
	env    *fakeEnviron
	output *bytes.Buffer
}

var _ = gc.Suite(&readinessSuite{})

func (s *readinessSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.clock = testclock.NewClock(s.start)
	s.env = &fakeEnviron{
		Stub:         &testing.Stub{},
		agentVersion: "1.20.1",
		statuses:     []*status.Status{versionStatus("1.20.1", "1.20.1")},
		advance:      s.clock.Advance,
	}
	s.output = &bytes.Buffer{}
}

func (s *readinessSuite) config(machines ...string) readiness.Config {
	return readiness.Config{
		EnvName:  "testing",
		Machines: machines,
		Open: func(name string) (readiness.Environ, error) {
			s.env.AddCall("Open", name)
			return s.env, s.env.NextErr()
		},
		Clock: &testclock.AutoAdvancingClock{
			Clock:   s.clock,
			Advance: s.clock.Advance,
		},
		ConvergenceTimeout: readiness.DefaultConvergenceTimeout,
		PollInterval:       readiness.DefaultPollInterval,
		VersionTimeout:     readiness.DefaultVersionTimeout,
		Platform:           "ubuntu",
		Output:             s.output,
	}
}

func (s *readinessSuite) TestPrepareConverged(c *gc.C) {
	env, err := readiness.Prepare(context.Background(), s.config("lxc:0", "kvm:0"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(env, gc.Equals, s.env)

	s.env.CheckCalls(c, []testing.StubCall{
		{FuncName: "Open", Args: []interface{}{"testing"}},
		{FuncName: "Bootstrap"},
		{FuncName: "MatchingAgentVersion"},
		{FuncName: "Status"},
		{FuncName: "WaitForVersion", Args: []interface{}{"1.20.1", readiness.DefaultVersionTimeout}},
		{FuncName: "AddMachine", Args: []interface{}{"lxc:0"}},
		{FuncName: "AddMachine", Args: []interface{}{"kvm:0"}},
	})
	c.Assert(s.output.String(), gc.Equals, "")
}

func (s *readinessSuite) TestPrepareAlreadyBootstrapped(c *gc.C) {
	config := s.config()
	config.AlreadyBootstrapped = true
	_, err := readiness.Prepare(context.Background(), config)
	c.Assert(err, jc.ErrorIsNil)

	s.env.CheckCallNames(c, "Open", "MatchingAgentVersion", "Status", "WaitForVersion")
}

func (s *readinessSuite) TestPrepareNeverConverges(c *gc.C) {
	s.env.statuses = []*status.Status{versionStatus("1.18.4", "")}

	_, err := readiness.Prepare(context.Background(), s.config("lxc:0"))
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.output.String(), gc.Equals, "Current versions: 1.18.4, unknown\n")
	calls := s.env.Calls()
	c.Assert(len(calls), jc.GreaterThan, 5)
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		if call.FuncName != "Status" {
			names = append(names, call.FuncName)
		}
	}
	c.Assert(names, jc.DeepEquals, []string{
		"Open", "Bootstrap", "MatchingAgentVersion", "UpgradeJuju", "WaitForVersion", "AddMachine",
	})
	s.env.CheckCall(c, len(calls)-3, "UpgradeJuju", "1.20.1")
	c.Assert(s.clock.Now().Sub(s.start), gc.Equals, readiness.DefaultConvergenceTimeout)
}

func (s *readinessSuite) TestPrepareConvergedOnOtherVersion(c *gc.C) {
	s.env.statuses = []*status.Status{versionStatus("1.18.4", "1.18.4")}

	_, err := readiness.Prepare(context.Background(), s.config())
	c.Assert(err, jc.ErrorIsNil)

	s.env.CheckCallNames(c, "Open", "Bootstrap", "MatchingAgentVersion", "Status", "UpgradeJuju", "WaitForVersion")
	s.env.CheckCall(c, 4, "UpgradeJuju", "1.20.1")
	c.Assert(s.output.String(), gc.Equals, "Current versions: 1.18.4\n")
	c.Assert(s.clock.Now(), gc.Equals, s.start)
}

func (s *readinessSuite) TestPrepareBootstrapFails(c *gc.C) {
	s.env.SetErrors(nil, errors.New("no credentials"))

	_, err := readiness.Prepare(context.Background(), s.config("lxc:0"))
	c.Assert(err, gc.ErrorMatches, "no credentials")
	c.Assert(coreerrors.KindOf(err), gc.Equals, coreerrors.BootstrapFailure)
	s.env.CheckCallNames(c, "Open", "Bootstrap")
}

func (s *readinessSuite) TestPrepareOpenFails(c *gc.C) {
	s.env.SetErrors(errors.NotFoundf("environment %q", "testing"))

	_, err := readiness.Prepare(context.Background(), s.config())
	c.Assert(err, gc.ErrorMatches, `environment "testing" not found`)
	c.Assert(coreerrors.KindOf(err), gc.Equals, coreerrors.ConfigFailure)
}

func (s *readinessSuite) TestPrepareStatusFails(c *gc.C) {
	s.env.SetErrors(nil, nil, nil, errors.New("connection refused"))

	_, err := readiness.Prepare(context.Background(), s.config())
	c.Assert(err, gc.ErrorMatches, "connection refused")
	c.Assert(coreerrors.KindOf(err), gc.Equals, coreerrors.StatusFailure)
}

func (s *readinessSuite) TestPrepareUpgradeFails(c *gc.C) {
	s.env.statuses = []*status.Status{versionStatus("1.18.4")}
	s.env.SetErrors(nil, nil, nil, nil, errors.New("no matching tools"))

	_, err := readiness.Prepare(context.Background(), s.config())
	c.Assert(err, gc.ErrorMatches, "upgrading testing to 1.20.1: no matching tools")
	c.Assert(coreerrors.KindOf(err), gc.Equals, coreerrors.UpgradeFailure)
	s.env.CheckCallNames(c, "Open", "Bootstrap", "MatchingAgentVersion", "Status", "UpgradeJuju")
}

func (s *readinessSuite) TestPrepareWaitForVersionFails(c *gc.C) {
	s.env.SetErrors(nil, nil, nil, nil, errors.Timeoutf("after 5m0s"))

	_, err := readiness.Prepare(context.Background(), s.config("lxc:0"))
	c.Assert(err, gc.ErrorMatches, "after 5m0s timeout")
	c.Assert(coreerrors.KindOf(err), gc.Equals, coreerrors.VersionConvergenceTimeout)
	s.env.CheckCallNames(c, "Open", "Bootstrap", "MatchingAgentVersion", "Status", "WaitForVersion")
}

func (s *readinessSuite) TestPrepareAddMachineFailureStopsTheRest(c *gc.C) {
	s.env.SetErrors(nil, nil, nil, nil, nil, nil, errors.New("quota exceeded"))

	_, err := readiness.Prepare(context.Background(), s.config("lxc:0", "kvm:0", "ssh:ubuntu@10.0.0.9"))
	c.Assert(err, gc.ErrorMatches, `adding machine "kvm:0": quota exceeded`)
	c.Assert(coreerrors.KindOf(err), gc.Equals, coreerrors.MachineProvisionFailure)
	s.env.CheckCallNames(c,
		"Open", "Bootstrap", "MatchingAgentVersion", "Status", "WaitForVersion", "AddMachine", "AddMachine")
}

func (s *readinessSuite) TestPrepareWindowsStripsOpenSSH(c *gc.C) {
	sep := string(os.PathListSeparator)
	s.PatchEnvironment(osenv.PathEnvKey, "/usr/bin"+sep+"/opt/OpenSSH/bin")
	config := s.config()
	config.Platform = osenv.Windows

	_, err := readiness.Prepare(context.Background(), config)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(os.Getenv(osenv.PathEnvKey), gc.Equals, "/usr/bin")
}

func (s *readinessSuite) TestValidate(c *gc.C) {
	config := s.config()
	config.Open = nil
	_, err := readiness.Prepare(context.Background(), config)
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
	s.env.CheckNoCalls(c)
}

func (s *readinessSuite) TestPollRequeriesBeforeEveryCheck(c *gc.C) {
	s.env.statuses = []*status.Status{
		versionStatus("", ""),
		versionStatus("1.20.1", "1.18.4"),
		versionStatus("1.18.4", "1.18.4"),
	}

	versions, converged, err := readiness.PollAgentVersions(
		context.Background(), s.env, s.config().Clock, 30*time.Second, time.Second)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(converged, jc.IsTrue)
	c.Assert(versions, jc.DeepEquals, map[string]set.Strings{"1.18.4": set.NewStrings("0", "1")})
	s.env.CheckCallNames(c, "Status", "Status", "Status")
	c.Assert(s.clock.Now().Sub(s.start), gc.Equals, 2*time.Second)
}

func (s *readinessSuite) TestPollBoundedDespiteSlowQueries(c *gc.C) {
	s.env.statuses = []*status.Status{versionStatus("")}
	s.env.statusDelay = 20 * time.Second

	versions, converged, err := readiness.PollAgentVersions(
		context.Background(), s.env, s.config().Clock, 30*time.Second, time.Second)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(converged, jc.IsFalse)
	c.Assert(readiness.VersionNames(versions), jc.DeepEquals, []string{status.UnknownVersion})
	// Queries start at 0s and 21s; the second one runs past the deadline so
	// no third query is made.
	s.env.CheckCallNames(c, "Status", "Status")
}

func (s *readinessSuite) TestPollZeroTimeoutQueriesOnce(c *gc.C) {
	s.env.statuses = []*status.Status{versionStatus("1.18.4", "1.20.1")}

	versions, converged, err := readiness.PollAgentVersions(
		context.Background(), s.env, s.config().Clock, 0, time.Second)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(converged, jc.IsFalse)
	c.Assert(readiness.VersionNames(versions), jc.DeepEquals, []string{"1.18.4", "1.20.1"})
	s.env.CheckCallNames(c, "Status")
}

func (s *readinessSuite) TestIsOnlyVersion(c *gc.C) {
	c.Check(readiness.IsOnlyVersion(map[string]set.Strings{"1.20.1": set.NewStrings("0")}, "1.20.1"), jc.IsTrue)
	c.Check(readiness.IsOnlyVersion(map[string]set.Strings{"1.18.4": set.NewStrings("0")}, "1.20.1"), jc.IsFalse)
	c.Check(readiness.IsOnlyVersion(map[string]set.Strings{
		"1.20.1": set.NewStrings("0"),
		"1.18.4": set.NewStrings("1"),
	}, "1.20.1"), jc.IsFalse)
	c.Check(readiness.IsOnlyVersion(nil, "1.20.1"), jc.IsFalse)
}

func (s *readinessSuite) TestVersionNamesNaturalOrder(c *gc.C) {
	names := readiness.VersionNames(map[string]set.Strings{
		"1.10.0":              set.NewStrings("1"),
		"1.9.2":               set.NewStrings("0"),
		status.UnknownVersion: set.NewStrings("2"),
	})
	c.Assert(names, jc.DeepEquals, []string{"1.9.2", "1.10.0", status.UnknownVersion})
}
