// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/names/v5"
	"github.com/juju/naturalsort"
	"gopkg.in/yaml.v2"
)

// MachineStatus holds the status of one machine.
type MachineStatus struct {
	AgentState     AgentState `yaml:"agent-state,omitempty"`
	AgentStateInfo string     `yaml:"agent-state-info,omitempty"`
	AgentVersion   string     `yaml:"agent-version,omitempty"`
}

// UnitStatus holds the status of one unit of a service.
type UnitStatus struct {
	AgentState     AgentState `yaml:"agent-state,omitempty"`
	AgentStateInfo string     `yaml:"agent-state-info,omitempty"`
	AgentVersion   string     `yaml:"agent-version,omitempty"`
	PublicAddress  string     `yaml:"public-address,omitempty"`
}

// ServiceStatus holds the status of a deployed service and its units.
type ServiceStatus struct {
	Units map[string]UnitStatus `yaml:"units,omitempty"`
}

// Status is a snapshot of the environment as reported by one status query.
// A new Status is produced for every query; it is never updated in place.
type Status struct {
	Machines map[string]MachineStatus `yaml:"machines"`
	Services map[string]ServiceStatus `yaml:"services"`
}

// Parse reads a Status from the YAML output of the status command.
func Parse(data []byte) (*Status, error) {
	var s Status
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Annotate(err, "cannot parse status")
	}
	return &s, nil
}

// visitAgents calls fn for every machine and unit, machines first, in name
// order.
func (s *Status) visitAgents(fn func(name string, state AgentState, version string)) {
	for _, id := range sortedKeys(s.Machines) {
		m := s.Machines[id]
		fn(id, m.AgentState, m.AgentVersion)
	}
	for _, svc := range sortedKeys(s.Services) {
		units := s.Services[svc].Units
		for _, name := range sortedKeys(units) {
			u := units[name]
			fn(name, u.AgentState, u.AgentVersion)
		}
	}
}

// AgentVersions groups every machine and unit by the agent version it
// reports. Entities without a version are grouped under UnknownVersion.
func (s *Status) AgentVersions() map[string]set.Strings {
	versions := make(map[string]set.Strings)
	s.visitAgents(func(name string, _ AgentState, version string) {
		if version == "" {
			version = UnknownVersion
		}
		if _, ok := versions[version]; !ok {
			versions[version] = set.NewStrings()
		}
		versions[version].Add(name)
	})
	return versions
}

// AgentStates groups every machine and unit by its agent state. Entities
// without a state are grouped under NoAgent.
func (s *Status) AgentStates() map[AgentState]set.Strings {
	states := make(map[AgentState]set.Strings)
	s.visitAgents(func(name string, state AgentState, _ string) {
		if state == "" {
			state = NoAgent
		}
		if _, ok := states[state]; !ok {
			states[state] = set.NewStrings()
		}
		states[state].Add(name)
	})
	return states
}

// ErroredUnitError is returned when an agent reports an error state.
type ErroredUnitError struct {
	Name  string
	State AgentState
}

// Error implements error.
func (e *ErroredUnitError) Error() string {
	return fmt.Sprintf("%s is in state %s", e.Name, e.State)
}

// CheckAgentsStarted returns nil when every agent has started. Otherwise it
// returns the agents grouped by state, or an *ErroredUnitError if any of them
// is in an error state.
func (s *Status) CheckAgentsStarted() (map[AgentState]set.Strings, error) {
	states := s.AgentStates()
	if _, ok := states[Started]; ok && len(states) == 1 {
		return nil, nil
	}
	for _, state := range sortedKeys(states) {
		if strings.Contains(string(state), string(Error)) {
			return nil, &ErroredUnitError{
				Name:  states[state].SortedValues()[0],
				State: state,
			}
		}
	}
	return states, nil
}

// Unit returns the status of the named unit.
func (s *Status) Unit(unitName string) (UnitStatus, error) {
	if !names.IsValidUnit(unitName) {
		return UnitStatus{}, errors.NotValidf("unit name %q", unitName)
	}
	service, err := names.UnitApplication(unitName)
	if err != nil {
		return UnitStatus{}, errors.Trace(err)
	}
	unit, ok := s.Services[service].Units[unitName]
	if !ok {
		return UnitStatus{}, errors.NotFoundf("unit %q", unitName)
	}
	return unit, nil
}

// PublicAddress returns the public address of the named unit.
func (s *Status) PublicAddress(unitName string) (string, error) {
	unit, err := s.Unit(unitName)
	if err != nil {
		return "", errors.Trace(err)
	}
	if unit.PublicAddress == "" {
		return "", errors.NotFoundf("public address for unit %q", unitName)
	}
	return unit.PublicAddress, nil
}

// FormatListing renders grouped entities as "state: a, b | other: c", the
// way progress is reported while waiting on the environment. Entities are
// listed in natural order, so machine 10 comes after machine 9.
func FormatListing[K ~string](listing map[K]set.Strings) string {
	var parts []string
	for _, key := range sortedKeys(listing) {
		parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(naturalsort.Sort(listing[key].Values()), ", ")))
	}
	return strings.Join(parts, " | ")
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
