// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"fmt"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of one or more sweep
// files.
type Model struct {
	Trainer     *Trainer
	Environment *Environment
	// Protocols and Sweeps keep declaration order across files.
	Protocols []*Protocol
	Sweeps    []*Sweep
	Files     []string
}

// Trainer is the format-agnostic representation of a `trainer` block.
type Trainer struct {
	Command   string
	Args      []string
	Timeout   time.Duration
	KillGrace time.Duration
	LogDir    string
	WorkDir   string
	Env       map[string]string
}

// Environment is the format-agnostic representation of an `environment`
// block.
type Environment struct {
	Tracking        string
	Devices         []int
	DatasetRoot     string
	DeviceCount     *int
	DeviceVar       string
	TrackingVar     string
	ParallelDevices bool
}

// Protocol is a named protocol template: a kind plus fixed field values.
type Protocol struct {
	Kind   string
	Name   string
	Values map[string]cty.Value
	Source string
}

// Sweep is a grid over one protocol.
type Sweep struct {
	Name     string
	Protocol string
	Mode     string
	Axes     []Axis
	// NameAxes restricts which axes appear in run names; nil means all.
	NameAxes []string
	Source   string
}

// Axis is one swept field and its values, in order.
type Axis struct {
	Name   string
	Values []cty.Value
}

// Protocol looks up a protocol by name.
func (m *Model) Protocol(name string) (*Protocol, bool) {
	for _, p := range m.Protocols {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Sweep looks up a sweep by name.
func (m *Model) Sweep(name string) (*Sweep, bool) {
	for _, s := range m.Sweeps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Merge folds other into m. A second trainer or environment block, or a
// protocol or sweep name declared twice, is a ConfigError.
func (m *Model) Merge(other *Model) error {
	if other == nil {
		return nil
	}
	if other.Trainer != nil {
		if m.Trainer != nil {
			return sweeperr.Configf("trainer", "declared more than once")
		}
		m.Trainer = other.Trainer
	}
	if other.Environment != nil {
		if m.Environment != nil {
			return sweeperr.Configf("environment", "declared more than once")
		}
		m.Environment = other.Environment
	}
	for _, p := range other.Protocols {
		if prev, dup := m.Protocol(p.Name); dup {
			return sweeperr.Configf("protocol", "%q declared in %s and %s", p.Name, prev.Source, p.Source)
		}
		m.Protocols = append(m.Protocols, p)
	}
	for _, s := range other.Sweeps {
		if prev, dup := m.Sweep(s.Name); dup {
			return sweeperr.Configf("sweep", "%q declared in %s and %s", s.Name, prev.Source, s.Source)
		}
		m.Sweeps = append(m.Sweeps, s)
	}
	m.Files = append(m.Files, other.Files...)
	return nil
}

// Validate checks the cross references that no single block can check on
// its own.
func (m *Model) Validate() error {
	if m.Trainer == nil {
		return sweeperr.MissingField("trainer")
	}
	if len(m.Sweeps) == 0 {
		return &sweeperr.ConfigError{Field: "sweep", Reason: "no sweep declared"}
	}
	for _, s := range m.Sweeps {
		if _, ok := m.Protocol(s.Protocol); !ok {
			return sweeperr.Configf("protocol", "sweep %q uses undeclared protocol %q", s.Name, s.Protocol)
		}
	}
	return nil
}

// ParseDuration parses an optional duration attribute.
func ParseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, sweeperr.Configf(field, "invalid duration %q", s)
	}
	if d < 0 {
		return 0, sweeperr.Configf(field, "must not be negative")
	}
	return d, nil
}

// Source formats a file position for messages.
func Source(file string, line int) string {
	if line <= 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}
