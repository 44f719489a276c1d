// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package run

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/protocol"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// Name derives a run name from the template identity and the swept values:
//
//	<template>_<target>_<axis><value>...
//
// The target domain comes from the assignment when swept, otherwise from the
// template. nameAxes restricts and orders the axes used; when empty, every
// axis of the assignment is used in grid order. The result only depends on
// its inputs, so replaying a sweep reproduces the same names.
//
// Values are escaped with escapeValue, so they never contain the "_" that
// separates parts and two different values never render the same.
func Name(tmpl *protocol.Template, assignment grid.Assignment, nameAxes []string) (string, error) {
	parts := []string{escape(tmpl.Name(), true)}

	target, ok := assignment.Get("target")
	if !ok {
		target, ok = assignment.Get("t")
	}
	if !ok {
		target, ok = tmpl.Value("target")
	}
	if ok {
		parts = append(parts, escapeValue(grid.FormatValue(target)))
	}

	axes := nameAxes
	if len(axes) == 0 {
		axes = assignment.Names()
	}
	for _, axis := range axes {
		v, ok := assignment.Get(axis)
		if !ok {
			return "", sweeperr.Configf(axis, "name axis is not an axis of the grid")
		}
		if canonical := protocol.CanonicalField(axis); canonical == "target" {
			continue
		}
		parts = append(parts, escape(axis, true)+escapeValue(grid.FormatValue(v)))
	}

	return strings.Join(parts, "_"), nil
}

// escapeValue keeps letters, digits, dots and dashes and writes every other
// byte, underscores included, as %XX.
func escapeValue(s string) string { return escape(s, false) }

// escape percent-encodes bytes outside [A-Za-z0-9.-]. Identifiers (template
// and axis names) keep their underscores. The result is safe as a file name
// and as a tracking-run identifier.
func escape(s string, keepUnderscore bool) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
			sb.WriteByte(c)
		case c == '_' && keepUnderscore:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

// NameSet detects run-name collisions across one invocation of the harness.
type NameSet struct {
	owners map[string]string
}

// NewNameSet returns an empty NameSet.
func NewNameSet() *NameSet {
	return &NameSet{owners: make(map[string]string)}
}

// Claim registers name for owner. A name claimed twice is a ConfigError
// naming both owners, so two runs can never write the same artifacts.
func (s *NameSet) Claim(name, owner string) error {
	if prev, taken := s.owners[name]; taken {
		return sweeperr.Configf(protocol.NameField, "run name %q produced by both %s and %s", name, prev, owner)
	}
	s.owners[name] = owner
	return nil
}

// Len is the number of claimed names.
func (s *NameSet) Len() int { return len(s.owners) }
