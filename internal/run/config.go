// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package run

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/protocol"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/zclconf/go-cty/cty"
)

// DeviceAxis is the reserved axis name that selects compute devices per run
// instead of feeding a Trainer flag.
const DeviceAxis = "device"

// Source records where a resolved value came from.
type Source string

const (
	FromAssignment Source = "assignment"
	FromTemplate   Source = "template"
	FromDefault    Source = "default"
	FromHarness    Source = "harness"
)

// Value is one resolved field of a run.
type Value struct {
	Field  protocol.Field
	Value  cty.Value
	Source Source
}

// Formatted renders the value as a command-line argument.
func (v Value) Formatted() string { return v.Field.Format(v.Value) }

// Config is a fully resolved, immutable set of Trainer parameters for one
// run.
type Config struct {
	template   *protocol.Template
	name       string
	assignment grid.Assignment
	devices    []int
	values     []Value
}

// Build merges an assignment into a template. Assignment values override
// template values, which override the kind's central defaults. Every required
// field must resolve, every value must fall inside its field's domain and
// every axis must name a field of the template's kind (or be the device
// axis). Violations are ConfigErrors and nothing is built.
func Build(tmpl *protocol.Template, assignment grid.Assignment, runName string) (*Config, error) {
	if tmpl == nil {
		return nil, &sweeperr.ConfigError{Reason: "no protocol template"}
	}
	if strings.TrimSpace(runName) == "" {
		return nil, sweeperr.Configf(protocol.NameField, "run name is empty")
	}
	schema := tmpl.Schema()

	overrides := make(map[string]cty.Value, assignment.Len())
	var devices []int
	for axis, raw := range assignment.All() {
		if axis == DeviceAxis {
			d, err := ParseDevices(raw)
			if err != nil {
				return nil, sweeperr.Configf(DeviceAxis, "%v", err)
			}
			devices = d
			continue
		}

		fieldName := protocol.CanonicalField(axis)
		field, ok := schema.Field(fieldName)
		if !ok {
			return nil, sweeperr.Configf(axis, "axis does not match any field of the %s protocol", tmpl.Kind())
		}
		if field.Derived {
			return nil, sweeperr.Configf(axis, "field is set by the harness and cannot be swept")
		}
		if _, dup := overrides[fieldName]; dup {
			return nil, sweeperr.Configf(fieldName, "swept by more than one axis")
		}
		v, err := field.Coerce(raw)
		if err != nil {
			return nil, sweeperr.Configf(fieldName, "%v", err)
		}
		overrides[fieldName] = v
	}

	values := make([]Value, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		if field.Derived {
			v, err := field.Coerce(cty.StringVal(runName))
			if err != nil {
				return nil, sweeperr.Configf(field.Name, "%v", err)
			}
			values = append(values, Value{Field: field, Value: v, Source: FromHarness})
			continue
		}
		if v, ok := overrides[field.Name]; ok {
			values = append(values, Value{Field: field, Value: v, Source: FromAssignment})
			continue
		}
		if v, ok := tmpl.Value(field.Name); ok {
			values = append(values, Value{Field: field, Value: v, Source: FromTemplate})
			continue
		}
		if field.HasDefault() {
			values = append(values, Value{Field: field, Value: field.Default, Source: FromDefault})
			continue
		}
		if field.Required {
			return nil, sweeperr.MissingField(field.Name)
		}
	}

	cfg := &Config{
		template:   tmpl,
		name:       runName,
		assignment: assignment,
		devices:    devices,
		values:     values,
	}
	if err := cfg.checkDomainSplit(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkDomainSplit rejects a target domain that is also a source domain.
func (c *Config) checkDomainSplit() error {
	target, ok := c.Get("target")
	if !ok {
		return nil
	}
	sources, ok := c.Get("sources")
	if !ok {
		return nil
	}
	for it := sources.ElementIterator(); it.Next(); {
		_, src := it.Element()
		if src.AsString() == target.AsString() {
			return sweeperr.Configf("target", "target domain %q is also listed as a source domain", target.AsString())
		}
	}
	return nil
}

// Name is the run name.
func (c *Config) Name() string { return c.name }

// Template is the protocol template the run was built from.
func (c *Config) Template() *protocol.Template { return c.template }

// Assignment is the grid assignment the run was built from.
func (c *Config) Assignment() grid.Assignment { return c.assignment }

// Index is the run's position in the grid's emission order.
func (c *Config) Index() int { return c.assignment.Index }

// Devices returns the per-run device selection, or nil when the device axis
// is not swept and the sweep-level binding applies.
func (c *Config) Devices() []int {
	if c.devices == nil {
		return nil
	}
	return append([]int{}, c.devices...)
}

// Values returns the resolved values in the kind's flag order.
func (c *Config) Values() []Value {
	return append([]Value(nil), c.values...)
}

// Get returns the resolved value of a field.
func (c *Config) Get(field string) (cty.Value, bool) {
	for _, v := range c.values {
		if v.Field.Name == field {
			return v.Value, true
		}
	}
	return cty.NilVal, false
}

// ParseDevices reads a device axis value: a single index, or a
// comma-separated list of indices. An empty string selects no device.
func ParseDevices(v cty.Value) ([]int, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("device must be known")
	}
	switch v.Type() {
	case cty.Number:
		bf := v.AsBigFloat()
		i, acc := bf.Int64()
		if !bf.IsInt() || acc != big.Exact || i < 0 {
			return nil, fmt.Errorf("device index must be a non-negative integer, got %s", grid.FormatValue(v))
		}
		return []int{int(i)}, nil
	case cty.String:
		s := strings.TrimSpace(v.AsString())
		if s == "" {
			return []int{}, nil
		}
		var out []int
		for _, part := range strings.Split(s, ",") {
			i, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || i < 0 {
				return nil, fmt.Errorf("invalid device index %q", part)
			}
			out = append(out, i)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("device must be a number or a comma-separated string, got %s", v.Type().FriendlyName())
	}
}
