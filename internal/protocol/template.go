// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package protocol

import (
	"maps"
	"sort"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/zclconf/go-cty/cty"
)

// Template is a named, immutable protocol definition: a kind plus the fixed
// values every run of the protocol shares.
type Template struct {
	name   string
	schema *Schema
	values map[string]cty.Value
}

// NewTemplate validates values against the kind's field table. Unknown
// fields, derived fields and values outside a field's domain are
// ConfigErrors. Missing required fields are allowed here; they may still be
// supplied by the grid and are only checked when a run is built.
func NewTemplate(kind Kind, name string, values map[string]cty.Value) (*Template, error) {
	if name == "" {
		return nil, &sweeperr.ConfigError{Reason: "protocol template has no name"}
	}
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}

	coerced := make(map[string]cty.Value, len(values))
	// Sorted so the first reported error is stable.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		fieldName := CanonicalField(raw)
		field, ok := schema.Field(fieldName)
		if !ok {
			return nil, sweeperr.Configf(raw, "unknown field for %s protocol %q", kind, name)
		}
		if field.Derived {
			return nil, sweeperr.Configf(raw, "field is set by the harness and cannot be fixed in a template")
		}
		if _, dup := coerced[fieldName]; dup {
			return nil, sweeperr.Configf(fieldName, "field set more than once (via alias %q)", raw)
		}
		v, err := field.Coerce(values[raw])
		if err != nil {
			return nil, sweeperr.Configf(fieldName, "%v", err)
		}
		coerced[fieldName] = v
	}

	return &Template{name: name, schema: schema, values: coerced}, nil
}

// Name is the template's unique name.
func (t *Template) Name() string { return t.name }

// Kind is the protocol kind.
func (t *Template) Kind() Kind { return t.schema.Kind }

// Schema is the kind's field table.
func (t *Template) Schema() *Schema { return t.schema }

// Identity is "<kind>/<name>", unique across templates of every kind.
func (t *Template) Identity() string { return string(t.schema.Kind) + "/" + t.name }

// Value returns the template's fixed value for a field, if any.
func (t *Template) Value(field string) (cty.Value, bool) {
	v, ok := t.values[field]
	return v, ok
}

// Values returns a copy of the fixed values.
func (t *Template) Values() map[string]cty.Value {
	return maps.Clone(t.values)
}
