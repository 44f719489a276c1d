// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/protocol"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToCtyValue converts a native Go value, as produced by a generic decoder,
// into its cty equivalent. Slices become tuples and string-keyed maps become
// objects.
func ToCtyValue(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return t, nil
	case []any:
		elems := make([]cty.Value, len(t))
		for i, e := range t {
			ev, err := ToCtyValue(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(t))
		for _, k := range keys {
			ev, err := ToCtyValue(t[k])
			if err != nil {
				return cty.NilVal, fmt.Errorf("key %q: %w", k, err)
			}
			attrs[k] = ev
		}
		return cty.ObjectVal(attrs), nil
	}

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// Elements flattens a list, set or tuple value into its elements.
func Elements(v cty.Value) ([]cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("must be a known list")
	}
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return nil, fmt.Errorf("must be a list, got %s", ty.FriendlyName())
	}
	out := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, e := it.Element()
		out = append(out, e)
	}
	return out, nil
}

// Template builds the protocol template the block describes.
func (p *Protocol) Template() (*protocol.Template, error) {
	tmpl, err := protocol.NewTemplate(protocol.Kind(p.Kind), p.Name, p.Values)
	if err != nil {
		return nil, fmt.Errorf("protocol %q (%s): %w", p.Name, p.Source, err)
	}
	return tmpl, nil
}

// Grid builds the parameter grid the sweep describes.
func (s *Sweep) Grid() (*grid.Grid, error) {
	mode, err := grid.ParseMode(s.Mode)
	if err != nil {
		return nil, fmt.Errorf("sweep %q (%s): %w", s.Name, s.Source, err)
	}
	axes := make([]grid.Axis, len(s.Axes))
	for i, a := range s.Axes {
		axes[i] = grid.Axis{Name: a.Name, Values: a.Values}
	}
	g, err := grid.New(mode, axes...)
	if err != nil {
		return nil, fmt.Errorf("sweep %q (%s): %w", s.Name, s.Source, err)
	}
	return g, nil
}
