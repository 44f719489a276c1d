// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package protocol

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Domain is the set of values a field accepts.
type Domain int

const (
	// PositiveInt is an integer > 0 (dimensions, epoch counts, batch sizes).
	PositiveInt Domain = iota
	// NonNegativeInt is an integer >= 0 (seeds).
	NonNegativeInt
	// NonNegativeReal is a finite real >= 0 (loss weights, capacities).
	NonNegativeReal
	// Text is a non-empty string.
	Text
	// TextList is a non-empty list of non-empty strings, passed comma-joined.
	TextList
)

func (d Domain) String() string {
	switch d {
	case PositiveInt:
		return "positive integer"
	case NonNegativeInt:
		return "non-negative integer"
	case NonNegativeReal:
		return "finite non-negative real"
	case Text:
		return "non-empty string"
	case TextList:
		return "non-empty list of strings"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

func (d Domain) ctyType() cty.Type {
	switch d {
	case Text:
		return cty.String
	case TextList:
		return cty.List(cty.String)
	default:
		return cty.Number
	}
}

// Field describes one Trainer parameter.
type Field struct {
	Name   string
	Flag   string
	Domain Domain
	// Required fields must resolve to a value from the assignment, the
	// template or Default before a run can be built.
	Required bool
	// Default is cty.NilVal when the field has no central default.
	Default cty.Value
	// Derived fields are filled in by the harness (the run name) and may not
	// be set by templates or grids.
	Derived bool
}

// HasDefault reports whether the field carries a central default.
func (f Field) HasDefault() bool {
	return f.Default != cty.NilVal
}

// Coerce converts v to the field's type and checks it against the domain.
// A plain string is accepted for a TextList field and split on commas.
func (f Field) Coerce(v cty.Value) (cty.Value, error) {
	if v.IsNull() {
		return cty.NilVal, fmt.Errorf("must not be null")
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("value is not known")
	}

	if f.Domain == TextList && v.Type() == cty.String {
		v = splitList(v.AsString())
	}

	converted, err := convert.Convert(v, f.Domain.ctyType())
	if err != nil {
		return cty.NilVal, fmt.Errorf("expected %s: %w", f.Domain, err)
	}
	if err := f.check(converted); err != nil {
		return cty.NilVal, err
	}
	return converted, nil
}

func splitList(s string) cty.Value {
	parts := strings.Split(s, ",")
	vals := make([]cty.Value, 0, len(parts))
	for _, p := range parts {
		vals = append(vals, cty.StringVal(strings.TrimSpace(p)))
	}
	return cty.TupleVal(vals)
}

func (f Field) check(v cty.Value) error {
	switch f.Domain {
	case PositiveInt, NonNegativeInt:
		bf := v.AsBigFloat()
		if bf.IsInf() || !bf.IsInt() {
			return fmt.Errorf("expected %s, got %s", f.Domain, grid.FormatValue(v))
		}
		if f.Domain == PositiveInt && bf.Sign() <= 0 {
			return fmt.Errorf("expected %s, got %s", f.Domain, grid.FormatValue(v))
		}
		if f.Domain == NonNegativeInt && bf.Sign() < 0 {
			return fmt.Errorf("expected %s, got %s", f.Domain, grid.FormatValue(v))
		}
		if _, acc := bf.Int64(); acc != big.Exact {
			return fmt.Errorf("integer %s out of range", bf.Text('f', 0))
		}
	case NonNegativeReal:
		bf := v.AsBigFloat()
		if bf.IsInf() {
			return fmt.Errorf("expected %s, got infinity", f.Domain)
		}
		if bf.Sign() < 0 {
			return fmt.Errorf("expected %s, got %s", f.Domain, grid.FormatValue(v))
		}
	case Text:
		if strings.TrimSpace(v.AsString()) == "" {
			return fmt.Errorf("expected %s", f.Domain)
		}
	case TextList:
		if v.LengthInt() == 0 {
			return fmt.Errorf("expected %s", f.Domain)
		}
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			s := elem.AsString()
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("list contains an empty entry")
			}
			if strings.Contains(s, ",") {
				return fmt.Errorf("entry %q must not contain a comma", s)
			}
		}
	}
	return nil
}

// Format renders a coerced value as a single command-line argument.
func (f Field) Format(v cty.Value) string {
	if f.Domain == TextList {
		items := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			items = append(items, elem.AsString())
		}
		return strings.Join(items, ",")
	}
	return grid.FormatValue(v)
}
