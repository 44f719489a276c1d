// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package grid

import (
	"iter"
	"math/big"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Assignment maps each axis name to one value. Index is its position in the
// grid's emission order.
type Assignment struct {
	Index  int
	names  []string
	values []cty.Value
}

// NewAssignment builds an assignment directly, mainly for tests and for
// re-planning a single run. names and values must have the same length.
func NewAssignment(index int, names []string, values []cty.Value) Assignment {
	if len(names) != len(values) {
		panic("grid: names and values must have the same length")
	}
	return Assignment{
		Index:  index,
		names:  append([]string(nil), names...),
		values: append([]cty.Value(nil), values...),
	}
}

// Len is the number of axes in the assignment.
func (a Assignment) Len() int { return len(a.names) }

// Get returns the value for an axis.
func (a Assignment) Get(name string) (cty.Value, bool) {
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return cty.NilVal, false
}

// All iterates over axis name and value pairs in axis order.
func (a Assignment) All() iter.Seq2[string, cty.Value] {
	return func(yield func(string, cty.Value) bool) {
		for i, n := range a.names {
			if !yield(n, a.values[i]) {
				return
			}
		}
	}
}

// Names returns the axis names in axis order.
func (a Assignment) Names() []string {
	return append([]string(nil), a.names...)
}

// Map returns the assignment as a fresh map.
func (a Assignment) Map() map[string]cty.Value {
	m := make(map[string]cty.Value, len(a.names))
	for i, n := range a.names {
		m[n] = a.values[i]
	}
	return m
}

// Equal reports whether both assignments bind the same names to equal values,
// ignoring Index.
func (a Assignment) Equal(other Assignment) bool {
	if len(a.names) != len(other.names) {
		return false
	}
	for i, n := range a.names {
		v, ok := other.Get(n)
		if !ok || !a.values[i].RawEquals(v) {
			return false
		}
	}
	return true
}

// String renders the assignment as "name=value" pairs, for logs.
func (a Assignment) String() string {
	var sb strings.Builder
	for i, n := range a.names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(n)
		sb.WriteByte('=')
		sb.WriteString(FormatValue(a.values[i]))
	}
	return sb.String()
}

// FormatValue renders a primitive cty value the way it is passed on a
// command line: integers without a fractional part, other numbers in the
// shortest form that round-trips a float64, strings verbatim.
func FormatValue(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return ""
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return strconv.FormatBool(v.True())
	case cty.Number:
		return formatNumber(v.AsBigFloat())
	default:
		return v.GoString()
	}
}

func formatNumber(bf *big.Float) string {
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == big.Exact {
			return strconv.FormatInt(i, 10)
		}
		return bf.Text('f', 0)
	}
	f, _ := bf.Float64()
	return strconv.FormatFloat(f, 'g', -1, 64)
}
