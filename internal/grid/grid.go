// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package grid

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/zclconf/go-cty/cty"
)

// Mode selects how axes are combined.
type Mode string

const (
	ModeZip     Mode = "zip"
	ModeProduct Mode = "product"
)

// ParseMode converts a user-supplied mode string. An empty string means zip,
// which is how single-axis seed sweeps are usually written.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeZip):
		return ModeZip, nil
	case string(ModeProduct), "cartesian":
		return ModeProduct, nil
	default:
		return "", sweeperr.Configf("mode", "unknown grid mode %q: must be 'zip' or 'product'", s)
	}
}

// Axis is one named hyperparameter and its candidate values, in order.
type Axis struct {
	Name   string
	Values []cty.Value
}

// Grid is a validated, immutable set of axes plus an expansion mode.
type Grid struct {
	mode Mode
	axes []Axis
}

// New validates the axes and returns a Grid. It fails with a ConfigError if
// there are no axes, an axis is empty or unnamed, an axis name repeats, a
// value is not a known primitive, or zip axes have different lengths.
func New(mode Mode, axes ...Axis) (*Grid, error) {
	if mode != ModeZip && mode != ModeProduct {
		return nil, sweeperr.Configf("mode", "unknown grid mode %q", mode)
	}
	if len(axes) == 0 {
		return nil, &sweeperr.ConfigError{Reason: "grid has no axes"}
	}

	seen := make(map[string]struct{}, len(axes))
	copied := make([]Axis, 0, len(axes))
	for _, axis := range axes {
		if axis.Name == "" {
			return nil, &sweeperr.ConfigError{Reason: "axis with empty name"}
		}
		if _, dup := seen[axis.Name]; dup {
			return nil, sweeperr.Configf(axis.Name, "axis declared more than once")
		}
		seen[axis.Name] = struct{}{}

		if len(axis.Values) == 0 {
			return nil, sweeperr.Configf(axis.Name, "axis has no values")
		}
		for i, v := range axis.Values {
			if err := checkValue(v); err != nil {
				return nil, sweeperr.Configf(axis.Name, "value %d: %v", i, err)
			}
		}
		copied = append(copied, Axis{Name: axis.Name, Values: slices.Clone(axis.Values)})
	}

	if mode == ModeZip {
		want := len(copied[0].Values)
		for _, axis := range copied[1:] {
			if len(axis.Values) != want {
				return nil, sweeperr.Configf(axis.Name,
					"zip axes must have equal length: %q has %d values, %q has %d",
					copied[0].Name, want, axis.Name, len(axis.Values))
			}
		}
	}

	return &Grid{mode: mode, axes: copied}, nil
}

func checkValue(v cty.Value) error {
	if v.IsNull() {
		return fmt.Errorf("null values are not allowed")
	}
	if !v.IsWhollyKnown() {
		return fmt.Errorf("value is not known")
	}
	switch v.Type() {
	case cty.Number, cty.String, cty.Bool:
		return nil
	default:
		return fmt.Errorf("unsupported type %s: axis values must be numbers, strings or bools", v.Type().FriendlyName())
	}
}

// Mode returns the expansion mode.
func (g *Grid) Mode() Mode { return g.mode }

// Axes returns a copy of the axes in declaration order.
func (g *Grid) Axes() []Axis {
	out := make([]Axis, len(g.axes))
	for i, a := range g.axes {
		out[i] = Axis{Name: a.Name, Values: slices.Clone(a.Values)}
	}
	return out
}

// Names returns the axis names in declaration order.
func (g *Grid) Names() []string {
	names := make([]string, len(g.axes))
	for i, a := range g.axes {
		names[i] = a.Name
	}
	return names
}

// Len is the number of assignments the grid emits.
func (g *Grid) Len() int {
	if g.mode == ModeZip {
		return len(g.axes[0].Values)
	}
	n := 1
	for _, a := range g.axes {
		n *= len(a.Values)
	}
	return n
}

// Assignments returns a lazy, restartable sequence of assignments in
// emission order.
func (g *Grid) Assignments() iter.Seq[Assignment] {
	names := g.Names()
	if g.mode == ModeZip {
		return func(yield func(Assignment) bool) {
			for i := range len(g.axes[0].Values) {
				values := make([]cty.Value, len(g.axes))
				for j, a := range g.axes {
					values[j] = a.Values[i]
				}
				if !yield(Assignment{Index: i, names: names, values: values}) {
					return
				}
			}
		}
	}

	return func(yield func(Assignment) bool) {
		pos := make([]int, len(g.axes))
		for index := 0; ; index++ {
			values := make([]cty.Value, len(g.axes))
			for j, a := range g.axes {
				values[j] = a.Values[pos[j]]
			}
			if !yield(Assignment{Index: index, names: names, values: values}) {
				return
			}

			// Advance the odometer, last axis first.
			j := len(pos) - 1
			for ; j >= 0; j-- {
				pos[j]++
				if pos[j] < len(g.axes[j].Values) {
					break
				}
				pos[j] = 0
			}
			if j < 0 {
				return
			}
		}
	}
}

// Collect materializes every assignment.
func (g *Grid) Collect() []Assignment {
	return slices.Collect(g.Assignments())
}
