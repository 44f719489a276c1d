package run

import (
	"fmt"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/specialistvlad/sweepgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"pgregory.net/rapid"
)

func TestName_Formats(t *testing.T) {
	tmpl := testutil.VAETemplate(t)

	testCases := []struct {
		name     string
		axes     []string
		values   []cty.Value
		nameAxes []string
		want     string
	}{
		{name: "seed only", axes: []string{"seed"}, values: []cty.Value{cty.NumberIntVal(4)}, want: "pacs_vae_C_seed4"},
		{
			name:   "swept target replaces the template target",
			axes:   []string{"target", "seed"},
			values: []cty.Value{cty.StringVal("P"), cty.NumberIntVal(1)},
			want:   "pacs_vae_P_seed1",
		},
		{
			name:   "floats and devices",
			axes:   []string{"seed", "lambda_vae", "device"},
			values: []cty.Value{cty.NumberIntVal(2), cty.NumberFloatVal(5e-5), cty.NumberIntVal(1)},
			want:   "pacs_vae_C_seed2_lambda_vae5e-05_device1",
		},
		{
			name:     "restricted name axes",
			axes:     []string{"seed", "device"},
			values:   []cty.Value{cty.NumberIntVal(2), cty.NumberIntVal(1)},
			nameAxes: []string{"seed"},
			want:     "pacs_vae_C_seed2",
		},
		{
			name:   "unsafe characters",
			axes:   []string{"arch"},
			values: []cty.Value{cty.StringVal("vit/b 16")},
			want:   "pacs_vae_C_archvit%2Fb%2016",
		},
		{
			name:   "underscores inside values are escaped",
			axes:   []string{"arch", "phase"},
			values: []cty.Value{cty.StringVal("r18_phasetrain"), cty.StringVal("x")},
			want:   "pacs_vae_C_archr18%5Fphasetrain_phasex",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Name(tmpl, grid.NewAssignment(0, tc.axes, tc.values), tc.nameAxes)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestName_UnknownNameAxis(t *testing.T) {
	_, err := Name(testutil.VAETemplate(t), seedAssignment(1), []string{"beta"})
	assert.ErrorIs(t, err, sweeperr.ErrConfig)
}

func TestName_DistinctValuesNeverShareAName(t *testing.T) {
	tmpl := testutil.VAETemplate(t)

	testCases := []struct {
		name   string
		axes   []string
		first  []cty.Value
		second []cty.Value
	}{
		{
			name:   "different unsafe characters",
			axes:   []string{"arch"},
			first:  []cty.Value{cty.StringVal("res/18")},
			second: []cty.Value{cty.StringVal("res:18")},
		},
		{
			name:   "underscore shifts the boundary between axes",
			axes:   []string{"arch", "phase"},
			first:  []cty.Value{cty.StringVal("r18_phasetrain"), cty.StringVal("x")},
			second: []cty.Value{cty.StringVal("r18"), cty.StringVal("train_phasex")},
		},
		{
			name:   "escaped form written literally",
			axes:   []string{"arch"},
			first:  []cty.Value{cty.StringVal("res/18")},
			second: []cty.Value{cty.StringVal("res%2F18")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := Name(tmpl, grid.NewAssignment(0, tc.axes, tc.first), nil)
			require.NoError(t, err)
			b, err := Name(tmpl, grid.NewAssignment(1, tc.axes, tc.second), nil)
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestNameSet_DetectsCollisions(t *testing.T) {
	set := NewNameSet()
	require.NoError(t, set.Claim("pacs_vae_C_seed4", "sweep a #0"))
	require.NoError(t, set.Claim("pacs_vae_C_seed5", "sweep a #1"))

	err := set.Claim("pacs_vae_C_seed4", "sweep b #0")
	require.Error(t, err)
	assert.ErrorIs(t, err, sweeperr.ErrConfig)
	assert.Contains(t, err.Error(), "sweep a #0")
	assert.Contains(t, err.Error(), "sweep b #0")
	assert.Equal(t, 2, set.Len())
}

// Property: names are a pure function of (template, assignment), and
// distinct assignments over the same axes never share a name.
func TestProperty_NamesAreDeterministicAndDistinct(t *testing.T) {
	tmpl := testutil.VAETemplate(t)

	rapid.Check(t, func(t *rapid.T) {
		seeds := rapid.SliceOfNDistinct(rapid.Int64Range(0, 10_000), 1, 8, rapid.ID[int64]).Draw(t, "seeds")
		betas := rapid.SliceOfNDistinct(rapid.Float64Range(0, 100), 1, 4, rapid.ID[float64]).Draw(t, "betas")
		text := rapid.StringMatching(`[a-z0-9_/:%. ,-]{0,8}`)
		archs := rapid.SliceOfNDistinct(text, 1, 4, rapid.ID[string]).Draw(t, "archs")
		phases := rapid.SliceOfNDistinct(text, 1, 4, rapid.ID[string]).Draw(t, "phases")

		g, err := grid.New(grid.ModeProduct,
			grid.Axis{Name: "seed", Values: testutil.Ints(seeds...)},
			grid.Axis{Name: "beta", Values: floats(betas)},
			grid.Axis{Name: "arch", Values: texts(archs)},
			grid.Axis{Name: "phase", Values: texts(phases)},
		)
		if err != nil {
			t.Fatalf("grid: %v", err)
		}

		set := NewNameSet()
		for a := range g.Assignments() {
			first, err := Name(tmpl, a, nil)
			if err != nil {
				t.Fatalf("name: %v", err)
			}
			again, _ := Name(tmpl, a, nil)
			if first != again {
				t.Fatalf("name not deterministic: %q vs %q", first, again)
			}
			if err := set.Claim(first, fmt.Sprint(a.Index)); err != nil {
				t.Fatalf("distinct assignments collided: %v", err)
			}
		}
	})
}

func floats(vals []float64) []cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberFloatVal(v)
	}
	return out
}

func texts(vals []string) []cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.StringVal(v)
	}
	return out
}
