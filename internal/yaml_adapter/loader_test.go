package yaml_adapter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/protocol"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/specialistvlad/sweepgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const decoupleSweep = `
trainer:
  command: python
  args: [main.py]
  timeout: 6h
  log_dir: logs
environment:
  tracking: disabled
  dataset_root: data
  device_count: 1
protocols:
  - kind: decouple
    name: pacs_decouple
    values:
      dataset: PACS
      sources: [C, S, A]
      target: P
      arch: resnet18
      z_dim: 64
      i: 1000
      train_epochs: 10
      finetune_epochs: 5
      decouple_alpha: 1.0
      decouple_beta: 10.0
sweeps:
  - name: pacs_p
    protocol: pacs_decouple
    mode: product
    name_axes: [seed]
    axes:
      - name: seed
        values: [1, 2, 3]
      - name: decouple_beta
        values: [5.0, 10.0]
`

func writeAll(t *testing.T, files map[string]string, names ...string) []string {
	t.Helper()
	dir := testutil.WriteFiles(t, files)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths
}

func TestLoader_Load(t *testing.T) {
	paths := writeAll(t, map[string]string{"pacs.yaml": decoupleSweep}, "pacs.yaml")

	m, err := NewLoader().Load(testutil.Context(t), paths...)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, "python", m.Trainer.Command)
	assert.Equal(t, 6*time.Hour, m.Trainer.Timeout)
	require.NotNil(t, m.Environment.DeviceCount)
	assert.Equal(t, 1, *m.Environment.DeviceCount)
	assert.Nil(t, m.Environment.Devices)

	tmpl, err := m.Protocols[0].Template()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindDecouple, tmpl.Kind())
	target, ok := tmpl.Value("target")
	require.True(t, ok)
	assert.Equal(t, cty.StringVal("P"), target)

	s, ok := m.Sweep("pacs_p")
	require.True(t, ok)
	assert.Equal(t, []string{"seed"}, s.NameAxes)
	g, err := s.Grid()
	require.NoError(t, err)
	assert.Equal(t, grid.ModeProduct, g.Mode())
	assert.Equal(t, 6, g.Len())
	assert.True(t, s.Axes[0].Values[0].Equals(cty.NumberIntVal(1)).True())
}

func TestLoader_EmptyFileAndMerge(t *testing.T) {
	paths := writeAll(t, map[string]string{
		"empty.yml": "",
		"pacs.yaml": decoupleSweep,
	}, "empty.yml", "pacs.yaml")

	m, err := NewLoader().Load(testutil.Context(t), paths...)
	require.NoError(t, err)
	assert.Equal(t, paths, m.Files)
	assert.Len(t, m.Sweeps, 1)
}

func TestLoader_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "unknown field", content: "trainer:\n  command: python\n  gpus: 2\n", wantMsg: "failed to decode YAML file"},
		{name: "malformed", content: "trainer: [\n", wantMsg: "failed to decode YAML file"},
		{name: "trainer without command", content: "trainer:\n  log_dir: logs\n", wantMsg: "no command"},
		{name: "bad timeout", content: "trainer:\n  command: python\n  timeout: forever\n", wantMsg: "invalid duration"},
		{name: "nameless protocol", content: "protocols:\n  - kind: vae\n", wantMsg: "needs both kind and name"},
		{name: "axis without values", content: "sweeps:\n  - name: s\n    protocol: p\n    axes:\n      - name: seed\n", wantMsg: "axis has no values"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			paths := writeAll(t, map[string]string{"a.yaml": tc.content}, "a.yaml")
			_, err := NewLoader().Load(testutil.Context(t), paths...)
			require.Error(t, err)
			assert.ErrorIs(t, err, sweeperr.ErrConfig)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(testutil.Context(t), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, sweeperr.ErrConfig)
}

func TestLoader_Extensions(t *testing.T) {
	assert.Equal(t, []string{".yaml", ".yml"}, NewLoader().Extensions())
}
