package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/grid"
	"github.com/specialistvlad/sweepgrid/internal/protocol"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// Strings builds a cty tuple of strings.
func Strings(items ...string) cty.Value {
	vals := make([]cty.Value, len(items))
	for i, s := range items {
		vals[i] = cty.StringVal(s)
	}
	return cty.TupleVal(vals)
}

// Ints builds a slice of cty integers, handy for axis values.
func Ints(vals ...int64) []cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberIntVal(v)
	}
	return out
}

// VAEValues are the fixed values of the VAE-warmup protocol on PACS with
// target C and sources A, S, P.
func VAEValues() map[string]cty.Value {
	return map[string]cty.Value{
		"dataset":         cty.StringVal("PACS"),
		"sources":         Strings("A", "S", "P"),
		"target":          cty.StringVal("C"),
		"arch":            cty.StringVal("resnet18"),
		"z_dim":           cty.NumberIntVal(64),
		"s_dim":           cty.NumberIntVal(4),
		"C_max":           cty.NumberIntVal(15),
		"beta":            cty.NumberIntVal(1),
		"lambda_vae":      cty.NumberFloatVal(5e-5),
		"lambda_ent":      cty.NumberFloatVal(0.1),
		"vae_epochs":      cty.NumberIntVal(2),
		"unstable_epochs": cty.NumberIntVal(1),
		"stable_epochs":   cty.NumberIntVal(1),
		"i":               cty.NumberIntVal(100),
	}
}

// DecoupleValues are the fixed values of the decoupling protocol on PACS with
// target P and sources C, S, A.
func DecoupleValues() map[string]cty.Value {
	return map[string]cty.Value{
		"dataset":         cty.StringVal("PACS"),
		"sources":         Strings("C", "S", "A"),
		"target":          cty.StringVal("P"),
		"arch":            cty.StringVal("resnet18"),
		"z_dim":           cty.NumberIntVal(64),
		"i":               cty.NumberIntVal(1000),
		"train_epochs":    cty.NumberIntVal(10),
		"finetune_epochs": cty.NumberIntVal(5),
		"decouple_alpha":  cty.NumberFloatVal(1.0),
		"decouple_beta":   cty.NumberFloatVal(10.0),
	}
}

// VAETemplate returns the "pacs_vae" template built from VAEValues.
func VAETemplate(t testing.TB) *protocol.Template {
	t.Helper()
	tmpl, err := protocol.NewTemplate(protocol.KindVAE, "pacs_vae", VAEValues())
	require.NoError(t, err)
	return tmpl
}

// DecoupleTemplate returns the "pacs_decouple" template built from
// DecoupleValues.
func DecoupleTemplate(t testing.TB) *protocol.Template {
	t.Helper()
	tmpl, err := protocol.NewTemplate(protocol.KindDecouple, "pacs_decouple", DecoupleValues())
	require.NoError(t, err)
	return tmpl
}

// SeedGrid returns a zip grid over the given seeds.
func SeedGrid(t testing.TB, seeds ...int64) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.ModeZip, grid.Axis{Name: "seed", Values: Ints(seeds...)})
	require.NoError(t, err)
	return g
}

// Context returns a context carrying a logger. Logs go to io.Discard unless
// SWEEPGRID_TEST_LOGS=true.
func Context(t testing.TB) context.Context {
	t.Helper()
	var w io.Writer = io.Discard
	if os.Getenv("SWEEPGRID_TEST_LOGS") == "true" {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// WriteFiles writes files (relative path -> content) under a fresh temporary
// directory and returns its path.
func WriteFiles(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}
