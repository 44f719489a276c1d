// This file contains the logic for translating the HCL schema structs into
// the format-agnostic configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

func (l *Loader) translateFile(ctx context.Context, file string, root *fileRoot, evalCtx *hcl.EvalContext) (*config.Model, error) {
	m := &config.Model{Files: []string{file}}

	if len(root.Trainers) > 1 {
		return nil, sweeperr.Configf("trainer", "declared more than once in %s", file)
	}
	if len(root.Trainers) == 1 {
		t, err := translateTrainer(root.Trainers[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		m.Trainer = t
	}

	if len(root.Environments) > 1 {
		return nil, sweeperr.Configf("environment", "declared more than once in %s", file)
	}
	if len(root.Environments) == 1 {
		m.Environment = translateEnvironment(root.Environments[0])
	}

	for _, p := range root.Protocols {
		values, diags := bodyValues(p.Body, evalCtx)
		if diags.HasErrors() {
			return nil, &sweeperr.ConfigError{Field: p.Name, Reason: fmt.Sprintf("protocol %q in %s: %s", p.Name, file, diags.Error())}
		}
		m.Protocols = append(m.Protocols, &config.Protocol{
			Kind:   p.Kind,
			Name:   p.Name,
			Values: values,
			Source: file,
		})
	}

	for _, s := range root.Sweeps {
		sweep, err := l.translateSweep(ctx, file, s, evalCtx)
		if err != nil {
			return nil, err
		}
		m.Sweeps = append(m.Sweeps, sweep)
	}
	return m, nil
}

func translateTrainer(t *trainerBlock) (*config.Trainer, error) {
	timeout, err := config.ParseDuration("timeout", t.Timeout)
	if err != nil {
		return nil, err
	}
	grace, err := config.ParseDuration("kill_grace", t.KillGrace)
	if err != nil {
		return nil, err
	}
	return &config.Trainer{
		Command:   t.Command,
		Args:      t.Args,
		Timeout:   timeout,
		KillGrace: grace,
		LogDir:    t.LogDir,
		WorkDir:   t.WorkDir,
		Env:       t.Env,
	}, nil
}

func translateEnvironment(e *environmentBlock) *config.Environment {
	return &config.Environment{
		Tracking:        e.Tracking,
		Devices:         e.Devices,
		DatasetRoot:     e.DatasetRoot,
		DeviceCount:     e.DeviceCount,
		DeviceVar:       e.DeviceVar,
		TrackingVar:     e.TrackingVar,
		ParallelDevices: e.ParallelDevices,
	}
}

// translateSweep converts the HCL-specific sweep schema into the agnostic model.
func (l *Loader) translateSweep(ctx context.Context, file string, s *sweepBlock, evalCtx *hcl.EvalContext) (*config.Sweep, error) {
	logger := ctxlog.FromContext(ctx).With("sweep", s.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Translating HCL sweep to internal config model.", "axes", len(s.Axes))

	sweep := &config.Sweep{
		Name:     s.Name,
		Protocol: s.Protocol,
		Mode:     s.Mode,
		Source:   file,
	}

	if isExprDefined(ctx, s.NameAxes, "name_axes") {
		names, err := stringList(s.NameAxes, evalCtx)
		if err != nil {
			return nil, sweeperr.Configf("name_axes", "sweep %q in %s: %v", s.Name, file, err)
		}
		sweep.NameAxes = names
	}

	for _, a := range s.Axes {
		v, diags := a.Values.Value(evalCtx)
		if diags.HasErrors() {
			return nil, sweeperr.Configf(a.Name, "sweep %q in %s: %s", s.Name, file, diags.Error())
		}
		values, err := config.Elements(v)
		if err != nil {
			return nil, sweeperr.Configf(a.Name, "sweep %q in %s: axis values %v", s.Name, file, err)
		}
		sweep.Axes = append(sweep.Axes, config.Axis{Name: a.Name, Values: values})
	}
	return sweep, nil
}
