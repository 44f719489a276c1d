package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string { return []string{".yaml", ".yml"} }

// Load decodes every file in strict mode and merges them into one model.
func (l *Loader) Load(ctx context.Context, files ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "file_count", len(files))

	model := &config.Model{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, &sweeperr.ConfigError{Reason: fmt.Sprintf("failed to read YAML file %s: %v", file, err)}
		}
		root, err := decode(data)
		if err != nil {
			return nil, &sweeperr.ConfigError{Reason: fmt.Sprintf("failed to decode YAML file %s: %v", file, err)}
		}
		part, err := translateFile(file, root)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, err
		}
	}

	logger.Debug("YAML loading complete.", "protocols", len(model.Protocols), "sweeps", len(model.Sweeps))
	return model, nil
}

func decode(data []byte) (*fileRoot, error) {
	var root fileRoot
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &root, nil
}

func translateFile(file string, root *fileRoot) (*config.Model, error) {
	m := &config.Model{Files: []string{file}}

	if t := root.Trainer; t != nil {
		if t.Command == "" {
			return nil, sweeperr.Configf("command", "trainer in %s has no command", file)
		}
		timeout, err := config.ParseDuration("timeout", t.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		grace, err := config.ParseDuration("kill_grace", t.KillGrace)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		m.Trainer = &config.Trainer{
			Command:   t.Command,
			Args:      t.Args,
			Timeout:   timeout,
			KillGrace: grace,
			LogDir:    t.LogDir,
			WorkDir:   t.WorkDir,
			Env:       t.Env,
		}
	}

	if e := root.Environment; e != nil {
		m.Environment = &config.Environment{
			Tracking:        e.Tracking,
			Devices:         e.Devices,
			DatasetRoot:     e.DatasetRoot,
			DeviceCount:     e.DeviceCount,
			DeviceVar:       e.DeviceVar,
			TrackingVar:     e.TrackingVar,
			ParallelDevices: e.ParallelDevices,
		}
	}

	for i, p := range root.Protocols {
		if p.Kind == "" || p.Name == "" {
			return nil, sweeperr.Configf("protocol", "entry %d in %s needs both kind and name", i, file)
		}
		values := make(map[string]cty.Value, len(p.Values))
		for k, raw := range p.Values {
			v, err := config.ToCtyValue(raw)
			if err != nil {
				return nil, sweeperr.Configf(k, "protocol %q in %s: %v", p.Name, file, err)
			}
			values[k] = v
		}
		m.Protocols = append(m.Protocols, &config.Protocol{Kind: p.Kind, Name: p.Name, Values: values, Source: file})
	}

	for i, s := range root.Sweeps {
		if s.Name == "" {
			return nil, sweeperr.Configf("sweep", "entry %d in %s has no name", i, file)
		}
		sweep := &config.Sweep{
			Name:     s.Name,
			Protocol: s.Protocol,
			Mode:     s.Mode,
			NameAxes: s.NameAxes,
			Source:   file,
		}
		for _, a := range s.Axes {
			if a.Values == nil {
				return nil, sweeperr.Configf(a.Name, "sweep %q in %s: axis has no values", s.Name, file)
			}
			values := make([]cty.Value, len(a.Values))
			for j, raw := range a.Values {
				v, err := config.ToCtyValue(raw)
				if err != nil {
					return nil, sweeperr.Configf(a.Name, "sweep %q in %s: value %d: %v", s.Name, file, j, err)
				}
				values[j] = v
			}
			sweep.Axes = append(sweep.Axes, config.Axis{Name: a.Name, Values: values})
		}
		m.Sweeps = append(m.Sweeps, sweep)
	}
	return m, nil
}
