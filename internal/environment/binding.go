// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

const (
	// DefaultDeviceVar restricts which GPUs the Trainer process can see.
	DefaultDeviceVar = "CUDA_VISIBLE_DEVICES"
	// DefaultTrackingVar selects the experiment-tracking mode.
	DefaultTrackingVar = "WANDB_MODE"
)

// TrackingMode is the experiment-tracking mode handed to the Trainer.
type TrackingMode string

const (
	TrackingDisabled TrackingMode = "disabled"
	TrackingOffline  TrackingMode = "offline"
	TrackingOnline   TrackingMode = "online"
)

// ParseTrackingMode accepts the Trainer's own values and the off/local/remote
// aliases. An empty string disables tracking.
func ParseTrackingMode(s string) (TrackingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "off":
		return TrackingDisabled, nil
	case "offline", "local":
		return TrackingOffline, nil
	case "online", "remote":
		return TrackingOnline, nil
	default:
		return "", sweeperr.Environmentf("unknown tracking mode %q: must be disabled, offline or online", s)
	}
}

// Policy is the sweep-level description of the execution context, before
// it is checked against the machine.
type Policy struct {
	Tracking    string
	Devices     []int
	DatasetRoot string
	// DeviceCount overrides probing when set.
	DeviceCount *int
	// ProbeDevices forces availability to be determined even when Devices is
	// empty, because runs select devices through the device axis.
	ProbeDevices bool
	// SkipRootCheck accepts a dataset root that does not exist locally.
	SkipRootCheck bool
	DeviceVar     string
	TrackingVar   string
	// Extra variables for the Trainer process.
	Extra map[string]string
}

// Binding is a resolved, immutable execution context. A nil device list
// means the device variable is left untouched.
type Binding struct {
	tracking    TrackingMode
	devices     []int
	root        string
	available   int
	deviceVar   string
	trackingVar string
	extra       map[string]string
}

// Resolve checks a policy against the machine. Requesting a device that does
// not exist, or requesting devices when availability cannot be determined,
// is an EnvironmentError; there is no fallback to fewer devices.
func Resolve(ctx context.Context, policy Policy, prober Prober) (*Binding, error) {
	logger := ctxlog.FromContext(ctx)

	mode, err := ParseTrackingMode(policy.Tracking)
	if err != nil {
		return nil, err
	}

	root, err := resolveRoot(policy.DatasetRoot, policy.SkipRootCheck)
	if err != nil {
		return nil, err
	}

	b := &Binding{
		tracking:    mode,
		root:        root,
		available:   -1,
		deviceVar:   orDefault(policy.DeviceVar, DefaultDeviceVar),
		trackingVar: orDefault(policy.TrackingVar, DefaultTrackingVar),
		extra:       make(map[string]string, len(policy.Extra)),
	}
	for k, v := range policy.Extra {
		if k == b.deviceVar || k == b.trackingVar {
			return nil, sweeperr.Environmentf("variable %s is managed by the harness and cannot be set directly", k)
		}
		b.extra[k] = v
	}

	if len(policy.Devices) > 0 || policy.ProbeDevices {
		switch {
		case policy.DeviceCount != nil:
			b.available = *policy.DeviceCount
		case prober != nil:
			n, err := prober.DeviceCount(ctx)
			if err != nil {
				return nil, &sweeperr.EnvironmentError{Reason: "cannot determine available devices", Err: err}
			}
			b.available = n
		default:
			return nil, sweeperr.Environmentf("devices requested but no device count or prober configured")
		}
		logger.Debug("Device availability resolved.", "available", b.available)
	}

	if len(policy.Devices) > 0 {
		if err := b.check(policy.Devices); err != nil {
			return nil, err
		}
		b.devices = slices.Clone(policy.Devices)
	}

	logger.Debug("Environment binding resolved.", "tracking", b.tracking, "devices", b.DeviceKey(), "root", b.root)
	return b, nil
}

func resolveRoot(root string, skipCheck bool) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", sweeperr.Environmentf("dataset root is not set")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &sweeperr.EnvironmentError{Reason: "resolve dataset root", Err: err}
	}
	if skipCheck {
		return abs, nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &sweeperr.EnvironmentError{Reason: "dataset root " + abs + " is not accessible", Err: err}
	}
	if !info.IsDir() {
		return "", sweeperr.Environmentf("dataset root %s is not a directory", abs)
	}
	return abs, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (b *Binding) check(devices []int) error {
	if b.available < 0 {
		return sweeperr.Environmentf("device availability was not determined")
	}
	seen := make(map[int]struct{}, len(devices))
	for _, d := range devices {
		if d < 0 || d >= b.available {
			return sweeperr.Environmentf("device %d requested but only %d device(s) available", d, b.available)
		}
		if _, dup := seen[d]; dup {
			return sweeperr.Environmentf("device %d requested twice", d)
		}
		seen[d] = struct{}{}
	}
	return nil
}

// WithDevices derives a binding that exposes exactly the given devices,
// validated against the availability established by Resolve.
func (b *Binding) WithDevices(devices []int) (*Binding, error) {
	if err := b.check(devices); err != nil {
		return nil, err
	}
	c := *b
	c.devices = slices.Clone(devices)
	if c.devices == nil {
		c.devices = []int{}
	}
	return &c, nil
}

// Tracking is the tracking mode.
func (b *Binding) Tracking() TrackingMode { return b.tracking }

// DatasetRoot is the absolute dataset root.
func (b *Binding) DatasetRoot() string { return b.root }

// Devices returns the selected devices, or nil when unrestricted.
func (b *Binding) Devices() []int { return slices.Clone(b.devices) }

// Available is the number of devices on the machine, or -1 when it was
// never needed.
func (b *Binding) Available() int { return b.available }

// DeviceKey identifies the device set, "*" when unrestricted. Runs with the
// same key contend for the same hardware.
func (b *Binding) DeviceKey() string {
	if b.devices == nil {
		return "*"
	}
	return joinInts(b.devices)
}

func joinInts(ints []int) string {
	parts := make([]string, len(ints))
	for i, d := range ints {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// Vars returns the variables the binding sets, as KEY=VALUE pairs: extras in
// key order, then the device variable, then the tracking variable.
func (b *Binding) Vars() []string {
	keys := make([]string, 0, len(b.extra))
	for k := range b.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		vars = append(vars, k+"="+b.extra[k])
	}
	if b.devices != nil {
		vars = append(vars, b.deviceVar+"="+joinInts(b.devices))
	}
	vars = append(vars, b.trackingVar+"="+string(b.tracking))
	return vars
}

// Environ returns a new environment for the Trainer: base without any
// variable the binding sets, followed by Vars. base is not modified.
func (b *Binding) Environ(base []string) []string {
	set := make(map[string]struct{})
	vars := b.Vars()
	for _, kv := range vars {
		k, _, _ := strings.Cut(kv, "=")
		set[k] = struct{}{}
	}

	env := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := set[k]; overridden {
			continue
		}
		env = append(env, kv)
	}
	return append(env, vars...)
}

func (b *Binding) String() string {
	return fmt.Sprintf("tracking=%s devices=%s root=%s", b.tracking, b.DeviceKey(), b.root)
}
