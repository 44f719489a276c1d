// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Trainers     []*trainerBlock     `hcl:"trainer,block"`
	Environments []*environmentBlock `hcl:"environment,block"`
	Protocols    []*protocolBlock    `hcl:"protocol,block"`
	Sweeps       []*sweepBlock       `hcl:"sweep,block"`
	Remain       hcl.Body            `hcl:",remain"`
}

// trainerBlock describes the external training program.
type trainerBlock struct {
	Command   string            `hcl:"command"`
	Args      []string          `hcl:"args,optional"`
	Timeout   string            `hcl:"timeout,optional"`
	KillGrace string            `hcl:"kill_grace,optional"`
	LogDir    string            `hcl:"log_dir,optional"`
	WorkDir   string            `hcl:"work_dir,optional"`
	Env       map[string]string `hcl:"env,optional"`
}

// environmentBlock is the sweep-level execution context.
type environmentBlock struct {
	Tracking        string `hcl:"tracking,optional"`
	Devices         []int  `hcl:"devices,optional"`
	DatasetRoot     string `hcl:"dataset_root,optional"`
	DeviceCount     *int   `hcl:"device_count,optional"`
	DeviceVar       string `hcl:"device_var,optional"`
	TrackingVar     string `hcl:"tracking_var,optional"`
	ParallelDevices bool   `hcl:"parallel_devices,optional"`
}

// protocolBlock is a `protocol "<kind>" "<name>"` block; its attributes are
// the template's field values.
type protocolBlock struct {
	Kind string   `hcl:"kind,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// sweepBlock is a `sweep "<name>"` block.
type sweepBlock struct {
	Name     string         `hcl:"name,label"`
	Protocol string         `hcl:"protocol"`
	Mode     string         `hcl:"mode,optional"`
	NameAxes hcl.Expression `hcl:"name_axes,optional"`
	Axes     []*axisBlock   `hcl:"axis,block"`
}

// axisBlock is an `axis "<field>"` block inside a sweep.
type axisBlock struct {
	Name   string         `hcl:"name,label"`
	Values hcl.Expression `hcl:"values"`
}
