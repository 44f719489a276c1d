// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package environment

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Prober reports how many compute devices the machine has.
type Prober interface {
	DeviceCount(ctx context.Context) (int, error)
}

// StaticProber always reports the same count.
type StaticProber int

// DeviceCount implements Prober.
func (p StaticProber) DeviceCount(context.Context) (int, error) { return int(p), nil }

// NvidiaSMIProber counts GPUs by asking nvidia-smi for their indices.
type NvidiaSMIProber struct {
	// Path to the nvidia-smi binary; looked up in PATH when empty.
	Path string
}

// DeviceCount implements Prober.
func (p NvidiaSMIProber) DeviceCount(ctx context.Context) (int, error) {
	path := p.Path
	if path == "" {
		path = "nvidia-smi"
	}
	cmd := exec.CommandContext(ctx, path, "--query-gpu=index", "--format=csv,noheader")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return countLines(out), nil
}

func countLines(out []byte) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n
}
