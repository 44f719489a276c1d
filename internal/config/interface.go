// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import "context"

// Loader is the interface for a format-specific sweep file loader.
type Loader interface {
	// Load reads the given files and translates them into the
	// format-agnostic model.
	Load(ctx context.Context, files ...string) (*Model, error)
	// Extensions lists the file extensions the loader understands,
	// including the leading dot.
	Extensions() []string
}
