// Package config defines the format-agnostic model of a sweep file, along
// with the Loader interface that format-specific packages implement.
//
// The Model is the single source of truth for the app package: it is turned
// into parameter grids, protocol templates, a launcher and an environment
// policy. Concrete loaders for HCL and YAML live in separate packages.
package config
