// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package run turns one grid assignment into one fully resolved Trainer run
// and tracks that run's lifecycle.
//
// Build merges assignment values over a protocol template over the kind's
// central defaults, validates every field and refuses to produce a Config
// with anything missing. Name derives a deterministic run name; NameSet
// rejects two runs that would share one. Result follows the
// Pending -> Running -> {Succeeded | Failed} state machine.
package run
