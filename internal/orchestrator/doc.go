// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package orchestrator drives a sweep: it plans every run up front and then
// dispatches them.
//
// Planning and dispatch are separate steps. Plan builds every run config and
// binds it to its devices, so configuration and environment errors surface
// before a single Trainer starts. Run then dispatches in the grid's emission
// order. A failing run never stops the sweep; cancellation does, after the
// run in flight has been stopped and recorded.
//
// By default one run executes at a time. WithParallelDevices starts one
// worker per disjoint device set, each working through its own runs in
// emission order, while results keep the global emission order.
package orchestrator
