// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package environment resolves the execution context a Trainer process runs
// in: which devices it may see, which tracking mode it uses and where the
// dataset lives.
//
// The context is resolved once, checked against the machine, and then passed
// around as an immutable Binding. Nothing here touches the harness's own
// process environment; Environ builds a fresh variable list for each child.
package environment
