// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package protocol defines the training protocols a sweep can launch.
//
// A protocol kind is a tagged variant with its own field table: which
// Trainer flags exist, in what order they are passed, what values each
// accepts, which are required and which have a central default. The two
// kinds are the VAE-warmup protocol and the decoupling protocol. Because
// each kind has its own table instead of a shared flat option list, a field
// added to one protocol cannot leak into the other.
//
// A Template is one named instance of a kind with some fields fixed (dataset,
// domain split, architecture, phase epochs). Templates are immutable.
package protocol
