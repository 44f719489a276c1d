// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package grid expands named hyperparameter axes into an ordered, finite
// sequence of assignments.
//
// # Expansion modes
//
//   - Zip: every axis advances in lockstep. The i-th assignment combines the
//     i-th value of each axis, so all axes must have the same length. This is
//     how a seed is paired with its own device or regularization weight.
//   - Product: the full Cartesian product. The last declared axis varies
//     fastest, like an odometer.
//
// A Grid is validated once, at construction. After that, Assignments can be
// ranged over any number of times and always yields the same sequence with
// the same indices. Nothing is materialized until it is iterated.
package grid
