// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package launcher starts the external Trainer for one run and waits for it.
package launcher
