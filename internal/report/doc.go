// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package report renders sweep plans, outcomes and ledger history.
package report
