// Package integration_tests drives whole sweeps through the command line:
// sweep files on disk, the real loaders, planner, launcher and ledger, with
// the Trainer replaced by a recording stub or a shell script.
package integration_tests
