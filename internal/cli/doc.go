// Package cli builds the sweepgrid command tree (run, plan, history), turns
// flags into an app.Config and maps failures onto process exit codes.
package cli
