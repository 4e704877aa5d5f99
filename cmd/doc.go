// Package cmd implements the command-line interface for listunsub.
//
// This package provides the following commands:
//   - run: Send unsubscribe emails for List-Unsubscribe mailto targets
//   - login: Run the Google consent flow and store the token
//   - history: List the targets unsubscribed so far
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
