// Package logging provides structured logging utilities for listunsub.
//
// Logging uses the standard library's slog package. New builds the process
// logger: a colored console handler from tint for interactive use, or a
// JSON handler when the output is collected by something else.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "unsubscribe.run")
//	logger.Info("sent unsubscribe request",
//	    logging.Recipient(address),
//	    logging.Status(logging.StatusSuccess))
//
// Recipient addresses are hashed before they reach the log so the log can be
// shared without exposing which lists the account was subscribed to. The
// user-facing confirmation lines printed by the run command are not logs
// and show the address in clear.
package logging
