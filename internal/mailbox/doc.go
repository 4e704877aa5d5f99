// Package mailbox defines the narrow provider surface the unsubscribe run
// depends on. A Provider pages through search results, fetches message
// headers and submits raw RFC 5322 messages.
//
// The gmail package provides the production implementation. Tests use
// in-memory implementations of the same interface.
package mailbox
