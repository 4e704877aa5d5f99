// Package unsubscribe finds List-Unsubscribe mailto targets in a mailbox
// and sends one unsubscribe email per target that has not been handled
// before.
//
// The Runner drives the whole pass: the Scanner lists candidate messages
// page by page, ExtractMailto and ParseMailto turn a message's headers into
// an Intent, the Store filters out targets registered by earlier runs and
// the Sender composes and submits the request.
package unsubscribe
