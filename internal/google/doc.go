// Package google obtains and persists the OAuth2 authorization used to call
// the Gmail API.
//
// The client descriptor (credentials.json) is issued by Google Cloud
// Console. The access and refresh tokens are kept in a token file
// (token.json) in the golang.org/x/oauth2 JSON token format and are
// rewritten every time the token is refreshed or re-obtained.
//
// How a missing or unusable token is replaced is decided by an Authorizer:
// InteractiveAuthorizer runs the browser consent flow, HeadlessAuthorizer
// refuses and reports that a login is required. The choice is made by
// configuration.
package google
