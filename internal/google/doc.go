// Package google provides OAuth2 authentication and token management for the
// Gmail API.
//
// Client credentials come from the installed-app credentials file downloaded
// from the Google Cloud console. Tokens are stored per account in a tokens
// directory (google-<account>.token) and refreshed tokens are written back.
// LoopbackFlow obtains the first token through a redirect to a local listener.
package google
