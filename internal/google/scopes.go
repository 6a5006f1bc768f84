package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the Google OAuth scopes requested for Gmail.
//
// Inserting a message into a thread with its original internal date and
// labelling the original both need full mailbox access, which only
// https://mail.google.com/ grants.
var DefaultOAuthScopes = []string{
	gmail.MailGoogleComScope,
}
