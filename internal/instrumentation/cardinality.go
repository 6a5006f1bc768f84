package instrumentation

import "strings"

// MimeFamily reduces a MIME type to its top-level type so that metric
// labels stay bounded no matter what senders put in Content-Type.
//
// Example:
//
//	MimeFamily("application/pdf")      // "application"
//	MimeFamily("IMAGE/PNG")            // "image"
//	MimeFamily("x-custom/whatever")    // "other"
//	MimeFamily("")                     // "unknown"
func MimeFamily(mimeType string) string {
	if mimeType == "" {
		return "unknown"
	}
	family, _, _ := strings.Cut(strings.ToLower(mimeType), "/")
	switch family {
	case "application", "audio", "font", "image", "message", "model", "text", "video":
		return family
	}
	return "other"
}

// Gmail API operations used as metric and span labels.
const (
	OperationListMessages = "messages.list"
	OperationGetMessage   = "messages.get"
	OperationGetRaw       = "messages.get_raw"
	OperationInsert       = "messages.insert"
	OperationModify       = "messages.modify"
	OperationListLabels   = "labels.list"
	OperationCreateLabel  = "labels.create"
	OperationGetProfile   = "users.getProfile"
)
