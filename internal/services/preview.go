package services

const (
	previewLimit      = 50
	previewKeep       = 47
	attachmentPreview = "sent an attachment"
)

// Preview is the notification body for a message. Bodies longer than 50 characters are
// cut to 47 characters plus "..."; a message with only an attachment gets a fixed text.
func Preview(body string) string {
	if body == "" {
		return attachmentPreview
	}
	return truncate(body)
}

// truncate bounds any stored notification body to the preview length.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) > previewLimit {
		return string(runes[:previewKeep]) + "..."
	}
	return s
}
