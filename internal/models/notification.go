package models

// NotificationKind names the template a notification intent renders with.
type NotificationKind string

const (
	NotificationNewRequestLibrary   NotificationKind = "NEW_REQUEST_LIBRARY"
	NotificationNewRequestBursar    NotificationKind = "NEW_REQUEST_BURSAR"
	NotificationLibraryResolved     NotificationKind = "LIBRARY_RESOLVED"
	NotificationSystemNotice        NotificationKind = "SYSTEM_NOTICE"
	NotificationAcademicReady       NotificationKind = "ACADEMIC_REVIEW_READY"
	NotificationReadyForProcessing  NotificationKind = "READY_FOR_PROCESSING"
	NotificationCorrectionsRequired NotificationKind = "CORRECTIONS_REQUIRED"
)

// NotificationIntent is a data-only description of a message to send.
type NotificationIntent struct {
	To        string                 `json:"to"`
	Kind      NotificationKind       `json:"kind"`
	RequestID string                 `json:"requestId"`
	Context   map[string]interface{} `json:"context,omitempty"`
}
