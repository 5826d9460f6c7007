package core

// EventLogger receives ranking events such as dropped items and failed
// sources. Core depends on this seam instead of the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
