// Package sse reads Server-Sent Events from streaming provider responses.
// A TeeReader can copy the raw stream to a second writer, which the
// anthropic provider uses to keep the tail of a stream for error reports.
//
// Event framing follows
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one event of a stream.
type Event struct {
	// Type is the "event:" field. Empty means "message".
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field.
	ID string
}
