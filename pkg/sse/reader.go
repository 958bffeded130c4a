package sse

import (
	"bufio"
	"io"
	"strings"
)

const maxLine = 1024 * 1024

// TeeReader parses events from a stream and copies every raw line to a
// second writer.
type TeeReader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	ev    Event
	data  []string
	dirty bool
}

// NewReader returns a TeeReader that discards the raw bytes.
func NewReader(src io.Reader) *TeeReader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a TeeReader over src. Raw lines, blank separators
// and comments included, are written to dest. A nil dest discards them.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	if dest == nil {
		dest = io.Discard
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return &TeeReader{scanner: scanner, dest: dest}
}

// Next blocks until an event is complete and returns it. A stream that ends
// mid-event still yields that event. Next returns nil, nil at EOF.
func (r *TeeReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if _, err := io.WriteString(r.dest, line+"\n"); err != nil {
			return nil, err
		}
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == "":
			if r.dirty {
				return r.flush(), nil
			}
		case line[0] == ':':
			// comment
		default:
			r.field(line)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.dirty {
		return r.flush(), nil
	}
	return nil, nil
}

// field applies one "name:value" line. A line without a colon is a field
// with an empty value. One space after the colon is dropped.
func (r *TeeReader) field(line string) {
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "data":
		r.data = append(r.data, value)
	case "event":
		r.ev.Type = value
	case "id":
		r.ev.ID = value
	default:
		return
	}
	r.dirty = true
}

func (r *TeeReader) flush() *Event {
	ev := r.ev
	ev.Data = strings.Join(r.data, "\n")
	r.ev, r.data, r.dirty = Event{}, nil, false
	return &ev
}
