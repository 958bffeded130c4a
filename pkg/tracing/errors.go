package tracing

import "errors"

// ErrNilRun indicates a nil run was passed to an exporter.
var ErrNilRun = errors.New("nil run")
