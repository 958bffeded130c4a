package tracing

import (
	"maps"
	"strings"
	"sync"
	"time"
)

// Run types, matching the langsmith run data format.
const (
	RunTypeChain     = "chain"
	RunTypeLLM       = "llm"
	RunTypeRetriever = "retriever"
	RunTypeEmbedding = "embedding"
	RunTypePrompt    = "prompt"
	RunTypeTool      = "tool"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run is one traced operation. A Run is mutable until End is called; after
// that it belongs to the export queue and setters are ignored.
type Run struct {
	ID          string         `json:"id"`
	TraceID     string         `json:"trace_id"`
	ParentRunID string         `json:"parent_run_id,omitempty"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time,omitzero"`
	SessionName string         `json:"session_name,omitempty"`
	DottedOrder string         `json:"dotted_order"`
	Status      string         `json:"status,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	Error       string         `json:"error,omitempty"`
	Tags        []string       `json:"tags"`

	mu     sync.Mutex
	ended  bool
	tracer *Tracer
}

// SetOutput records an output value.
func (r *Run) SetOutput(key string, value any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	if r.Outputs == nil {
		r.Outputs = map[string]any{}
	}
	r.Outputs[key] = value
}

// SetMetadata records a value under extra.metadata.
func (r *Run) SetMetadata(key string, value any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	meta, _ := r.Extra["metadata"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
		r.Extra["metadata"] = meta
	}
	meta[key] = value
}

// AddTags appends tags to the run.
func (r *Run) AddTags(tags ...string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ended {
		r.Tags = append(r.Tags, tags...)
	}
}

// End stamps the end time and status, merges outputs and hands the run to
// the tracer's export queue. Only the first call has any effect.
func (r *Run) End(outputs map[string]any, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	r.EndTime = r.tracer.now()
	if len(outputs) > 0 {
		if r.Outputs == nil {
			r.Outputs = make(map[string]any, len(outputs))
		}
		maps.Copy(r.Outputs, outputs)
	}
	r.Status = StatusSuccess
	if err != nil {
		r.Status = StatusError
		r.Error = err.Error()
	}
	r.mu.Unlock()

	r.tracer.enqueue(r)
}

// Ended reports whether End has been called.
func (r *Run) Ended() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// Duration is the time between start and end, or zero before End.
func (r *Run) Duration() time.Duration {
	if r == nil || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// dottedOrder builds one segment of a dotted_order: the UTC start stamp
// with microsecond precision followed by the run id.
func dottedOrder(start time.Time, id string) string {
	stamp := start.UTC().Format("20060102T150405.000000Z")
	return strings.Replace(stamp, ".", "", 1) + id
}
