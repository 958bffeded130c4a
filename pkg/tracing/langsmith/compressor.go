package langsmith

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/DataDog/zstd"

	"github.com/papercomputeco/researcher/pkg/tracing"
)

// runHeader is the "post.<id>" part: the run without inputs and outputs,
// which travel as their own parts.
type runHeader struct {
	ID          string         `json:"id"`
	TraceID     string         `json:"trace_id"`
	ParentRunID string         `json:"parent_run_id,omitempty"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time,omitempty"`
	SessionName string         `json:"session_name,omitempty"`
	DottedOrder string         `json:"dotted_order"`
	Status      string         `json:"status,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	Error       string         `json:"error,omitempty"`
	Tags        []string       `json:"tags"`
}

func newRunHeader(r *tracing.Run) runHeader {
	h := runHeader{
		ID:          r.ID,
		TraceID:     r.TraceID,
		ParentRunID: r.ParentRunID,
		Name:        r.Name,
		RunType:     r.RunType,
		StartTime:   r.StartTime.UTC().Format(time.RFC3339Nano),
		SessionName: r.SessionName,
		DottedOrder: r.DottedOrder,
		Status:      r.Status,
		Extra:       r.Extra,
		Error:       r.Error,
		Tags:        r.Tags,
	}
	if !r.EndTime.IsZero() {
		h.EndTime = r.EndTime.UTC().Format(time.RFC3339Nano)
	}
	if h.Tags == nil {
		h.Tags = []string{}
	}
	return h
}

// compressor formats runs as multipart/form-data and zstd-compresses them
// as they are added. It is not safe for concurrent use.
type compressor struct {
	boundary string
	w        io.WriteCloser
	buf      *bytes.Buffer

	uncompressed int
	runCount     int
}

func newCompressor() *compressor {
	c := &compressor{}
	c.reset()
	return c
}

func (c *compressor) reset() {
	c.buf = &bytes.Buffer{}
	c.boundary = "----ResearcherFormBoundary-" + strconv.FormatUint(rand.Uint64(), 36)
	c.w = zstd.NewWriter(c.buf)
	c.uncompressed = 0
	c.runCount = 0
}

func (c *compressor) emitPart(name string, v any) error {
	j, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.uncompressed += len(j)
	header := fmt.Sprintf("--%s\r\nContent-Disposition: form-data; name=\"%s\"\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n",
		c.boundary, name, len(j))
	if _, err := c.w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := c.w.Write(j); err != nil {
		return err
	}
	_, err = c.w.Write([]byte("\r\n"))
	return err
}

func (c *compressor) addRun(r *tracing.Run) error {
	if err := c.emitPart("post."+r.ID, newRunHeader(r)); err != nil {
		return err
	}
	if r.Inputs != nil {
		if err := c.emitPart("post."+r.ID+".inputs", r.Inputs); err != nil {
			return err
		}
	}
	if r.Outputs != nil {
		if err := c.emitPart("post."+r.ID+".outputs", r.Outputs); err != nil {
			return err
		}
	}
	c.runCount++
	return nil
}

// close terminates the multipart body and returns the compressed batch.
// The compressor is reset for reuse either way.
func (c *compressor) close() (batch, error) {
	if c.runCount == 0 {
		c.discard()
		return batch{}, nil
	}
	if _, err := fmt.Fprintf(c.w, "--%s--\r\n", c.boundary); err != nil {
		c.discard()
		return batch{}, err
	}
	err := c.w.Close()
	b := batch{Data: c.buf.Bytes(), Boundary: c.boundary, Runs: c.runCount}
	c.reset()
	if err != nil {
		return batch{}, err
	}
	return b, nil
}

// discard drops everything added since the last close.
func (c *compressor) discard() {
	_ = c.w.Close()
	c.reset()
}
