// Package tracingutils builds a tracer from configuration.
package tracingutils

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/researcher/pkg/tracing"
	"github.com/papercomputeco/researcher/pkg/tracing/file"
	"github.com/papercomputeco/researcher/pkg/tracing/kafka"
	"github.com/papercomputeco/researcher/pkg/tracing/langsmith"
	"github.com/papercomputeco/researcher/pkg/tracing/nop"
)

type NewTracerOpts struct {
	Enabled bool
	Project string

	// ExporterType is one of "file", "langsmith", "kafka", "none".
	ExporterType string

	// Dir is the .researcher directory the file exporter writes under.
	Dir string

	Endpoint string
	APIKey   string
	Brokers  string
	Topic    string

	Logger *slog.Logger
}

// NewTracer returns nil, which traces nothing, when tracing is disabled.
func NewTracer(o *NewTracerOpts) (*tracing.Tracer, error) {
	if !o.Enabled {
		return nil, nil
	}

	exporter, err := NewExporter(o)
	if err != nil {
		return nil, err
	}

	return tracing.New(tracing.Config{
		Project:  o.Project,
		Exporter: exporter,
		Logger:   o.Logger,
	})
}

func NewExporter(o *NewTracerOpts) (tracing.Exporter, error) {
	switch o.ExporterType {
	case "file", "":
		return file.NewExporter(file.Path(o.Dir, o.Project))
	case "langsmith":
		return langsmith.NewExporter(langsmith.Config{
			Endpoint: o.Endpoint,
			APIKey:   o.APIKey,
		}, o.Logger)
	case "kafka":
		return kafka.NewExporter(kafka.Config{
			Brokers: splitList(o.Brokers),
			Topic:   o.Topic,
		})
	case "none", "nop":
		return nop.NewExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", o.ExporterType)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
