// Package vectorutils is the vector driver utility package
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/researcher/pkg/vector"
	"github.com/papercomputeco/researcher/pkg/vector/chroma"
	"github.com/papercomputeco/researcher/pkg/vector/inmemory"
	"github.com/papercomputeco/researcher/pkg/vector/qdrant"
	"github.com/papercomputeco/researcher/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "sqlite", "memory", "chroma" or "qdrant".
	ProviderType string

	// TargetURL is the server URL, or the database path for sqlite.
	TargetURL string

	APIKey     string
	Collection string
	Dimensions uint
	Logger     *slog.Logger
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch o.ProviderType {
	case "sqlite", "sqlite-vec", "":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, logger)
	case "memory", "inmemory":
		return inmemory.NewDriver(), nil
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			URL:            o.TargetURL,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
