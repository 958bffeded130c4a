// Package qdrant provides a Qdrant vector database driver over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/researcher/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for chunk embeddings.
	DefaultCollectionName = "researcher"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// idPayloadKey holds the original string ID of a point.
	idPayloadKey = "doc_id"
)

// idNamespace derives stable point UUIDs from document IDs.
var idNamespace = uuid.MustParse("6f1c3e0a-5a8e-4c1b-9a57-1e0b6f5d7c21")

// Config holds configuration for the Qdrant driver.
type Config struct {
	// URL is the Qdrant gRPC endpoint, e.g. "localhost:6334" or
	// "https://xyz.cloud.qdrant.io:6334".
	URL string

	APIKey string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions sizes the collection when it has to be created.
	Dimensions uint
}

// Driver implements vector.Driver on a Qdrant collection with cosine
// distance. Qdrant only accepts UUID or integer point IDs, so string IDs are
// mapped to UUIDv5 and kept in the payload.
type Driver struct {
	client     *qc.Client
	collection string
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and creates the collection if needed.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}

	clientCfg, err := parseTarget(c.URL)
	if err != nil {
		return nil, err
	}
	clientCfg.APIKey = c.APIKey

	client, err := qc.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qc.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", collection, err)
		}
	}

	logger.Info("connected to Qdrant",
		"host", clientCfg.Host,
		"port", clientCfg.Port,
		"collection", collection,
		"created", !exists,
	)

	return &Driver{client: client, collection: collection, logger: logger}, nil
}

// parseTarget accepts "host", "host:port" or a URL with scheme.
func parseTarget(target string) (*qc.Config, error) {
	cfg := &qc.Config{Host: "localhost", Port: DefaultPort}
	if target == "" {
		return cfg, nil
	}

	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		hostport = u.Host
		cfg.UseTLS = u.Scheme == "https"
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		cfg.Host = hostport
		return cfg, nil
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port %q: %w", port, err)
	}
	cfg.Host = host
	cfg.Port = p
	return cfg, nil
}

// PointID returns the Qdrant point UUID for a document ID.
func PointID(id string) string {
	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}

func pointIDs(ids []string) []*qc.PointId {
	out := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		out[i] = qc.NewID(PointID(id))
	}
	return out
}

func docID(payload map[string]*qc.Value) string {
	if v, ok := payload[idPayloadKey]; ok {
		return v.GetStringValue()
	}
	return ""
}

// Add upserts documents and waits for the write to be applied.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qc.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qc.PointStruct{
			Id:      qc.NewID(PointID(doc.ID)),
			Vectors: qc.NewVectors(doc.Embedding...),
			Payload: qc.NewValueMap(map[string]any{idPayloadKey: doc.ID}),
		}
	}

	_, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query returns the topK nearest points; Qdrant's cosine score is already a
// similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: d.collection,
		Query:          qc.NewQuery(embedding...),
		Limit:          qc.PtrOf(uint64(topK)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: vector.Document{ID: docID(p.GetPayload())},
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// Get retrieves documents by their IDs, in the order requested.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qc.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	found := make(map[string]vector.Document, len(points))
	for _, p := range points {
		id := docID(p.GetPayload())
		found[id] = vector.Document{
			ID:        id,
			Embedding: p.GetVectors().GetVector().GetData(),
		}
	}

	docs := make([]vector.Document, 0, len(found))
	for _, id := range ids {
		if doc, ok := found[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: d.collection,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant", "count", len(ids))
	return nil
}

func (d *Driver) Count(ctx context.Context) (int, error) {
	n, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: d.collection,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)
