package vector

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use Index.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("vector: failed to create qdrant client: %w", err)
	}

	ix := &QdrantIndex{client: client, cfg: cfg}
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return ix, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (ix *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.cfg.Collection)
	if err != nil {
		return fmt.Errorf("vector: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vector: failed to create collection %q: %w", ix.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of embedded points. Points with a nil
// vector are rejected; embedding happens upstream in the ingestion pipeline.
func (ix *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	qps := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Vector) == 0 {
			return fmt.Errorf("vector: point %s has no embedding", p.ChildID)
		}
		qps = append(qps, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ChildID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"text":      p.Text,
				"parent_id": p.ParentID,
			}),
		})
	}

	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.cfg.Collection,
		Points:         qps,
	})
	if err != nil {
		return fmt.Errorf("vector: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (ix *QdrantIndex) Search(ctx context.Context, queryVector []float32, k int) ([]Hit, error) {
	limit := uint64(k)
	results, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.cfg.Collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ChildID: r.Id.GetUuid(),
			Score:   float64(r.Score),
		})
	}

	return hits, nil
}

// Delete removes points from the collection by their child IDs.
func (ix *QdrantIndex) Delete(ctx context.Context, childIDs []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(childIDs))
	for _, id := range childIDs {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("vector: delete failed: %w", err)
	}

	return nil
}

// Ping calls the Qdrant HealthCheck RPC. Used by readiness probes.
func (ix *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := ix.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("vector: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (ix *QdrantIndex) Close() error {
	return ix.client.Close()
}
