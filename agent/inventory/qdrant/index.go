package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/inventory"
)

const (
	payloadTenantID = "tenant_id"
	payloadJSONData = "json_data"
	payloadDocument = "document"
)

type Config struct {
	// URL is the gRPC address, e.g. "https://xyz.qdrant.io:6334".
	URL            string `envconfig:"URL" default:"http://localhost:6334"`
	APIKey         string `envconfig:"API_KEY"`
	Collection     string `envconfig:"COLLECTION" default:"inventory"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
}

// pointsAPI is the subset of *qdrant.Client used here.
type pointsAPI interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Index stores one point per inventory item, partitioned by tenant through
// a payload filter.
type Index struct {
	points     pointsAPI
	embedder   Embedder
	collection string

	ensureMu sync.Mutex
	ensured  bool
}

var _ inventory.Index = (*Index)(nil)

func Dial(cfg Config) (*qdrant.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return client, nil
}

func New(client *qdrant.Client, embedder Embedder, collection string) *Index {
	return newIndex(client, embedder, collection)
}

func newIndex(points pointsAPI, embedder Embedder, collection string) *Index {
	if collection == "" {
		collection = "inventory"
	}
	return &Index{points: points, embedder: embedder, collection: collection}
}

// ensureCollection creates the collection on first use, sized to the
// embedder's output.
func (x *Index) ensureCollection(ctx context.Context, dim int) error {
	x.ensureMu.Lock()
	defer x.ensureMu.Unlock()
	if x.ensured {
		return nil
	}

	exists, err := x.points.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", x.collection, err)
	}
	if !exists {
		err := x.points.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", x.collection, err)
		}
		log.Info().Str("collection", x.collection).Int("dim", dim).Msg("qdrant collection created")
	}
	x.ensured = true
	return nil
}

func tenantFilter(tenantID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadTenantID, tenantID)},
	}
}

// Replace deletes the tenant's points, then inserts one point per item.
func (x *Index) Replace(ctx context.Context, tenantID string, items []contractx.InventoryItem) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = inventory.DocumentText(item)
	}

	var vectors [][]float32
	if len(items) > 0 {
		var err error
		vectors, err = x.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if err := x.ensureCollection(ctx, len(vectors[0])); err != nil {
			return err
		}
	} else {
		exists, err := x.points.CollectionExists(ctx, x.collection)
		if err != nil {
			return fmt.Errorf("check collection %s: %w", x.collection, err)
		}
		if !exists {
			return nil
		}
	}

	_, err := x.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(tenantFilter(tenantID)),
	})
	if err != nil {
		return fmt.Errorf("delete points for %s: %w", tenantID, err)
	}
	if len(items) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %d: %w", i, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadTenantID: tenantID,
				payloadJSONData: string(raw),
				payloadDocument: texts[i],
			}),
		})
	}

	_, err = x.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points for %s: %w", tenantID, err)
	}
	return nil
}

// Query returns up to k items of the tenant nearest to query.
func (x *Index) Query(ctx context.Context, tenantID, query string, k int) ([]contractx.InventoryItem, error) {
	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embeddings: empty result")
	}

	limit := uint64(k)
	points, err := x.points.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		Filter:         tenantFilter(tenantID),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	out := make([]contractx.InventoryItem, 0, len(points))
	for _, p := range points {
		v, ok := p.GetPayload()[payloadJSONData]
		if !ok {
			continue
		}
		var item contractx.InventoryItem
		if err := json.Unmarshal([]byte(v.GetStringValue()), &item); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("skipping undecodable point payload")
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
