package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// QdrantStore keeps chunks in a Qdrant server, one collection per agent.
// Point IDs are UUIDv5 hashes of the upsert key, so re-indexing the same
// key overwrites in place and the original key rides along in the
// payload.
type QdrantStore struct {
	client    *qdrant.Client
	dimension int

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantStore connects to a Qdrant server over gRPC.
func NewQdrantStore(cfg *config.VectorConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantStore{
		client:    client,
		dimension: cfg.Dimension,
		ensured:   make(map[string]bool),
	}, nil
}

// ensureCollection creates the collection on first use.
func (s *QdrantStore) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ensured[collection] {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}
	}
	s.ensured[collection] = true
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection, key string, vec []float32, content string, metadata map[string]any) error {
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	payload := make(map[string]*qdrant.Value, len(metadata)+2)
	for k, v := range metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("convert metadata %s: %w", k, err)
		}
		payload[k] = val
	}
	keyVal, err := qdrant.NewValue(key)
	if err != nil {
		return fmt.Errorf("convert key: %w", err)
	}
	payload["key"] = keyVal
	contentVal, err := qdrant.NewValue(content)
	if err != nil {
		return fmt.Errorf("convert content: %w", err)
	}
	payload["content"] = contentVal

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(key)),
		Vectors: qdrant.NewVectors(vec...),
		Payload: payload,
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return fmt.Errorf("upsert point %s: %w", key, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vec []float32, params SearchParams) ([]Result, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Limit:          uint64(params.TopK),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if params.EfSearch > 0 {
		ef := uint64(params.EfSearch)
		req.Params = &qdrant.SearchParams{HnswEf: &ef}
	}
	if len(params.Filter) > 0 {
		req.Filter = buildFilter(params.Filter)
	}

	resp, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return convertScoredPoints(resp.Result), nil
}

func (s *QdrantStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{
						{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID(key)}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", key, err)
	}
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	s.mu.Lock()
	delete(s.ensured, collection)
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID derives a stable UUID from the upsert key; Qdrant only accepts
// numeric or UUID point IDs.
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// buildFilter turns a metadata map into must-match keyword conditions.
func buildFilter(filter map[string]any) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprint(value)},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func convertScoredPoints(points []*qdrant.ScoredPoint) []Result {
	results := make([]Result, 0, len(points))
	for _, point := range points {
		metadata := make(map[string]any, len(point.Payload))
		var key, content string

		for k, value := range point.Payload {
			var converted any
			switch v := value.Kind.(type) {
			case *qdrant.Value_StringValue:
				converted = v.StringValue
			case *qdrant.Value_IntegerValue:
				converted = v.IntegerValue
			case *qdrant.Value_DoubleValue:
				converted = v.DoubleValue
			case *qdrant.Value_BoolValue:
				converted = v.BoolValue
			default:
				converted = value.String()
			}

			switch k {
			case "key":
				key, _ = converted.(string)
			case "content":
				content, _ = converted.(string)
			default:
				metadata[k] = converted
			}
		}

		if key == "" {
			if point.Id != nil {
				if u, ok := point.Id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
					key = u.Uuid
				}
			}
		}

		results = append(results, Result{
			ID:       key,
			Score:    point.Score,
			Content:  content,
			Metadata: metadata,
		})
	}
	return results
}
