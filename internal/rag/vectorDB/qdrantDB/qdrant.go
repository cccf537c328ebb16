package qdrantDB

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Qdrant has no namespaces: an index is a collection and the namespace is a keyword
// indexed payload field that every query and delete filters on.
const namespaceField = "session_id"

var logger = logger_i.NewLogger("Qdrant")

type ClientHolder struct {
	QObj *qdrant.Client
}

func New(cfg config.VectorConfig) (*ClientHolder, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.QdrantHost,
		Port:     cfg.QdrantPort,
		APIKey:   cfg.QdrantAPIKey,
		UseTLS:   cfg.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, err
	}
	logger.Info("Qdrant client created", "host", cfg.QdrantHost, "port", cfg.QdrantPort)
	return &ClientHolder{QObj: client}, nil
}

func (db *ClientHolder) Name() string { return "qdrant" }

func (db *ClientHolder) Close() error {
	logger.Info("Shutting down Qdrant")
	return db.QObj.Close()
}

func (db *ClientHolder) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	if name == "" {
		return errors.New("empty collection name")
	}
	distance, err := toDistance(metric)
	if err != nil {
		return err
	}
	err = db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return err
	}
	_, err = db.QObj.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      namespaceField,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func (db *ClientHolder) ListIndexes(ctx context.Context) ([]string, error) {
	return db.QObj.ListCollections(ctx)
}

func (db *ClientHolder) DescribeIndex(ctx context.Context, name string) (vectorDB.IndexInfo, error) {
	exists, err := db.QObj.CollectionExists(ctx, name)
	if err != nil {
		return vectorDB.IndexInfo{}, err
	}
	if !exists {
		return vectorDB.IndexInfo{}, vectorDB.ErrIndexNotFound
	}
	info, err := db.QObj.GetCollectionInfo(ctx, name)
	if isNotFound(err) {
		return vectorDB.IndexInfo{}, vectorDB.ErrIndexNotFound
	}
	if err != nil {
		return vectorDB.IndexInfo{}, err
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return vectorDB.IndexInfo{
		Name:      name,
		Dimension: int(params.GetSize()),
		Metric:    fromDistance(params.GetDistance()),
		Ready:     info.GetStatus() == qdrant.CollectionStatus_Green,
	}, nil
}

func (db *ClientHolder) DeleteIndex(ctx context.Context, name string) error {
	err := db.QObj.DeleteCollection(ctx, name)
	if isNotFound(err) {
		return nil
	}
	return err
}

func (db *ClientHolder) Upsert(ctx context.Context, index string, namespace string, items []vectorDB.Item) error {
	if len(items) == 0 {
		return nil
	}
	qdrantPoints := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		//the partition key always follows the namespace argument, never the caller's metadata
		item.Metadata.SessionId = namespace
		payload, err := qdrant.TryValueMap(toPayload(item.Metadata))
		if err != nil {
			return err
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(item.Id),
			Vectors: qdrant.NewVectors(item.Values...),
			Payload: payload,
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) Query(ctx context.Context, index string, namespace string, vec []float32, k int) ([]vectorDB.Match, error) {
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: index,
		Query:          qdrant.NewQuery(vec...),
		Filter:         namespaceFilter(namespace),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.FromContext(ctx).Error("Error querying Qdrant", "error", err)
		return nil, err
	}

	matches := make([]vectorDB.Match, 0, len(result))
	for _, hit := range result {
		matches = append(matches, vectorDB.Match{
			Id:       hit.GetId().GetUuid(),
			Score:    hit.GetScore(),
			Metadata: fromPayload(hit.GetPayload()),
		})
	}
	return matches, nil
}

func (db *ClientHolder) DeleteNamespace(ctx context.Context, index string, namespace string) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(namespaceFilter(namespace)),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(namespaceField, namespace)},
	}
}

func toPayload(m vectorDB.ChunkMetadata) map[string]any {
	return map[string]any{
		"content":      m.Content,
		"page":         m.Page,
		"chunk_index":  m.ChunkIndex,
		"source":       m.Source,
		namespaceField: m.SessionId,
	}
}

func fromPayload(p map[string]*qdrant.Value) vectorDB.ChunkMetadata {
	return vectorDB.ChunkMetadata{
		Content:    p["content"].GetStringValue(),
		Page:       int(p["page"].GetIntegerValue()),
		ChunkIndex: int(p["chunk_index"].GetIntegerValue()),
		Source:     p["source"].GetStringValue(),
		SessionId:  p[namespaceField].GetStringValue(),
	}
}

func toDistance(metric string) (qdrant.Distance, error) {
	switch metric {
	case "", "cosine":
		return qdrant.Distance_Cosine, nil
	case "dotproduct":
		return qdrant.Distance_Dot, nil
	case "euclidean":
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unsupported metric %q", metric)
	}
}

func fromDistance(d qdrant.Distance) string {
	switch d {
	case qdrant.Distance_Cosine:
		return "cosine"
	case qdrant.Distance_Dot:
		return "dotproduct"
	case qdrant.Distance_Euclid:
		return "euclidean"
	default:
		return d.String()
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	return ok && s.Code() == codes.NotFound
}
