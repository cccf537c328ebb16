package vectorDB

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrIndexNotFound = errors.New("vector index not found")

// vectorIdSpace keeps ids of this service apart from anything else written to the index.
var vectorIdSpace = uuid.MustParse("6f1c2b52-3d4e-5a8b-9c0d-7e6f5a4b3c2d")

type IndexInfo struct {
	Name      string
	Dimension int
	Metric    string
	Ready     bool
}

// ChunkMetadata travels with every vector and comes back on query.
type ChunkMetadata struct {
	Content    string `json:"content"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
	Source     string `json:"source"`
	SessionId  string `json:"session_id"`
}

type Item struct {
	Id       string
	Values   []float32
	Metadata ChunkMetadata
}

type Match struct {
	Id       string
	Score    float32
	Metadata ChunkMetadata
}

// IndexProvider is a shared vector index partitioned by namespace.
// Query and DeleteNamespace never touch vectors outside the given namespace.
// DeleteNamespace on an empty or unknown namespace succeeds.
type IndexProvider interface {
	Name() string

	CreateIndex(ctx context.Context, name string, dimension int, metric string) error
	ListIndexes(ctx context.Context) ([]string, error)
	// DescribeIndex returns ErrIndexNotFound when the index does not exist.
	DescribeIndex(ctx context.Context, name string) (IndexInfo, error)
	DeleteIndex(ctx context.Context, name string) error

	Upsert(ctx context.Context, index string, namespace string, items []Item) error
	Query(ctx context.Context, index string, namespace string, vector []float32, k int) ([]Match, error)
	DeleteNamespace(ctx context.Context, index string, namespace string) error
}

// VectorId is deterministic per namespace and chunk so a re-upload overwrites instead of duplicating.
func VectorId(namespace string, chunkIndex int) string {
	return uuid.NewSHA1(vectorIdSpace, []byte(fmt.Sprintf("%s/%d", namespace, chunkIndex))).String()
}
