package memoryDB

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
)

type index struct {
	dimension  int
	metric     string
	namespaces map[string]map[string]vectorDB.Item
}

// Store is a process local IndexProvider for development and tests.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*index
}

func New() *Store {
	return &Store{indexes: make(map[string]*index)}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; ok {
		return fmt.Errorf("index %s already exists", name)
	}
	s.indexes[name] = &index{dimension: dimension, metric: metric, namespaces: make(map[string]map[string]vectorDB.Item)}
	return nil
}

func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) DescribeIndex(ctx context.Context, name string) (vectorDB.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return vectorDB.IndexInfo{}, vectorDB.ErrIndexNotFound
	}
	return vectorDB.IndexInfo{Name: name, Dimension: idx.dimension, Metric: idx.metric, Ready: true}, nil
}

func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, name)
	return nil
}

func (s *Store) Upsert(ctx context.Context, indexName string, namespace string, items []vectorDB.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return vectorDB.ErrIndexNotFound
	}
	ns, ok := idx.namespaces[namespace]
	if !ok {
		ns = make(map[string]vectorDB.Item)
		idx.namespaces[namespace] = ns
	}
	for _, item := range items {
		if len(item.Values) != idx.dimension {
			return fmt.Errorf("vector %s has dimension %d, index expects %d", item.Id, len(item.Values), idx.dimension)
		}
		values := make([]float32, len(item.Values))
		copy(values, item.Values)
		item.Values = values
		ns[item.Id] = item
	}
	return nil
}

func (s *Store) Query(ctx context.Context, indexName string, namespace string, vector []float32, k int) ([]vectorDB.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[indexName]
	if !ok {
		return nil, vectorDB.ErrIndexNotFound
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d", len(vector), idx.dimension)
	}

	matches := make([]vectorDB.Match, 0, len(idx.namespaces[namespace]))
	for id, item := range idx.namespaces[namespace] {
		matches = append(matches, vectorDB.Match{Id: id, Score: score(idx.metric, vector, item.Values), Metadata: item.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Id < matches[j].Id
		}
		return matches[i].Score > matches[j].Score
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) DeleteNamespace(ctx context.Context, indexName string, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[indexName]; ok {
		delete(idx.namespaces, namespace)
	}
	return nil
}

// Count returns the number of vectors in a namespace.
func (s *Store) Count(indexName string, namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.indexes[indexName]; ok {
		return len(idx.namespaces[namespace])
	}
	return 0
}

// score is higher for closer vectors under every metric.
func score(metric string, a []float32, b []float32) float32 {
	var dot, na, nb, dist float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		dist += (x - y) * (x - y)
	}
	switch metric {
	case "dotproduct":
		return float32(dot)
	case "euclidean":
		return float32(-math.Sqrt(dist))
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
	}
}
