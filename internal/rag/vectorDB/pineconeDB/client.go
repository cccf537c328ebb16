package pineconeDB

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/customHttpClient"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var logger = logger_i.NewLogger("Pinecone")

type Config struct {
	APIKey string
	// BaseURL overrides the control plane host, empty means api.pinecone.io.
	BaseURL string
	Cloud   string
	Region  string
}

// dataPlane is the part of *pinecone.IndexConnection we use; one connection is bound to one namespace.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteAllVectorsInNamespace(ctx context.Context) error
	Close() error
}

// Client manages indexes over the REST control plane and opens a gRPC data plane connection per call.
type Client struct {
	cfg Config
	pc  *pinecone.Client

	connect func(host string, namespace string) (dataPlane, error)

	hostMu sync.RWMutex
	hosts  map[string]string
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing PINECONE_API_KEY")
	}
	if cfg.Cloud == "" {
		cfg.Cloud = config.PineconeCloud
	}
	if cfg.Region == "" {
		cfg.Region = config.PineconeRegion
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
		Host:   cfg.BaseURL,
		//per call deadlines come from ctx
		RestClient: customHttpClient.NewPooledClient(0),
		SourceTag:  "pdfqa",
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone client: %w", err)
	}

	c := &Client{cfg: cfg, pc: pc, hosts: make(map[string]string)}
	c.connect = func(host string, namespace string) (dataPlane, error) {
		conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return c, nil
}

func (c *Client) Name() string { return "pinecone" }

// -------------------- Control plane --------------------

func (c *Client) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	dim := int32(dimension)
	m := pinecone.IndexMetric(metric)
	deletion := pinecone.DeletionProtectionDisabled
	_, err := c.pc.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:               name,
		Cloud:              pinecone.Cloud(c.cfg.Cloud),
		Region:             c.cfg.Region,
		Dimension:          &dim,
		Metric:             &m,
		DeletionProtection: &deletion,
	})
	return err
}

func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	indexes, err := c.pc.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx.Name)
	}
	return names, nil
}

func (c *Client) DescribeIndex(ctx context.Context, name string) (vectorDB.IndexInfo, error) {
	idx, err := c.describe(ctx, name)
	if err != nil {
		return vectorDB.IndexInfo{}, err
	}
	info := vectorDB.IndexInfo{Name: idx.Name, Metric: string(idx.Metric)}
	if idx.Dimension != nil {
		info.Dimension = int(*idx.Dimension)
	}
	if idx.Status != nil {
		info.Ready = idx.Status.Ready
	}
	return info, nil
}

func (c *Client) describe(ctx context.Context, name string) (*pinecone.Index, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("index name required")
	}
	idx, err := c.pc.DescribeIndex(ctx, name)
	if isStatus(err, http.StatusNotFound) {
		return nil, vectorDB.ErrIndexNotFound
	}
	if err != nil {
		return nil, err
	}
	if idx.Status != nil && idx.Status.Ready && idx.Host != "" {
		c.hostMu.Lock()
		c.hosts[name] = idx.Host
		c.hostMu.Unlock()
	}
	return idx, nil
}

func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	c.hostMu.Lock()
	delete(c.hosts, name)
	c.hostMu.Unlock()

	err := c.pc.DeleteIndex(ctx, name)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// -------------------- Data plane --------------------

func (c *Client) Upsert(ctx context.Context, index string, namespace string, items []vectorDB.Item) error {
	if len(items) == 0 {
		return nil
	}
	vectors := make([]*pinecone.Vector, 0, len(items))
	for _, item := range items {
		md, err := toMetadata(item.Metadata)
		if err != nil {
			return err
		}
		values := item.Values
		vectors = append(vectors, &pinecone.Vector{Id: item.Id, Values: &values, Metadata: md})
	}

	return c.withIndex(ctx, index, namespace, func(conn dataPlane) error {
		_, err := conn.UpsertVectors(ctx, vectors)
		return err
	})
}

func (c *Client) Query(ctx context.Context, index string, namespace string, vec []float32, k int) ([]vectorDB.Match, error) {
	if len(vec) == 0 {
		return nil, errors.New("query vector required")
	}
	var matches []vectorDB.Match
	err := c.withIndex(ctx, index, namespace, func(conn dataPlane) error {
		res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          vec,
			TopK:            uint32(k),
			IncludeMetadata: true,
		})
		if err != nil {
			return err
		}
		matches = make([]vectorDB.Match, 0, len(res.Matches))
		for _, m := range res.Matches {
			if m == nil || m.Vector == nil {
				continue
			}
			matches = append(matches, vectorDB.Match{Id: m.Vector.Id, Score: m.Score, Metadata: fromMetadata(m.Vector.Metadata)})
		}
		return nil
	})
	return matches, err
}

// DeleteNamespace removes every vector of the namespace. Pinecone answers NotFound for a
// namespace that was never written, which is the state we want.
func (c *Client) DeleteNamespace(ctx context.Context, index string, namespace string) error {
	err := c.withIndex(ctx, index, namespace, func(conn dataPlane) error {
		return conn.DeleteAllVectorsInNamespace(ctx)
	})
	if errors.Is(err, vectorDB.ErrIndexNotFound) {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		logger.FromContext(ctx).Debug("namespace already empty", "namespace", namespace)
		return nil
	}
	return err
}

// -------------------- helpers --------------------

func (c *Client) withIndex(ctx context.Context, index string, namespace string, fn func(dataPlane) error) error {
	host, err := c.host(ctx, index)
	if err != nil {
		return err
	}
	conn, err := c.connect(host, namespace)
	if err != nil {
		return fmt.Errorf("pinecone connect %s: %w", host, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.FromContext(ctx).Warn("closing index connection failed", "err", err)
		}
	}()
	return fn(conn)
}

func (c *Client) host(ctx context.Context, index string) (string, error) {
	c.hostMu.RLock()
	host, ok := c.hosts[index]
	c.hostMu.RUnlock()
	if ok {
		return host, nil
	}
	idx, err := c.describe(ctx, index)
	if err != nil {
		return "", err
	}
	if idx.Host == "" {
		return "", fmt.Errorf("index %s has no host yet", index)
	}
	return idx.Host, nil
}

func isStatus(err error, code int) bool {
	var pe *pinecone.PineconeError
	return errors.As(err, &pe) && pe.Code == code
}

func toMetadata(m vectorDB.ChunkMetadata) (*pinecone.Metadata, error) {
	return structpb.NewStruct(map[string]any{
		"content":     m.Content,
		"page":        m.Page,
		"chunk_index": m.ChunkIndex,
		"source":      m.Source,
		"session_id":  m.SessionId,
	})
}

func fromMetadata(md *pinecone.Metadata) vectorDB.ChunkMetadata {
	if md == nil {
		return vectorDB.ChunkMetadata{}
	}
	m := md.AsMap()
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	num := func(key string) int {
		f, _ := m[key].(float64)
		return int(f)
	}
	return vectorDB.ChunkMetadata{
		Content:    str("content"),
		Page:       num("page"),
		ChunkIndex: num("chunk_index"),
		Source:     str("source"),
		SessionId:  str("session_id"),
	}
}
