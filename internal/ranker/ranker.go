// Package ranker orders context candidates by relevance to a query using
// remote text embeddings from the Yandex Foundation Models API over gRPC.
// Candidate embeddings are cached: persona corpora are growth-only, so a
// fragment's embedding never goes stale.
package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	fmv1 "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/foundation_models/v1/embedding"
)

const (
	embeddingAPIURL = "llm.api.cloud.yandex.net:443"

	// embedConcurrency bounds parallel embedding calls for uncached candidates.
	embedConcurrency = 4
)

// Client ranks candidate texts against a query. It implements the
// selector.Ranker contract.
type Client struct {
	apiKey   string
	folderID string
	logger   *slog.Logger
	conn     *grpc.ClientConn

	mu    sync.Mutex
	cache map[string][]float64 // candidate text -> document embedding
}

// NewClient dials the embeddings endpoint. Pass target "" for the production
// endpoint; tests pass their own target and dial options.
func NewClient(ctx context.Context, logger *slog.Logger, apiKey, folderID, target string, opts ...grpc.DialOption) (*Client, error) {
	if target == "" {
		target = embeddingAPIURL
	}
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	}

	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc connection: %w", err)
	}

	return &Client{
		apiKey:   apiKey,
		folderID: folderID,
		logger:   logger.With("component", "ranker_client"),
		conn:     conn,
		cache:    make(map[string][]float64),
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// queryModelURI and docModelURI select the asymmetric search models: queries
// and documents are embedded into the same space by different model heads.
func (c *Client) queryModelURI() string {
	return fmt.Sprintf("emb://%s/text-search-query/latest", c.folderID)
}

func (c *Client) docModelURI() string {
	return fmt.Sprintf("emb://%s/text-search-doc/latest", c.folderID)
}

// Rank embeds the query and all candidates and returns up to topK candidates
// ordered by cosine similarity, most similar first. Ordering is deterministic
// for a fixed candidate set: similarity ties keep input order.
func (c *Client) Rank(ctx context.Context, query string, candidates []string, topK int) ([]string, error) {
	if len(candidates) == 0 || topK <= 0 {
		return nil, nil
	}

	start := time.Now()

	queryVec, err := c.embed(ctx, c.queryModelURI(), query)
	if err != nil {
		recordRank(time.Since(start).Seconds(), false)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vecs, err := c.embedCandidates(ctx, candidates)
	if err != nil {
		recordRank(time.Since(start).Seconds(), false)
		return nil, err
	}

	type scored struct {
		index int
		score float64
	}
	results := make([]scored, len(candidates))
	for i := range candidates {
		results[i] = scored{index: i, score: cosineSimilarity(queryVec, vecs[i])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if topK > len(results) {
		topK = len(results)
	}
	ranked := make([]string, topK)
	for i := 0; i < topK; i++ {
		ranked[i] = candidates[results[i].index]
	}

	recordRank(time.Since(start).Seconds(), true)
	c.logger.Debug("ranked candidates",
		"candidates", len(candidates),
		"returned", len(ranked),
		"duration", time.Since(start),
	)
	return ranked, nil
}

// embedCandidates resolves document embeddings, serving cached vectors and
// fetching the rest with bounded concurrency.
func (c *Client) embedCandidates(ctx context.Context, candidates []string) ([][]float64, error) {
	vecs := make([][]float64, len(candidates))

	var missing []int
	c.mu.Lock()
	for i, text := range candidates {
		if vec, ok := c.cache[text]; ok {
			vecs[i] = vec
		} else {
			missing = append(missing, i)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return vecs, nil
	}
	recordCacheMisses(len(missing), len(candidates)-len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, i := range missing {
		g.Go(func() error {
			vec, err := c.embed(gctx, c.docModelURI(), candidates[i])
			if err != nil {
				return fmt.Errorf("failed to embed candidate: %w", err)
			}
			vecs[i] = vec
			c.mu.Lock()
			c.cache[candidates[i]] = vec
			c.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (c *Client) embed(ctx context.Context, modelURI, text string) ([]float64, error) {
	md := metadata.New(map[string]string{
		"authorization": "Api-Key " + c.apiKey,
		"x-folder-id":   c.folderID,
	})
	ctx = metadata.NewOutgoingContext(ctx, md)

	client := fmv1.NewEmbeddingsServiceClient(c.conn)
	resp, err := client.TextEmbedding(ctx, &fmv1.TextEmbeddingRequest{
		ModelUri: modelURI,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}
	return resp.GetEmbedding(), nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
