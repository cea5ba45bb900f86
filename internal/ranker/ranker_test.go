package ranker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	fmv1 "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/foundation_models/v1/embedding"
)

type mockEmbeddingsServer struct {
	fmv1.UnimplementedEmbeddingsServiceServer

	mu      sync.Mutex
	vectors map[string][]float64
	calls   int
	err     error
}

func (m *mockEmbeddingsServer) TextEmbedding(_ context.Context, req *fmv1.TextEmbeddingRequest) (*fmv1.TextEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	vec, ok := m.vectors[req.GetText()]
	if !ok {
		vec = []float64{0, 0, 1}
	}
	return &fmv1.TextEmbeddingResponse{Embedding: vec}, nil
}

func (m *mockEmbeddingsServer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestClient(t *testing.T, mock *mockEmbeddingsServer) *Client {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	fmv1.RegisterEmbeddingsServiceServer(s, mock)

	go func() {
		if err := s.Serve(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()
	t.Cleanup(s.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.Dial()
	}

	client, err := NewClient(
		context.Background(),
		logger,
		"test-api-key",
		"test-folder-id",
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_Rank_OrdersBySimilarity(t *testing.T) {
	mock := &mockEmbeddingsServer{
		vectors: map[string][]float64{
			"what do cats eat": {1, 0, 0},
			"cats eat fish":    {0.9, 0.1, 0},
			"dogs chase balls": {0, 1, 0},
			"rainy weather":    {0, 0.2, 1},
		},
	}
	client := newTestClient(t, mock)

	ranked, err := client.Rank(context.Background(), "what do cats eat",
		[]string{"rainy weather", "cats eat fish", "dogs chase balls"}, 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"cats eat fish", "dogs chase balls", "rainy weather"}, ranked)
}

func TestClient_Rank_TopKLimitsResults(t *testing.T) {
	mock := &mockEmbeddingsServer{
		vectors: map[string][]float64{
			"query": {1, 0, 0},
			"close": {1, 0, 0},
			"far":   {0, 1, 0},
		},
	}
	client := newTestClient(t, mock)

	ranked, err := client.Rank(context.Background(), "query", []string{"far", "close"}, 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"close"}, ranked)
}

func TestClient_Rank_CachesCandidateEmbeddings(t *testing.T) {
	mock := &mockEmbeddingsServer{vectors: map[string][]float64{}}
	client := newTestClient(t, mock)

	candidates := []string{"one", "two"}
	_, err := client.Rank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)
	firstCalls := mock.callCount() // 1 query + 2 candidates

	_, err = client.Rank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)

	// Second call re-embeds only the query.
	assert.Equal(t, firstCalls+1, mock.callCount())
}

func TestClient_Rank_EmptyCandidates(t *testing.T) {
	mock := &mockEmbeddingsServer{}
	client := newTestClient(t, mock)

	ranked, err := client.Rank(context.Background(), "q", nil, 5)

	require.NoError(t, err)
	assert.Empty(t, ranked)
	assert.Zero(t, mock.callCount())
}

func TestClient_Rank_BackendErrorPropagates(t *testing.T) {
	mock := &mockEmbeddingsServer{err: errors.New("quota exceeded")}
	client := newTestClient(t, mock)

	_, err := client.Rank(context.Background(), "q", []string{"a"}, 1)

	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{0, 0}))
}
