// Package testutil provides centralized test mocks and helpers.
// Test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/runixer/personad/internal/completion"
	"github.com/runixer/personad/internal/storage"
)

// MockCompletionClient implements completion.Client for tests.
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) CreateCompletion(ctx context.Context, req completion.CompletionRequest) (completion.CompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(completion.CompletionResponse), args.Error(1)
}

// MockRanker implements selector.Ranker for tests.
type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, query string, candidates []string, topK int) ([]string, error) {
	args := m.Called(ctx, query, candidates, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockSearcher implements knowledge.Searcher for tests.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, top int) ([]string, error) {
	args := m.Called(ctx, query, top)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockReplyLogRepository implements storage.ReplyLogRepository for tests.
type MockReplyLogRepository struct {
	mock.Mock
}

func (m *MockReplyLogRepository) AddReplyLog(log storage.ReplyLog) error {
	args := m.Called(log)
	return args.Error(0)
}

func (m *MockReplyLogRepository) GetReplyLogs(persona string, limit int) ([]storage.ReplyLog, error) {
	args := m.Called(persona, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ReplyLog), args.Error(1)
}

func (m *MockReplyLogRepository) GetReplyLogsExtended(filter storage.ReplyLogFilter, limit, offset int) (storage.ReplyLogResult, error) {
	args := m.Called(filter, limit, offset)
	return args.Get(0).(storage.ReplyLogResult), args.Error(1)
}

func (m *MockReplyLogRepository) PruneReplyLogs(olderThan time.Duration) (int64, error) {
	args := m.Called(olderThan)
	return args.Get(0).(int64), args.Error(1)
}
