package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeResponder struct {
	name string
	err  error

	mu            sync.Mutex
	conversations []string
}

func (f *fakeResponder) Name() string { return f.name }

func (f *fakeResponder) GenerateReply(_ context.Context, conversation string) (string, error) {
	f.mu.Lock()
	f.conversations = append(f.conversations, conversation)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "reply from " + f.name, nil
}

func (f *fakeResponder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.conversations...)
}

type collectingSink struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
}

func newCollectingSink() *collectingSink {
	return &collectingSink{replies: make(map[string]string), errs: make(map[string]error)}
}

func (s *collectingSink) sink(_ context.Context, persona, reply string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[persona] = reply
	s.errs[persona] = err
}

func TestDispatch_SingleTaskPerPersona(t *testing.T) {
	luna := &fakeResponder{name: "Luna"}
	sink := newCollectingSink()
	r := New(testLogger(), "", sink.sink)
	r.Register(luna)

	// Repeated mentions still produce exactly one task.
	n := r.Dispatch(context.Background(), "&luna hey &Luna are you there &LUNA")
	r.Wait()

	assert.Equal(t, 1, n)
	assert.Len(t, luna.calls(), 1)
	assert.Equal(t, "reply from Luna", sink.replies["Luna"])
}

func TestDispatch_MultiplePersonas(t *testing.T) {
	luna := &fakeResponder{name: "Luna"}
	hugo := &fakeResponder{name: "Hugo"}
	sink := newCollectingSink()
	r := New(testLogger(), "", sink.sink)
	r.Register(luna)
	r.Register(hugo)

	n := r.Dispatch(context.Background(), "&luna and &hugo, settle this")
	r.Wait()

	assert.Equal(t, 2, n)
	assert.Equal(t, "reply from Luna", sink.replies["Luna"])
	assert.Equal(t, "reply from Hugo", sink.replies["Hugo"])
}

func TestDispatch_NoMatchIsNoop(t *testing.T) {
	luna := &fakeResponder{name: "Luna"}
	r := New(testLogger(), "", nil)
	r.Register(luna)

	assert.Zero(t, r.Dispatch(context.Background(), "nobody mentioned anyone"))
	r.Wait()
	assert.Empty(t, luna.calls())
}

func TestDispatch_TokenNotPartOfLongerWord(t *testing.T) {
	luna := &fakeResponder{name: "Luna"}
	r := New(testLogger(), "", nil)
	r.Register(luna)

	assert.Zero(t, r.Dispatch(context.Background(), "the &lunar lander"))
	r.Wait()
	assert.Empty(t, luna.calls())
}

func TestDispatch_StripsTokensFromConversation(t *testing.T) {
	luna := &fakeResponder{name: "Luna"}
	hugo := &fakeResponder{name: "Hugo"}
	r := New(testLogger(), "", nil)
	r.Register(luna)
	r.Register(hugo)

	r.Dispatch(context.Background(), "&luna what does &hugo think?")
	r.Wait()

	for _, calls := range [][]string{luna.calls(), hugo.calls()} {
		require.Len(t, calls, 1)
		assert.Equal(t, "what does think?", calls[0])
		assert.NotContains(t, calls[0], "&")
	}
}

func TestDispatch_CustomPrefix(t *testing.T) {
	luna := &fakeResponder{name: "Luna"}
	r := New(testLogger(), "@", nil)
	r.Register(luna)

	assert.Equal(t, 1, r.Dispatch(context.Background(), "@luna hello"))
	assert.Zero(t, r.Dispatch(context.Background(), "&luna hello"))
	r.Wait()
}

func TestDispatch_FailureDeliveredToSink(t *testing.T) {
	broken := &fakeResponder{name: "Luna", err: errors.New("exhausted")}
	sink := newCollectingSink()
	r := New(testLogger(), "", sink.sink)
	r.Register(broken)

	r.Dispatch(context.Background(), "&luna hi")
	r.Wait()

	assert.Error(t, sink.errs["Luna"])
	assert.Empty(t, sink.replies["Luna"])
}

func TestDispatch_RegisterDuringDispatchIsSafe(t *testing.T) {
	r := New(testLogger(), "", nil)
	first := &fakeResponder{name: "Luna"}
	r.Register(first)

	r.Dispatch(context.Background(), "&luna hi")
	r.Register(&fakeResponder{name: "Hugo"})
	r.Wait()

	assert.Len(t, first.calls(), 1)
}
