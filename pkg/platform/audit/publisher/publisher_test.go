package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "keyhaven/pkg/platform/audit"
	"keyhaven/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Category: audit.CategorySecurity,
		Address:  "user@example.com",
		Action:   string(audit.EventRecoveryAttempt),
		Outcome:  "mismatched",
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRecoveryAttempt), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp stamped on emit")
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	event := audit.Event{
		Category: audit.CategorySecurity,
		Address:  "user@example.com",
		Action:   string(audit.EventEscrowCreated),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Close drains the inbox before returning.
	pub.Close()

	events, err := pub.List(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventEscrowCreated), events[0].Action)
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	closed bool
}

func (s *recordingSink) Publish(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func TestPublisher_SecuritySink(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &recordingSink{}
	pub := NewPublisher(store, WithSink(sink))

	security := audit.Event{
		Category:  audit.CategorySecurity,
		Address:   "user@example.com",
		Action:    string(audit.EventRecoveryRateLimited),
		Timestamp: time.Now(),
	}
	operational := audit.Event{
		Category:  audit.CategoryOperations,
		Address:   "user@example.com",
		Action:    "healthcheck",
		Timestamp: time.Now(),
	}

	require.NoError(t, pub.Emit(context.Background(), security))
	require.NoError(t, pub.Emit(context.Background(), operational))

	sink.mu.Lock()
	require.Len(t, sink.events, 1, "only security events reach the sink")
	assert.Equal(t, string(audit.EventRecoveryRateLimited), sink.events[0].Action)
	sink.mu.Unlock()

	pub.Close()
	sink.mu.Lock()
	assert.True(t, sink.closed)
	sink.mu.Unlock()

	events, err := pub.List(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Len(t, events, 2, "store receives every category")
}
