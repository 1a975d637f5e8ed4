package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub-broker/internal/message"
)

// fakeSink records every batch it receives. It can be made to stall or
// fail on demand, for slow-consumer and failure-path tests.
type fakeSink struct {
	mu       sync.Mutex
	received [][]message.Message
	delay    time.Duration
	fail     bool
}

func (s *fakeSink) Send(ctx context.Context, batch []message.Message) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.fail {
		return fmt.Errorf("sink failure")
	}
	s.mu.Lock()
	cp := append([]message.Message(nil), batch...)
	s.received = append(s.received, cp)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) all() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message.Message
	for _, b := range s.received {
		out = append(out, b...)
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 5
	cfg.BatchTimeout = 10 * time.Millisecond
	cfg.SendTimeout = 100 * time.Millisecond
	cfg.ReplayCapacity = 10
	return cfg
}

func newTestTopic(t *testing.T) *Topic {
	t.Helper()
	tp := New("t1", testConfig(), nil)
	tp.Start()
	t.Cleanup(tp.Shutdown)
	return tp
}

func TestPublishAndDeliverOrder(t *testing.T) {
	tp := newTestTopic(t)
	sink := &fakeSink{}
	tp.Attach("c1", sink, 0)

	for i := 0; i < 23; i++ {
		payload, _ := json.Marshal(map[string]int{"seq": i})
		tp.Publish(payload)
	}

	require.Eventually(t, func() bool {
		return len(sink.all()) == 23
	}, time.Second, time.Millisecond)

	got := sink.all()
	for i, m := range got {
		var v map[string]int
		require.NoError(t, json.Unmarshal(m.Payload, &v))
		assert.Equal(t, i, v["seq"])
	}
}

func TestReplayBoundaryDisjoint(t *testing.T) {
	tp := newTestTopic(t)

	for i := 0; i < 20; i++ {
		payload, _ := json.Marshal(map[string]int{"seq": i})
		tp.Publish(payload)
	}

	sink := &fakeSink{}
	replay := tp.Attach("c1", sink, 5)
	require.Len(t, replay, 5)
	for i, m := range replay {
		var v map[string]int
		require.NoError(t, json.Unmarshal(m.Payload, &v))
		assert.Equal(t, 15+i, v["seq"])
	}

	for i := 20; i < 23; i++ {
		payload, _ := json.Marshal(map[string]int{"seq": i})
		tp.Publish(payload)
	}

	require.Eventually(t, func() bool {
		return len(sink.all()) == 3
	}, time.Second, time.Millisecond)

	replaySeqs := map[int]bool{}
	for _, m := range replay {
		var v map[string]int
		json.Unmarshal(m.Payload, &v)
		replaySeqs[v["seq"]] = true
	}
	for _, m := range sink.all() {
		var v map[string]int
		json.Unmarshal(m.Payload, &v)
		assert.False(t, replaySeqs[v["seq"]], "live message must not duplicate replay prefix")
	}
}

func TestSlowSubscriberIsolation(t *testing.T) {
	tp := newTestTopic(t)

	slow := &fakeSink{delay: time.Second}
	fast := &fakeSink{}
	tp.Attach("slow", slow, 0)
	tp.Attach("fast", fast, 0)

	for i := 0; i < 10; i++ {
		payload, _ := json.Marshal(map[string]int{"seq": i})
		tp.Publish(payload)
	}

	require.Eventually(t, func() bool {
		return len(fast.all()) == 10
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return tp.SubscriberCount() == 1
	}, time.Second, time.Millisecond)
}

func TestSendFailureDetaches(t *testing.T) {
	tp := newTestTopic(t)
	failing := &fakeSink{fail: true}
	tp.Attach("c1", failing, 0)

	tp.Publish(json.RawMessage(`{"seq":1}`))

	require.Eventually(t, func() bool {
		return tp.SubscriberCount() == 0
	}, time.Second, time.Millisecond)
}

func TestPublishNeverBlocks(t *testing.T) {
	tp := newTestTopic(t)
	start := time.Now()
	for i := 0; i < 100; i++ {
		tp.Publish(json.RawMessage(`{"seq":1}`))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestQueueOverflowDropsAndCountsClosure(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 2
	cfg.BatchTimeout = time.Hour // no effect here: the worker is never started
	tp := New("overflow", cfg, nil)
	// Do not Start(): queue fills up, worker never drains.

	for i := 0; i < 10; i++ {
		tp.Publish(json.RawMessage(`{}`))
	}

	m := tp.SnapshotMetrics()
	assert.Equal(t, int64(10), m.MessagesPublished)
	assert.GreaterOrEqual(t, m.MessagesPublished, m.MessagesDropped)
	assert.Greater(t, m.MessagesDropped, int64(0))
}

func TestDetachIdempotent(t *testing.T) {
	tp := newTestTopic(t)
	sink := &fakeSink{}
	tp.Attach("c1", sink, 0)

	assert.True(t, tp.Detach("c1"))
	assert.False(t, tp.Detach("c1"))
}

func TestShutdownFlushesPendingBatch(t *testing.T) {
	cfg := testConfig()
	cfg.BatchTimeout = time.Hour
	cfg.BatchSize = 1000
	tp := New("shutdown-flush", cfg, nil)
	tp.Start()

	sink := &fakeSink{}
	tp.Attach("c1", sink, 0)
	tp.Publish(json.RawMessage(`{"seq":1}`))

	tp.Shutdown()

	assert.Len(t, sink.all(), 1)
}

func TestValidateName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"news", true},
		{"news_Feed-1.0", true},
		{"", false},
		{"bad name", false},
		{"bad/name", false},
	}
	for _, c := range cases {
		err := ValidateName(c.name)
		if c.ok {
			assert.NoError(t, err, c.name)
		} else {
			assert.Error(t, err, c.name)
		}
	}
}
