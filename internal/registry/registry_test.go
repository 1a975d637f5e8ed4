package registry

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
	"pubsub-broker/internal/topic"
)

type recordingSink struct {
	mu  sync.Mutex
	got []message.Message
}

func (s *recordingSink) Send(ctx context.Context, batch []message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, batch...)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func testCfg() topic.Config {
	cfg := topic.DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond
	cfg.BatchSize = 5
	return cfg
}

func TestCreateIsIdempotent(t *testing.T) {
	r := New(testCfg(), nil)
	require.NoError(t, r.Create("news"))
	require.NoError(t, r.Create("news"))

	assert.Equal(t, []string{"news"}, r.List())
}

func TestCreateInvalidName(t *testing.T) {
	r := New(testCfg(), nil)
	assert.Error(t, r.Create("bad name"))
}

func TestDeleteFinality(t *testing.T) {
	r := New(testCfg(), nil)
	require.NoError(t, r.Create("t"))

	assert.True(t, r.Delete("t"))
	assert.False(t, r.Delete("t"))

	_, err := r.Subscribe("t", "c1", &recordingSink{}, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Publish("t", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribePublishNotFound(t *testing.T) {
	r := New(testCfg(), nil)
	_, err := r.Subscribe("missing", "c1", &recordingSink{}, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Publish("missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Unsubscribe("missing", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupClientDetachesEverywhere(t *testing.T) {
	r := New(testCfg(), nil)
	require.NoError(t, r.Create("a"))
	require.NoError(t, r.Create("b"))

	_, err := r.Subscribe("a", "client1", &recordingSink{}, 0)
	require.NoError(t, err)
	_, err = r.Subscribe("b", "client1", &recordingSink{}, 0)
	require.NoError(t, err)

	r.CleanupClient("client1")

	assert.Equal(t, 0, r.ActiveSubscriberCount())
}

func TestFanOutAcrossManySubscribers(t *testing.T) {
	r := New(testCfg(), nil)
	require.NoError(t, r.Create("news"))
	t.Cleanup(r.ShutdownAll)

	sinks := make([]*recordingSink, 50)
	for i := range sinks {
		sinks[i] = &recordingSink{}
		_, err := r.Subscribe("news", fmt.Sprintf("c%d", i), sinks[i], 0)
		require.NoError(t, err)
	}

	for i := 0; i < 50; i++ {
		payload, _ := json.Marshal(map[string]int{"seq": i})
		r.Publish("news", payload)
	}

	require.Eventually(t, func() bool {
		for _, s := range sinks {
			if s.count() != 50 {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRegistryRacesUnderConcurrentCreateListDelete(t *testing.T) {
	r := New(testCfg(), nil)
	var wg sync.WaitGroup

	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				name := fmt.Sprintf("topic_%d", (w+i)%50)
				r.Create(name)
				r.List()
				r.Create(name)
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		r.Delete(fmt.Sprintf("topic_%d", i))
	}

	assert.Empty(t, r.List())
}

func TestShutdownAllIsConcurrentAndFinal(t *testing.T) {
	r := New(testCfg(), nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Create(fmt.Sprintf("t%d", i)))
	}

	r.ShutdownAll()
	assert.Empty(t, r.List())
}
