// Package registry implements the process-wide name -> Topic map: topic
// creation, lookup, deletion, and the global subscriber cleanup used
// when a session terminates. Grounded on
// original_source/pubsub-system/src/topics/topic_manager.py's
// TopicManager: a single lock around map mutation, topic work always
// done outside it.
package registry

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pubsub-broker/internal/message"
	"pubsub-broker/internal/metrics"
	"pubsub-broker/internal/subscriber"
	"pubsub-broker/internal/topic"
)

// ErrNotFound is returned when an operation names a topic that does not
// exist in the registry.
var ErrNotFound = errors.New("registry: topic not found")

// Registry is the process-wide topic directory. The zero value is not
// usable; construct with New.
type Registry struct {
	mu      sync.Mutex
	topics  map[string]*topic.Topic
	cfg     topic.Config
	logger  *zap.Logger
	metrics *metrics.Registry
}

// New constructs an empty Registry. cfg supplies the per-topic tunables
// every created Topic inherits.
func New(cfg topic.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		topics: make(map[string]*topic.Topic),
		cfg:    cfg,
		logger: logger,
	}
}

// SetMetrics wires an ambient Prometheus registry in; every Topic this
// Registry creates afterward inherits it. nil is a valid (no-op)
// registry.
func (r *Registry) SetMetrics(m *metrics.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Create validates name and constructs+starts a Topic for it. Idempotent:
// if the topic already exists, it returns success unchanged (existing
// counters and replay history are untouched).
func (r *Registry) Create(name string) error {
	if err := topic.ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[name]; ok {
		return nil
	}

	t := topic.New(name, r.cfg, r.logger)
	t.SetMetrics(r.metrics)
	t.Start()
	r.topics[name] = t
	return nil
}

// Delete atomically removes name from the map, then shuts the removed
// Topic down outside the registry mutex. Returns whether a topic was
// removed. After Delete returns, no further attach/publish for this
// name can bind to the deleted Topic — new lookups simply miss.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	t, ok := r.topics[name]
	if ok {
		delete(r.topics, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	t.Shutdown()
	return true
}

// Lookup returns the Topic for name, if any.
func (r *Registry) Lookup(name string) (*topic.Topic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[name]
	return t, ok
}

// Exists reports whether name is currently registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// List returns all registered topic names, sorted for stable output.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a point-in-time copy of the name -> Topic map, for
// read-only iteration by the metrics/control/dashboard layers.
func (r *Registry) Snapshot() map[string]*topic.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*topic.Topic, len(r.topics))
	for name, t := range r.topics {
		out[name] = t
	}
	return out
}

// Subscribe looks up name and attaches sink under clientID, returning
// the replay prefix. ErrNotFound if the topic doesn't exist.
func (r *Registry) Subscribe(name, clientID string, sink subscriber.Sink, lastN int) ([]message.Message, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, ErrNotFound
	}
	return t.Attach(clientID, sink, lastN), nil
}

// Unsubscribe looks up name and detaches clientID, reporting whether a
// handle was removed. ErrNotFound if the topic doesn't exist.
func (r *Registry) Unsubscribe(name, clientID string) (bool, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return false, ErrNotFound
	}
	return t.Detach(clientID), nil
}

// Publish looks up name and publishes payload, returning the current
// subscriber count. ErrNotFound if the topic doesn't exist.
func (r *Registry) Publish(name string, payload []byte) (int, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return 0, ErrNotFound
	}
	return t.Publish(payload), nil
}

// CleanupClient detaches clientID from every topic, regardless of which
// topics the client was actually attached to. Used when a session
// terminates.
func (r *Registry) CleanupClient(clientID string) {
	for _, t := range r.Snapshot() {
		t.Detach(clientID)
	}
}

// ActiveSubscriberCount sums the subscriber count across every topic.
func (r *Registry) ActiveSubscriberCount() int {
	total := 0
	for _, t := range r.Snapshot() {
		total += t.SubscriberCount()
	}
	return total
}

// ShutdownAll shuts down every registered topic concurrently and empties
// the registry. Used at process exit.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	topics := make([]*topic.Topic, 0, len(r.topics))
	for name, t := range r.topics {
		topics = append(topics, t)
		delete(r.topics, name)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range topics {
		wg.Add(1)
		go func(t *topic.Topic) {
			defer wg.Done()
			t.Shutdown()
		}(t)
	}
	wg.Wait()
}
