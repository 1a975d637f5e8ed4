package topic

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pubsub-broker/internal/message"
	"pubsub-broker/internal/subscriber"
)

// run is the topic's single delivery worker. It accumulates ingest
// queue items into a batch and flushes on whichever comes first: the
// batch reaching cfg.BatchSize, or cfg.BatchTimeout elapsing since the
// last flush. On the stop signal it flushes any partial batch before
// exiting, transitioning the topic Draining -> Terminated (the doneCh
// close is what Shutdown waits on).
//
// Grounded on original_source/pubsub-system/src/topics/topic_manager.py
// _delivery_worker, translated from asyncio.wait_for/asyncio.Queue into
// a select over a buffered channel and a per-iteration timer.
func (t *Topic) run() {
	defer close(t.doneCh)

	batch := make([]message.Message, 0, t.cfg.BatchSize)
	lastFlush := time.Now()

	for {
		var stop bool
		batch, lastFlush, stop = t.iterate(batch, lastFlush)
		if stop {
			return
		}
	}
}

// iterate runs one step of the delivery loop and recovers from any
// panic so an unexpected bug in one topic cannot take down the whole
// process (spec.md §4.3: "worker catches and logs unexpected errors
// rather than terminating; it backs off briefly before resuming").
func (t *Topic) iterate(batch []message.Message, lastFlush time.Time) (newBatch []message.Message, newLastFlush time.Time, stop bool) {
	newBatch, newLastFlush = batch, lastFlush

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("delivery worker panic recovered", zap.Any("panic", r))
			time.Sleep(50 * time.Millisecond)
			stop = false
		}
	}()

	remaining := t.cfg.BatchTimeout - time.Since(lastFlush)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-t.stopCh:
		if len(batch) > 0 {
			t.flush(batch)
		}
		return nil, lastFlush, true

	case msg, ok := <-t.queue:
		if !ok {
			if len(batch) > 0 {
				t.flush(batch)
			}
			return nil, lastFlush, true
		}
		batch = append(batch, msg)
		if len(batch) >= t.cfg.BatchSize {
			t.flush(batch)
			return make([]message.Message, 0, t.cfg.BatchSize), time.Now(), false
		}
		return batch, lastFlush, false

	case <-timer.C:
		if len(batch) > 0 {
			t.flush(batch)
			return make([]message.Message, 0, t.cfg.BatchSize), time.Now(), false
		}
		return batch, time.Now(), false
	}
}

// flush delivers a non-empty batch to every currently attached
// subscriber concurrently, per the seven-step algorithm in spec.md §4.3.
func (t *Topic) flush(batch []message.Message) {
	if len(batch) == 0 {
		return
	}

	t.mu.Lock()
	t.batchSizeSamples = appendCapped(t.batchSizeSamples, float64(len(batch)), t.cfg.MetricsSampleCap)
	handles := make([]*subscriber.Handle, 0, len(t.subscribers))
	for _, h := range t.subscribers {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	active := make([]*subscriber.Handle, 0, len(handles))
	for _, h := range handles {
		if !h.IsClosed() {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		// Step 3: delivered-to-nobody. Spec stops here — no latency
		// sample either, since steps 4-7 never run for this batch.
		return
	}

	results := make([]bool, len(active))
	var wg sync.WaitGroup
	for i, h := range active {
		wg.Add(1)
		go func(i int, h *subscriber.Handle) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), t.cfg.SendTimeout)
			defer cancel()
			results[i] = h.SendBatch(ctx, batch)
		}(i, h)
	}
	wg.Wait()

	var delivered int64
	for i, h := range active {
		if results[i] {
			delivered += int64(len(batch))
		} else {
			t.Detach(h.ClientID())
		}
	}
	if delivered > 0 {
		t.delivered.Add(delivered)
		if t.metrics != nil {
			t.metrics.Messages.MessagesDelivered.Add(float64(delivered))
		}
	}

	t.recordLatency(batch)
}

// recordLatency records, for every message in batch that carries a
// publish timestamp, the elapsed time since publish.
func (t *Topic) recordLatency(batch []message.Message) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range batch {
		if m.PublishedAt.IsZero() {
			continue
		}
		latencyMs := float64(now.Sub(m.PublishedAt)) / float64(time.Millisecond)
		t.latencySamples = appendCapped(t.latencySamples, latencyMs, t.cfg.MetricsSampleCap)
	}
}
