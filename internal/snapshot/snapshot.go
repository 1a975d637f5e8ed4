// Package snapshot builds the JSON response shapes served by the control
// API (health, stats, metrics) from live registry/topic state. Grounded
// on spec.md section 6's bit-exact shapes; the per-topic metrics fields
// mirror topic.Metrics (internal/topic/metrics.go).
package snapshot

import "pubsub-broker/internal/registry"

// LatencyMs holds rolling-latency percentiles for a topic, in
// milliseconds.
type LatencyMs struct {
	Avg float64 `json:"avg"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// TopicMetrics is the per-topic block of the /metrics response.
type TopicMetrics struct {
	QueueDepth        int       `json:"queue_depth"`
	QueueMaxSize      int       `json:"queue_max_size"`
	BatchSizeAvg      float64   `json:"batch_size_avg"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesDelivered int64     `json:"messages_delivered"`
	MessagesDropped   int64     `json:"messages_dropped"`
	SubscriberCount   int       `json:"subscriber_count"`
	LatencyMs         LatencyMs `json:"latency_ms"`
}

// GlobalMetrics is the process-wide block of the /metrics response.
type GlobalMetrics struct {
	ActiveTopics      int   `json:"active_topics"`
	ActiveSubscribers int   `json:"active_subscribers"`
	TotalPublished    int64 `json:"total_published"`
	TotalDelivered    int64 `json:"total_delivered"`
	TotalDropped      int64 `json:"total_dropped"`
}

// MetricsResponse is the GET /metrics body.
type MetricsResponse struct {
	UptimeSeconds float64                 `json:"uptime_seconds"`
	Topics        map[string]TopicMetrics `json:"topics"`
	Global        GlobalMetrics           `json:"global"`
}

// TopicStats is the per-topic block of the /stats response.
type TopicStats struct {
	MessageCount    int `json:"message_count"`
	SubscriberCount int `json:"subscriber_count"`
}

// StatsResponse is the GET /stats body.
type StatsResponse struct {
	Topics map[string]TopicStats `json:"topics"`
}

// HealthResponse is the GET /health body. System is additive: gopsutil
// process stats not named in spec.md, nested so clients that only know
// the pinned fields can ignore it.
type HealthResponse struct {
	Status                string       `json:"status"`
	UptimeSeconds         float64      `json:"uptime_seconds"`
	TopicCount            int          `json:"topic_count"`
	ActiveSubscriberCount int          `json:"active_subscriber_count"`
	System                *SystemStats `json:"system,omitempty"`
}

// SystemStats is the supplemented process-resource block of /health.
type SystemStats struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryMB     float64 `json:"memory_mb"`
	NumGoroutine int     `json:"num_goroutine"`
}

// BuildMetrics assembles the metrics snapshot from the registry's current
// topic set.
func BuildMetrics(r *registry.Registry, uptimeSeconds float64) MetricsResponse {
	topics := r.Snapshot()
	out := MetricsResponse{
		UptimeSeconds: uptimeSeconds,
		Topics:        make(map[string]TopicMetrics, len(topics)),
	}

	var global GlobalMetrics
	global.ActiveTopics = len(topics)

	for name, t := range topics {
		m := t.SnapshotMetrics()
		out.Topics[name] = TopicMetrics{
			QueueDepth:        m.QueueDepth,
			QueueMaxSize:      m.QueueMaxSize,
			BatchSizeAvg:      m.BatchSizeAvg,
			MessagesPublished: m.MessagesPublished,
			MessagesDelivered: m.MessagesDelivered,
			MessagesDropped:   m.MessagesDropped,
			SubscriberCount:   m.SubscriberCount,
			LatencyMs: LatencyMs{
				Avg: m.LatencyAvgMs,
				P95: m.LatencyP95Ms,
				P99: m.LatencyP99Ms,
			},
		}
		global.ActiveSubscribers += m.SubscriberCount
		global.TotalPublished += m.MessagesPublished
		global.TotalDelivered += m.MessagesDelivered
		global.TotalDropped += m.MessagesDropped
	}

	out.Global = global
	return out
}

// BuildStats assembles the GET /stats body.
func BuildStats(r *registry.Registry) StatsResponse {
	topics := r.Snapshot()
	out := StatsResponse{Topics: make(map[string]TopicStats, len(topics))}
	for name, t := range topics {
		m := t.SnapshotMetrics()
		out.Topics[name] = TopicStats{
			MessageCount:    int(m.MessagesPublished),
			SubscriberCount: m.SubscriberCount,
		}
	}
	return out
}

// BuildHealth assembles the GET /health body. sys may be nil when no
// system sampler is available; the "system" block is then omitted.
func BuildHealth(r *registry.Registry, uptimeSeconds float64, sys *SystemStats) HealthResponse {
	return HealthResponse{
		Status:                "healthy",
		UptimeSeconds:         uptimeSeconds,
		TopicCount:            len(r.List()),
		ActiveSubscriberCount: r.ActiveSubscriberCount(),
		System:                sys,
	}
}
