package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_total",
			Help: "Total number of bus messages handled by the dispatch loop (count)",
		},
		[]string{"family", "shape", "outcome"},
	)

	IngestProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_processing_duration_ms",
			Help:    "Time from receipt to completion of one message in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"family"},
	)

	PartialCacheDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partial_cache_devices",
			Help: "Number of devices holding a cached partial I/O reading (count)",
		},
	)

	StorageInsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_inserts_total",
			Help: "Total number of insert transactions (count)",
		},
		[]string{"table", "status"},
	)

	StorageInsertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_insert_duration_ms",
			Help:    "Duration of one insert transaction in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"table"},
	)

	BroadcastMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of realtime broadcasts per notifier (count)",
		},
		[]string{"notifier", "channel", "status"},
	)

	RealtimeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_clients",
			Help: "Number of connected websocket clients (count)",
		},
	)

	BusMessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_received_total",
			Help: "Total number of messages received from the bus (count)",
		},
		[]string{"bus", "topic"},
	)

	BusMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bus_message_size_bytes",
			Help:    "Size of received bus payloads in bytes",
			Buckets: []float64{64, 128, 256, 512, 1024, 4096, 16384, 65536},
		},
		[]string{"bus"},
	)

	BusConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bus_connected",
			Help: "Bus connection state (1=connected, 0=disconnected)",
		},
		[]string{"bus"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	DashboardQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_queries_total",
			Help: "Total number of dashboard target queries (count)",
		},
		[]string{"status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"operation"},
	)
)

func RegisterIngestMetrics() {
	prometheus.MustRegister(IngestMessagesTotal)
	prometheus.MustRegister(IngestProcessingDuration)
	prometheus.MustRegister(PartialCacheDevices)
	prometheus.MustRegister(StorageInsertsTotal)
	prometheus.MustRegister(StorageInsertDuration)
}

func RegisterRealtimeMetrics() {
	prometheus.MustRegister(BroadcastMessagesTotal)
	prometheus.MustRegister(RealtimeClients)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(BusMessagesReceivedTotal)
	prometheus.MustRegister(BusMessageSizeBytes)
	prometheus.MustRegister(BusConnected)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterDashboardMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DashboardQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func IncIngestMessage(family, shape, outcome string) {
	IngestMessagesTotal.WithLabelValues(family, shape, outcome).Inc()
}

func ObserveIngestDuration(family string, duration time.Duration) {
	IngestProcessingDuration.WithLabelValues(family).Observe(float64(duration.Milliseconds()))
}

func SetPartialCacheDevices(count int) {
	PartialCacheDevices.Set(float64(count))
}

func IncStorageInsert(table, status string) {
	StorageInsertsTotal.WithLabelValues(table, status).Inc()
}

func ObserveStorageInsertDuration(table string, duration time.Duration) {
	StorageInsertDuration.WithLabelValues(table).Observe(float64(duration.Milliseconds()))
}

func IncBroadcast(notifier, channel, status string) {
	BroadcastMessagesTotal.WithLabelValues(notifier, channel, status).Inc()
}

func SetRealtimeClients(count int) {
	RealtimeClients.Set(float64(count))
}

func IncBusMessageReceived(bus, topic string) {
	BusMessagesReceivedTotal.WithLabelValues(bus, topic).Inc()
}

func ObserveBusMessageSize(bus string, sizeBytes int) {
	BusMessageSizeBytes.WithLabelValues(bus).Observe(float64(sizeBytes))
}

func SetBusConnected(bus string, connected bool) {
	value := 0.0
	if connected {
		value = 1
	}
	BusConnected.WithLabelValues(bus).Set(value)
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDashboardQuery(status string) {
	DashboardQueriesTotal.WithLabelValues(status).Inc()
}

func ObserveDatabaseQueryDuration(operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}
