package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the Prometheus collectors of the record store. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Codec metrics
	recordsEncodedTotal  *prometheus.CounterVec
	recordsDecodedTotal  *prometheus.CounterVec
	decodeTruncatedTotal *prometheus.CounterVec

	// Side file metrics
	blobBytesTotal        *prometheus.CounterVec
	trieKeysInsertedTotal *prometheus.CounterVec
	trieMissingIDsTotal   *prometheus.CounterVec

	// Batch metrics
	batchesTotal        *prometheus.CounterVec
	batchDuration       *prometheus.HistogramVec
	recoveredBytesTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		recordsEncodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_records_encoded_total",
				Help: "Total number of records encoded, nested records included",
			},
			[]string{"type"},
		),

		recordsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_records_decoded_total",
				Help: "Total number of records decoded, nested records included",
			},
			[]string{"type"},
		),

		decodeTruncatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_decode_truncated_total",
				Help: "Number of decode passes that stopped at a truncated record",
			},
			[]string{"type"},
		),

		blobBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_blob_bytes_appended_total",
				Help: "Bytes appended to blob files",
			},
			[]string{"file"},
		),

		trieKeysInsertedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_trie_keys_inserted_total",
				Help: "New keys interned into trie files",
			},
			[]string{"file"},
		),

		trieMissingIDsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_trie_missing_ids_total",
				Help: "Trie ids that resolved to no key during decode",
			},
			[]string{"file"},
		),

		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_batches_total",
				Help: "Total number of read and write batches",
			},
			[]string{"operation", "status"},
		),

		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recstore_batch_duration_seconds",
				Help:    "Batch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		recoveredBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recstore_recovered_bytes_total",
				Help: "Trailing bytes removed from record files by recovery",
			},
			[]string{"type"},
		),
	}
}

// RecordEncoded counts one encoded record of the given type
func (m *Metrics) RecordEncoded(typeName string) {
	if m == nil {
		return
	}
	m.recordsEncodedTotal.WithLabelValues(typeName).Inc()
}

// RecordDecoded counts one decoded record of the given type
func (m *Metrics) RecordDecoded(typeName string) {
	if m == nil {
		return
	}
	m.recordsDecodedTotal.WithLabelValues(typeName).Inc()
}

// DecodeTruncated counts a decode pass that ended at a partial record
func (m *Metrics) DecodeTruncated(typeName string) {
	if m == nil {
		return
	}
	m.decodeTruncatedTotal.WithLabelValues(typeName).Inc()
}

// BlobAppended adds n bytes to the blob file's counter
func (m *Metrics) BlobAppended(file string, n int) {
	if m == nil {
		return
	}
	m.blobBytesTotal.WithLabelValues(file).Add(float64(n))
}

// TrieKeyInserted counts a new key in a trie file
func (m *Metrics) TrieKeyInserted(file string) {
	if m == nil {
		return
	}
	m.trieKeysInsertedTotal.WithLabelValues(file).Inc()
}

// TrieIDMissing counts an id that did not resolve
func (m *Metrics) TrieIDMissing(file string) {
	if m == nil {
		return
	}
	m.trieMissingIDsTotal.WithLabelValues(file).Inc()
}

// RecordBatch records a finished batch
func (m *Metrics) RecordBatch(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.batchesTotal.WithLabelValues(operation, status).Inc()
	m.batchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Recovered adds the bytes recovery cut from a record file
func (m *Metrics) Recovered(typeName string, n int64) {
	if m == nil {
		return
	}
	m.recoveredBytesTotal.WithLabelValues(typeName).Add(float64(n))
}
