package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadTotal       atomic.Uint64
	uploadFailedTotal atomic.Uint64
	searchTotal       atomic.Uint64
	searchIndexTotal  atomic.Uint64

	uploadSizeBytes = newHistogram([]float64{
		1 << 10, 16 << 10, 256 << 10, 1 << 20, 5 << 20, 10 << 20, 25 << 20, 50 << 20,
	})
)

// IncUpload increments the upload counter.
func IncUpload() {
	uploadTotal.Add(1)
}

// IncUploadFailed increments the failed upload counter.
func IncUploadFailed() {
	uploadFailedTotal.Add(1)
}

// IncSearch increments the search counter.
func IncSearch() {
	searchTotal.Add(1)
}

// IncSearchIndex increments the indexing counter.
func IncSearchIndex() {
	searchIndexTotal.Add(1)
}

// ObserveUploadSize records an uploaded blob size in bytes.
func ObserveUploadSize(value float64) {
	if value < 0 {
		value = 0
	}
	uploadSizeBytes.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "document_upload_total", "Total document uploads", uploadTotal.Load())
	writeCounter(&buf, "document_upload_failed_total", "Total failed document uploads", uploadFailedTotal.Load())
	writeCounter(&buf, "document_search_total", "Total document searches", searchTotal.Load())
	writeCounter(&buf, "document_index_total", "Total search index writes", searchIndexTotal.Load())
	writeHistogram(&buf, "document_upload_size_bytes", "Uploaded blob size in bytes", uploadSizeBytes.Snapshot())
	return buf.String()
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)+1),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += value
	h.count++
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.counts)-1]++
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return histogramSnapshot{
		buckets: h.buckets,
		counts:  counts,
		sum:     h.sum,
		count:   h.count,
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	cumulative := uint64(0)
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, strconv.FormatFloat(bound, 'f', -1, 64), cumulative)
	}
	cumulative += snap.counts[len(snap.counts)-1]
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, cumulative)
	fmt.Fprintf(buf, "%s_sum %g\n", name, snap.sum)
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}
