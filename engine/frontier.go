package engine

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/shipsec/workflow-engine/port"
)

// WorkItem is a schedulable unit of work: one node invocation attempt, with
// the provenance needed to order it deterministically relative to siblings
// produced by the same fan-out.
type WorkItem struct {
	NodeID   string
	Attempt  int
	Inputs   map[string]port.Value
	OrderKey uint64
	// FanChild marks an item spawned by a fan-out; FanOutIndex is its
	// position within the producing list, used to deliver `all`-join
	// results in source order regardless of completion order.
	FanChild    bool
	FanOutIndex int
}

// ComputeOrderKey derives a deterministic sort key from a node id and a
// fan-out index: SHA-256(nodeID || index), first 8 bytes as a big-endian
// uint64. Two runs of the same plan produce the same dequeue order even
// though dispatch is concurrent.
func ComputeOrderKey(nodeID string, index int) uint64 {
	h := sha256.New()
	h.Write([]byte(nodeID))
	idxBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idxBytes, uint32(index)) // #nosec G115 -- fan-out index is non-negative
	h.Write(idxBytes)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

type workHeap []WorkItem

func (h workHeap) Len() int            { return len(h) }
func (h workHeap) Less(i, j int) bool  { return h[i].OrderKey < h[j].OrderKey }
func (h workHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *workHeap) Push(x interface{}) { *h = append(*h, x.(WorkItem)) }
func (h *workHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// Frontier is the bounded, deterministically ordered ready queue. Enqueue
// blocks once the queue reaches capacity, giving natural backpressure;
// Dequeue always returns the lowest OrderKey item currently queued.
type Frontier struct {
	mu       sync.Mutex
	heap     workHeap
	queue    chan struct{}
	capacity int

	totalEnqueued      atomic.Int64
	totalDequeued      atomic.Int64
	backpressureEvents atomic.Int32
	peakQueueDepth     atomic.Int32
}

// NewFrontier returns a Frontier bounded to capacity work items.
func NewFrontier(capacity int) *Frontier {
	f := &Frontier{
		heap:     make(workHeap, 0),
		queue:    make(chan struct{}, capacity),
		capacity: capacity,
	}
	heap.Init(&f.heap)
	return f
}

// Enqueue adds item to the frontier, blocking if the queue is at capacity
// until a slot frees up or ctx is cancelled.
func (f *Frontier) Enqueue(ctx context.Context, item WorkItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	heap.Push(&f.heap, item)
	depth := int32(f.heap.Len())
	f.mu.Unlock()

	for {
		peak := f.peakQueueDepth.Load()
		if depth <= peak || f.peakQueueDepth.CompareAndSwap(peak, depth) {
			break
		}
	}
	if depth >= int32(f.capacity) {
		f.backpressureEvents.Add(1)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case f.queue <- struct{}{}:
		f.totalEnqueued.Add(1)
		return nil
	}
}

// Dequeue blocks until a work item is available or ctx is cancelled, then
// returns the item with the smallest OrderKey.
func (f *Frontier) Dequeue(ctx context.Context) (WorkItem, error) {
	var zero WorkItem
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-f.queue:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.heap.Len() == 0 {
			return zero, context.Canceled
		}
		item := heap.Pop(&f.heap).(WorkItem)
		f.totalDequeued.Add(1)
		return item, nil
	}
}

// Len reports the current queue depth.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heap.Len()
}

// Metrics is a point-in-time snapshot of this frontier's throughput
// counters. It is not fed into PrometheusMetrics; the scheduler mirrors
// only the queue depth there, from Len.
type Metrics struct {
	QueueDepth         int32
	QueueCapacity      int32
	TotalEnqueued      int64
	TotalDequeued      int64
	BackpressureEvents int32
	PeakQueueDepth     int32
}

// Metrics returns a snapshot of this frontier's counters.
func (f *Frontier) Metrics() Metrics {
	f.mu.Lock()
	depth := int32(f.heap.Len())
	f.mu.Unlock()
	return Metrics{
		QueueDepth:         depth,
		QueueCapacity:      int32(f.capacity),
		TotalEnqueued:      f.totalEnqueued.Load(),
		TotalDequeued:      f.totalDequeued.Load(),
		BackpressureEvents: f.backpressureEvents.Load(),
		PeakQueueDepth:     f.peakQueueDepth.Load(),
	}
}
