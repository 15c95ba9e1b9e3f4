package search

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
)

const (
	DefaultWorkers     = 3
	DefaultQueueSize   = 1000
	DefaultTaskTimeout = 30 * time.Second
)

type taskKind int

const (
	taskUpsert taskKind = iota
	taskUpdateURL
	taskDelete
)

func (k taskKind) String() string {
	switch k {
	case taskUpsert:
		return "upsert"
	case taskUpdateURL:
		return "update_url"
	case taskDelete:
		return "delete"
	}
	return "unknown"
}

type task struct {
	kind taskKind
	doc  Document
}

type MirrorOptions struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// MirrorStats counts task outcomes since start.
type MirrorStats struct {
	Applied uint64
	Failed  uint64
	Dropped uint64
}

// Mirror propagates link changes to the search index in the background.
//
// Callers never wait on the index and never see its errors. Tasks for the same link
// id always land on the same worker, so changes to one link apply in the order
// they were submitted.
type Mirror struct {
	index   Index
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queues []chan task
	wg     sync.WaitGroup

	applied atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func NewMirror(index Index, logger *zap.Logger, opts MirrorOptions) *Mirror {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}

	m := &Mirror{
		index:   index,
		logger:  logger,
		timeout: opts.TaskTimeout,
		queues:  make([]chan task, opts.Workers),
	}

	perWorker := max(opts.QueueSize/opts.Workers, 1)
	for i := range m.queues {
		m.queues[i] = make(chan task, perWorker)
		m.wg.Add(1)
		go m.worker(i, m.queues[i])
	}

	return m
}

func (m *Mirror) LinkCreated(link models.ShortLink) {
	m.enqueue(task{kind: taskUpsert, doc: DocumentFromLink(link)})
}

func (m *Mirror) LinkURLUpdated(id, url string) {
	m.enqueue(task{kind: taskUpdateURL, doc: Document{ObjectID: id, URL: url}})
}

func (m *Mirror) LinkDeleted(id string) {
	m.enqueue(task{kind: taskDelete, doc: Document{ObjectID: id}})
}

func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		Applied: m.applied.Load(),
		Failed:  m.failed.Load(),
		Dropped: m.dropped.Load(),
	}
}

// Close stops accepting tasks, lets the workers drain what is queued and waits for them.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, q := range m.queues {
		close(q)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Search mirror workers stopped", zap.Any("stats", m.Stats()))
}

func (m *Mirror) enqueue(t task) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		m.dropped.Add(1)
		m.logger.Warn("Search mirror closed, change dropped",
			zap.Stringer("op", t.kind),
			zap.String("objectID", t.doc.ObjectID))
		return
	}

	select {
	case m.queues[m.shard(t.doc.ObjectID)] <- t:
	default:
		m.dropped.Add(1)
		m.logger.Error("Search mirror queue is full, change dropped",
			zap.Stringer("op", t.kind),
			zap.String("objectID", t.doc.ObjectID))
	}
}

func (m *Mirror) shard(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(m.queues)))
}

func (m *Mirror) worker(id int, queue <-chan task) {
	defer m.wg.Done()

	m.logger.Debug("Search mirror worker started", zap.Int("workerID", id))

	for t := range queue {
		m.apply(t)
	}

	m.logger.Debug("Search mirror worker stopped", zap.Int("workerID", id))
}

func (m *Mirror) apply(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var err error
	switch t.kind {
	case taskUpsert:
		err = m.index.SaveObject(ctx, t.doc)
	case taskUpdateURL:
		err = m.index.PartialUpdateURL(ctx, t.doc.ObjectID, t.doc.URL)
	case taskDelete:
		err = m.index.DeleteObject(ctx, t.doc.ObjectID)
	}

	if err != nil {
		m.failed.Add(1)
		m.logger.Error("Search mirror sync failed",
			zap.Stringer("op", t.kind),
			zap.String("objectID", t.doc.ObjectID),
			zap.Error(err))
		return
	}

	m.applied.Add(1)
	m.logger.Debug("Search mirror synced",
		zap.Stringer("op", t.kind),
		zap.String("objectID", t.doc.ObjectID))
}
