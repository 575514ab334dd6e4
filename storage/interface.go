package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const defaultTickInterval = 20 * time.Millisecond

type writeRequest struct {
	id   EntryType
	data []byte
}

// ReadCallback receives the outcome of a completed read request.
type ReadCallback func(id EntryType, data []byte, ok bool)

// Interface is the storage pump: a strict structural subset of
// hardware.Interface with a single write-request queue and a single
// read-request queue drained by one worker goroutine per tick, rather
// than per-channel fan-out.
type Interface struct {
	backend Backend

	running   atomic.Bool
	queueSize int

	writeMu    sync.Mutex
	writeQueue []writeRequest

	readMu    sync.Mutex
	readQueue []EntryType

	cbMu      sync.Mutex
	callbacks map[EntryType]ReadCallback

	wake         chan struct{}
	tickInterval time.Duration

	logger *log.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInterface constructs a storage pump over backend.
func NewInterface(backend Backend, opts ...Option) *Interface {
	i := &Interface{
		backend:      backend,
		queueSize:    defaultQueueSize,
		callbacks:    make(map[EntryType]ReadCallback),
		wake:         make(chan struct{}, 1),
		tickInterval: defaultTickInterval,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start launches the worker goroutine. It is a no-op if already running.
func (i *Interface) Start() error {
	if !i.running.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.run(ctx)
	return nil
}

// Stop halts the worker goroutine and waits for it to exit.
func (i *Interface) Stop() error {
	if !i.running.CompareAndSwap(true, false) {
		return nil
	}
	i.cancel()
	<-i.done
	return nil
}

// RequestWrite enqueues a write of data under id, applied on the next
// tick. It returns ErrNotRunning if the pump has not been started.
func (i *Interface) RequestWrite(id EntryType, data []byte) error {
	if !i.running.Load() {
		return ErrNotRunning
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	i.writeMu.Lock()
	if len(i.writeQueue) >= i.queueSize {
		i.writeQueue = i.writeQueue[1:]
	}
	i.writeQueue = append(i.writeQueue, writeRequest{id: id, data: cp})
	i.writeMu.Unlock()
	i.notify()
	return nil
}

// RequestRead enqueues a read of id, applied on the next tick. The
// result is delivered to any callback registered for id via
// AddReadCallback. It returns ErrNotRunning if the pump has not been
// started.
func (i *Interface) RequestRead(id EntryType) error {
	if !i.running.Load() {
		return ErrNotRunning
	}
	i.readMu.Lock()
	if len(i.readQueue) >= i.queueSize {
		i.readQueue = i.readQueue[1:]
	}
	i.readQueue = append(i.readQueue, id)
	i.readMu.Unlock()
	i.notify()
	return nil
}

// AddReadCallback registers fn to be invoked when a read of id
// completes. It reports false if a callback is already registered for
// id, correcting the original implementation's inverted existence
// check (see DESIGN.md) rather than reproducing its duplicate
// registrations.
func (i *Interface) AddReadCallback(id EntryType, fn ReadCallback) bool {
	i.cbMu.Lock()
	defer i.cbMu.Unlock()
	if _, exists := i.callbacks[id]; exists {
		return false
	}
	i.callbacks[id] = fn
	return true
}

// RemoveReadCallback unregisters the callback for id, reporting whether
// one was present.
func (i *Interface) RemoveReadCallback(id EntryType) bool {
	i.cbMu.Lock()
	defer i.cbMu.Unlock()
	if _, exists := i.callbacks[id]; !exists {
		return false
	}
	delete(i.callbacks, id)
	return true
}

func (i *Interface) notify() {
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

func (i *Interface) run(ctx context.Context) {
	defer close(i.done)
	ticker := time.NewTicker(i.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			i.drainWrites()
			i.drainReads()
			return
		case <-i.wake:
		case <-ticker.C:
		}
		i.drainWrites()
		i.drainReads()
	}
}

func (i *Interface) drainWrites() {
	i.writeMu.Lock()
	pending := i.writeQueue
	i.writeQueue = nil
	i.writeMu.Unlock()

	for _, req := range pending {
		if !i.backend.Write(req.id, req.data) {
			i.logger.Printf("storage: write of entry %d failed", req.id)
		}
	}
}

func (i *Interface) drainReads() {
	i.readMu.Lock()
	pending := i.readQueue
	i.readQueue = nil
	i.readMu.Unlock()

	for _, id := range pending {
		data, ok := i.backend.Read(id)
		i.cbMu.Lock()
		cb := i.callbacks[id]
		i.cbMu.Unlock()
		if cb != nil {
			cb(id, data, ok)
		}
	}
}
