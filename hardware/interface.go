package hardware

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/sync/errgroup"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/transport"
)

// Interface is the multi-channel frame pump of spec §4.2. It owns one
// transport.FrameTransport per network, and drives three kinds of
// concurrent activity: one RX goroutine per channel that drains its
// transport, a single update goroutine that delivers frames and runs
// periodic ticks in a fixed order, and a single tick goroutine that paces
// the ticks.
type Interface struct {
	mu       sync.RWMutex
	channels map[int]*channel

	running atomic.Bool
	tick    atomic.Bool

	periodicInterval time.Duration
	rxQueueSize      int
	txQueueSize      int

	wake chan struct{}

	cbMu               sync.Mutex
	onFrameReceived    []func(frame.Frame)
	onFrameTransmitted []func(frame.Frame)
	onPeriodicTick     []func()

	logger *log.Logger

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewInterface constructs an Interface with default queue sizes and tick
// rate, applying any supplied Options.
func NewInterface(opts ...Option) *Interface {
	i := &Interface{
		channels:         make(map[int]*channel),
		periodicInterval: defaultPeriodicInterval,
		rxQueueSize:      defaultRXQueueSize,
		txQueueSize:      defaultTXQueueSize,
		wake:             make(chan struct{}, 1),
		logger:           log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Assign binds a transport to a network ID. It is safe to call whether or
// not the interface is running (spec §4.2): if running, it opens the
// transport and spawns the channel's RX goroutine inline before returning.
func (i *Interface) Assign(network int, t transport.FrameTransport, recv FrameReceiver) error {
	i.mu.Lock()
	if _, exists := i.channels[network]; exists {
		i.mu.Unlock()
		return ErrChannelExists
	}
	c := newChannel(network, t, recv, i.rxQueueSize, i.txQueueSize)
	i.channels[network] = c
	running := i.running.Load()
	ctx, group := i.ctx, i.group
	i.mu.Unlock()

	if !running {
		return nil
	}
	if err := retry.Do(
		c.transport.Open,
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
	); err != nil {
		i.logger.Printf("hardware: channel %d open failed after retries: %v", c.network, err)
	}
	group.Go(func() error {
		i.runRX(ctx, c)
		return nil
	})
	return nil
}

// Unassign removes a channel's binding. It is safe to call whether or not
// the interface is running (spec §4.2): if running, it joins the
// channel's RX goroutine and closes its transport inline before
// returning.
func (i *Interface) Unassign(network int) error {
	i.mu.Lock()
	c, exists := i.channels[network]
	if !exists {
		i.mu.Unlock()
		return ErrNoChannel
	}
	delete(i.channels, network)
	running := i.running.Load()
	i.mu.Unlock()

	if running {
		close(c.rxStop)
		<-c.rxDone
		if err := c.transport.Close(); err != nil {
			i.logger.Printf("hardware: channel %d close failed: %v", c.network, err)
		}
	}
	c.clear()
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (i *Interface) IsRunning() bool {
	return i.running.Load()
}

// OnFrameReceived registers a callback fired for every frame handed off to
// a network, after it leaves the RX queue. Callbacks run without the
// registry lock held, per spec §5.
func (i *Interface) OnFrameReceived(cb func(frame.Frame)) {
	i.cbMu.Lock()
	defer i.cbMu.Unlock()
	i.onFrameReceived = append(i.onFrameReceived, cb)
}

// OnFrameTransmitted registers a callback fired for every frame that a
// transport successfully wrote.
func (i *Interface) OnFrameTransmitted(cb func(frame.Frame)) {
	i.cbMu.Lock()
	defer i.cbMu.Unlock()
	i.onFrameTransmitted = append(i.onFrameTransmitted, cb)
}

// OnPeriodicTick registers a callback fired once per periodic interval,
// before any channel's Update is called.
func (i *Interface) OnPeriodicTick(cb func()) {
	i.cbMu.Lock()
	defer i.cbMu.Unlock()
	i.onPeriodicTick = append(i.onPeriodicTick, cb)
}

// SetPeriodicInterval changes the tick goroutine's wakeup period. Safe to
// call while running; takes effect on the next tick.
func (i *Interface) SetPeriodicInterval(d time.Duration) {
	i.mu.Lock()
	i.periodicInterval = d
	i.mu.Unlock()
}

// GetPeriodicInterval returns the current tick period.
func (i *Interface) GetPeriodicInterval() time.Duration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.periodicInterval
}

// DroppedCounts returns the number of RX and TX frames the given
// network's channel has discarded for queue overflow, per spec §7. ok is
// false if no channel is assigned for that network.
func (i *Interface) DroppedCounts(network int) (rx, tx uint64, ok bool) {
	i.mu.RLock()
	c, exists := i.channels[network]
	i.mu.RUnlock()
	if !exists {
		return 0, 0, false
	}
	rx, tx = c.dropped()
	return rx, tx, true
}

// Transmit enqueues a frame for the given network's transport. It returns
// false if no channel is assigned for that network.
func (i *Interface) Transmit(network int, f frame.Frame) bool {
	i.mu.RLock()
	c, ok := i.channels[network]
	i.mu.RUnlock()
	if !ok {
		return false
	}
	return c.pushTX(f)
}

// Start opens every assigned channel's transport and launches the RX,
// update, and tick goroutines. It returns ErrAlreadyRunning if called
// twice without an intervening Stop.
func (i *Interface) Start() error {
	i.mu.Lock()
	if i.running.Load() {
		i.mu.Unlock()
		return ErrAlreadyRunning
	}
	channels := make([]*channel, 0, len(i.channels))
	for _, c := range i.channels {
		channels = append(channels, c)
	}
	i.mu.Unlock()

	for _, c := range channels {
		c := c
		err := retry.Do(
			c.transport.Open,
			retry.Attempts(3),
			retry.Delay(100*time.Millisecond),
		)
		if err != nil {
			i.logger.Printf("hardware: channel %d open failed after retries: %v", c.network, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	i.mu.Lock()
	i.cancel = cancel
	i.group = group
	i.ctx = ctx
	i.running.Store(true)
	i.mu.Unlock()

	for _, c := range channels {
		c := c
		c.rxStop = make(chan struct{})
		c.rxDone = make(chan struct{})
		group.Go(func() error {
			i.runRX(ctx, c)
			return nil
		})
	}
	group.Go(func() error {
		i.runUpdate(ctx)
		return nil
	})
	group.Go(func() error {
		i.runTick(ctx)
		return nil
	})
	return nil
}

// Stop signals every goroutine to exit, waits for them, closes every
// channel's transport, and drops all queued frames. It returns
// ErrNotRunning if the interface was not running.
func (i *Interface) Stop() error {
	if !i.running.Load() {
		return ErrNotRunning
	}
	i.running.Store(false)
	i.notify()
	if i.cancel != nil {
		i.cancel()
	}
	if i.group != nil {
		i.group.Wait()
	}

	i.mu.RLock()
	channels := make([]*channel, 0, len(i.channels))
	for _, c := range i.channels {
		channels = append(channels, c)
	}
	i.mu.RUnlock()

	for _, c := range channels {
		if err := c.transport.Close(); err != nil {
			i.logger.Printf("hardware: channel %d close failed: %v", c.network, err)
		}
		c.clear()
	}

	i.mu.Lock()
	i.ctx = nil
	i.mu.Unlock()
	return nil
}

func (i *Interface) notify() {
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

// runRX drains one channel's transport into its RX queue until the
// interface stops, the channel is unassigned, or the transport goes
// invalid, in which case it backs off a second before retrying.
func (i *Interface) runRX(ctx context.Context, c *channel) {
	defer close(c.rxDone)
	for i.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-c.rxStop:
			return
		default:
		}
		if !c.transport.IsValid() {
			if err := retry.Do(c.transport.Open, retry.Attempts(1)); err != nil {
				select {
				case <-ctx.Done():
					return
				case <-c.rxStop:
					return
				case <-time.After(time.Second):
				}
			}
			continue
		}
		f, ok := c.transport.ReadFrame()
		if !ok {
			continue
		}
		c.pushRX(f)
		i.notify()
	}
}

// runUpdate is the condvar-style single consumer of spec §5: it wakes on
// notify or a 1s timeout and executes drain-RX, tick, drain-TX in that
// fixed order while holding no lock across the whole body (each channel
// guards its own queues).
func (i *Interface) runUpdate(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.wake:
		case <-time.After(time.Second):
		}
		if !i.running.Load() {
			return
		}
		i.update()
	}
}

func (i *Interface) update() {
	i.mu.RLock()
	channels := make([]*channel, 0, len(i.channels))
	for _, c := range i.channels {
		channels = append(channels, c)
	}
	i.mu.RUnlock()

	// Stage 1: drain RX, deliver to each channel's network.
	for _, c := range channels {
		frames := c.drainRX()
		for _, f := range frames {
			i.fireFrameReceived(f)
			if c.receiver != nil {
				c.receiver.Receive(f)
			}
		}
	}

	// Stage 2: periodic tick, then per-network Update.
	if i.tick.CompareAndSwap(true, false) {
		i.firePeriodicTick()
		for _, c := range channels {
			if u, ok := c.receiver.(Updatable); ok {
				u.Update()
			}
		}
	}

	// Stage 3: drain TX.
	for _, c := range channels {
		written := c.drainTX()
		for _, f := range written {
			i.fireFrameTransmitted(f)
		}
	}
}

func (i *Interface) runTick(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(i.GetPeriodicInterval()):
		}
		if !i.running.Load() {
			return
		}
		i.tick.Store(true)
		i.notify()
	}
}

func (i *Interface) fireFrameReceived(f frame.Frame) {
	i.cbMu.Lock()
	cbs := append([]func(frame.Frame){}, i.onFrameReceived...)
	i.cbMu.Unlock()
	for _, cb := range cbs {
		cb(f)
	}
}

func (i *Interface) fireFrameTransmitted(f frame.Frame) {
	i.cbMu.Lock()
	cbs := append([]func(frame.Frame){}, i.onFrameTransmitted...)
	i.cbMu.Unlock()
	for _, cb := range cbs {
		cb(f)
	}
}

func (i *Interface) firePeriodicTick() {
	i.cbMu.Lock()
	cbs := append([]func(){}, i.onPeriodicTick...)
	i.cbMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}
