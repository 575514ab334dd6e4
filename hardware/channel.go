package hardware

import (
	"sync"
	"sync/atomic"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/transport"
)

// FrameReceiver is the seam between a channel's transport and its owning
// network: the hardware interface hands every drained RX frame to
// Receive. A NetworkManager implements this to absorb frames, per spec
// §4.2 stage 1 ("deliver to the network").
type FrameReceiver interface {
	Receive(f frame.Frame)
}

// Updatable is implemented by a FrameReceiver that wants to be driven on
// every periodic tick (spec §4.2 stage 2: "call each network's update()").
type Updatable interface {
	Update()
}

const (
	defaultRXQueueSize = 1024
	defaultTXQueueSize = 256
)

// channel holds everything the hardware interface owns for one network:
// its transport, direction queues, and the receiver frames are delivered
// to.
type channel struct {
	network   int
	transport transport.FrameTransport
	receiver  FrameReceiver

	rxMu sync.Mutex
	rx   []frame.Frame

	txMu sync.Mutex
	tx   []frame.Frame

	rxQueueSize int
	txQueueSize int

	droppedRX uint64
	droppedTX uint64

	rxStop chan struct{}
	rxDone chan struct{}
}

func newChannel(network int, t transport.FrameTransport, recv FrameReceiver, rxSize, txSize int) *channel {
	return &channel{
		network:     network,
		transport:   t,
		receiver:    recv,
		rxQueueSize: rxSize,
		txQueueSize: txSize,
		rxStop:      make(chan struct{}),
		rxDone:      make(chan struct{}),
	}
}

// pushRX appends a received frame, dropping the oldest entry once the
// queue is at capacity (spec §7 "queue overflow").
func (c *channel) pushRX(f frame.Frame) {
	c.rxMu.Lock()
	defer c.rxMu.Unlock()
	if len(c.rx) >= c.rxQueueSize {
		c.rx = c.rx[1:]
		atomic.AddUint64(&c.droppedRX, 1)
	}
	c.rx = append(c.rx, f)
}

// drainRX removes and returns every currently queued RX frame, in arrival
// order.
func (c *channel) drainRX() []frame.Frame {
	c.rxMu.Lock()
	defer c.rxMu.Unlock()
	if len(c.rx) == 0 {
		return nil
	}
	out := c.rx
	c.rx = nil
	return out
}

// pushTX enqueues a frame for transmission, dropping the oldest entry once
// the queue is at capacity.
func (c *channel) pushTX(f frame.Frame) bool {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	if len(c.tx) >= c.txQueueSize {
		c.tx = c.tx[1:]
		atomic.AddUint64(&c.droppedTX, 1)
	}
	c.tx = append(c.tx, f)
	return true
}

// drainTX writes queued frames to the transport in enqueue order, stopping
// at the first write failure so the remainder is retried next wakeup.
func (c *channel) drainTX() (written []frame.Frame) {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	i := 0
	for i < len(c.tx) {
		if !c.transport.WriteFrame(c.tx[i]) {
			break
		}
		written = append(written, c.tx[i])
		i++
	}
	c.tx = c.tx[i:]
	return written
}

// dropped reports the RX and TX frames this channel has discarded for
// queue overflow, per spec §7 ("counter incremented for observability").
func (c *channel) dropped() (rx, tx uint64) {
	return atomic.LoadUint64(&c.droppedRX), atomic.LoadUint64(&c.droppedTX)
}

// clear drops every queued frame, used on Stop per spec invariant 4.
func (c *channel) clear() {
	c.rxMu.Lock()
	c.rx = nil
	c.rxMu.Unlock()
	c.txMu.Lock()
	c.tx = nil
	c.txMu.Unlock()
}
