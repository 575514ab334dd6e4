package network

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/controlfunction"
	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/hardware"
	"github.com/GwnDaan/ISO11783-CAN-Stack/name"
	"github.com/GwnDaan/ISO11783-CAN-Stack/protocol"
)

const maxMessageLength = 1785 // spec §4.5 TX path absolute max, single-frame fallback is 8

// rxQueueSize bounds Manager's own RX queue, mirroring
// hardware.channel's bounded, drop-oldest-with-counter queue (spec §7
// "queue overflow").
const rxQueueSize = 1024

// Manager is the per-network singleton of spec §4.5: the address table,
// control-function registry, PGN callback dispatch, partner binding, TX
// path, and busload estimate. It implements hardware.FrameReceiver and
// hardware.Updatable so a hardware.Interface can drive it directly, and
// controlfunction.Network so its Internal control functions can transmit
// address-claim traffic through it.
type Manager struct {
	index int
	hw    *hardware.Interface

	// cfMu is the "control-function processing" mutex of spec §5: held
	// for the whole Update() body so address-table mutation, partner
	// binding, and callback dispatch see a consistent snapshot.
	cfMu        sync.Mutex
	table       [254]cfEntry
	inactive    []cfEntry
	partners    []*controlfunction.PartneredControlFunction
	internalCFs []*controlfunction.InternalControlFunction

	rxMu      sync.Mutex
	rxQueue   []frame.Frame
	droppedRX uint64

	globalCB   *callbackRegistry
	anyCFCB    *callbackRegistry
	partnerCB  *callbackRegistry
	protocolCB *callbackRegistry

	protocols *protocol.Registry
	busload   *busloadWindow

	logger *log.Logger
}

// NewManager constructs a Manager bound to hardware network index
// `networkIndex`; hw.Transmit(networkIndex, f) is used for all outgoing
// traffic.
func NewManager(networkIndex int, hw *hardware.Interface, opts ...Option) *Manager {
	m := &Manager{
		index:      networkIndex,
		hw:         hw,
		globalCB:   newCallbackRegistry(),
		anyCFCB:    newCallbackRegistry(),
		partnerCB:  newCallbackRegistry(),
		protocolCB: newCallbackRegistry(),
		protocols:  protocol.NewRegistry(),
		busload:    newBusloadWindow(time.Now()),
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Receive implements hardware.FrameReceiver: it enqueues the frame for
// the next Update(), guarded only by the RX queue's own mutex (spec §5).
// Once the queue is at capacity the oldest frame is dropped and
// droppedRX is incremented, per spec §7 "queue overflow"; Receive has no
// error return (it implements hardware.FrameReceiver), so the drop is
// only observable via DroppedRXCount.
func (m *Manager) Receive(f frame.Frame) {
	m.rxMu.Lock()
	if len(m.rxQueue) >= rxQueueSize {
		m.rxQueue = m.rxQueue[1:]
		atomic.AddUint64(&m.droppedRX, 1)
		m.logger.Printf("%v: network %d RX queue full, oldest frame dropped", ErrQueueOverflow, m.index)
	}
	m.rxQueue = append(m.rxQueue, f)
	m.rxMu.Unlock()
}

// DroppedRXCount returns the number of frames this Manager's RX queue has
// discarded for overflow, per spec §7's observability requirement.
func (m *Manager) DroppedRXCount() uint64 {
	return atomic.LoadUint64(&m.droppedRX)
}

func (m *Manager) drainRX() []frame.Frame {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()
	if len(m.rxQueue) == 0 {
		return nil
	}
	out := m.rxQueue
	m.rxQueue = nil
	return out
}

// AddInternal registers and returns a new InternalControlFunction hosted
// by this network. It is the factory named in spec §3 ("created by
// factory on the network").
func (m *Manager) AddInternal(n name.Name, preferredAddress uint8) *controlfunction.InternalControlFunction {
	cf := controlfunction.NewInternal(n, preferredAddress, m)
	m.cfMu.Lock()
	m.internalCFs = append(m.internalCFs, cf)
	cf.AddRef()
	m.cfMu.Unlock()
	return cf
}

// AddPartner registers a PartneredControlFunction to be bound against
// future or already-observed External control functions matching its
// filter set (spec §4.5 "Partner binding").
func (m *Manager) AddPartner(filters name.FilterSet) *controlfunction.PartneredControlFunction {
	p := controlfunction.NewPartnered(filters, m)
	m.cfMu.Lock()
	m.partners = append(m.partners, p)
	p.AddRef()
	m.cfMu.Unlock()
	return p
}

// Send implements controlfunction.Network: it hands a pre-built frame
// straight to the hardware interface's TX queue.
func (m *Manager) Send(f frame.Frame) bool {
	f.Channel = m.index
	return m.hw.Transmit(m.index, f)
}

// Claimed implements controlfunction.Network: it records cf's finalized
// address claim directly into the table, since (unlike a real bus) our
// own transmitted frames are not guaranteed to loop back to us. It is
// reached only from InternalControlFunction.Tick, which Update calls with
// cfMu already held, so it does not take cfMu itself.
func (m *Manager) Claimed(cf *controlfunction.InternalControlFunction, addr uint8) {
	m.placeLocked(cf, addr)
}

// Update implements hardware.Updatable. It is called once per periodic
// tick (spec §4.2 stage 2) and runs, in order: address-claim timers,
// RX dispatch for every frame drained since the last tick, the busload
// window roll-over, partner binding, and each registered protocol's
// Update.
func (m *Manager) Update() {
	now := time.Now()

	m.cfMu.Lock()
	defer m.cfMu.Unlock()

	for _, icf := range m.internalCFs {
		icf.Tick(now)
	}

	for _, f := range m.drainRX() {
		m.busload.record(now, f.Length())
		m.dispatchLocked(f)
	}
	m.busload.roll(now)

	m.bindPartnersLocked()
	m.protocols.Update()
}

// findByNameLocked searches the active table, then the inactive list,
// then the partner list, per spec §4.5 step 2.
func (m *Manager) findByNameLocked(n name.Name) cfEntry {
	for _, e := range m.table {
		if e != nil && e.NAME() == n {
			return e
		}
	}
	for _, e := range m.inactive {
		if e.NAME() == n {
			return e
		}
	}
	for _, p := range m.partners {
		if p.NAME() == n {
			return p
		}
	}
	return nil
}

func (m *Manager) removeFromInactiveLocked(e cfEntry) {
	for i, c := range m.inactive {
		if c == e {
			m.inactive = append(m.inactive[:i], m.inactive[i+1:]...)
			return
		}
	}
}

// placeLocked inserts entry e into table slot addr, evicting whatever
// else (if anything) sat there, and records e's address.
func (m *Manager) placeLocked(e cfEntry, addr uint8) {
	if int(addr) >= len(m.table) {
		return
	}
	m.removeFromInactiveLocked(e)
	for i, occupant := range m.table {
		if occupant == e && i != int(addr) {
			m.table[i] = nil
		}
	}
	m.table[addr] = e
	if ext, ok := e.(*controlfunction.ExternalControlFunction); ok {
		ext.Observe(addr)
	} else if p, ok := e.(*controlfunction.PartneredControlFunction); ok {
		p.Observe(addr)
	}
}

// updateAddressTable implements spec §4.5's five address-claim steps.
func (m *Manager) updateAddressTable(msg *protocol.Message) {
	if len(msg.Data) < 8 {
		return
	}
	n := name.Decode(msg.Data)
	addr := msg.Source
	if int(addr) >= len(m.table) {
		return
	}

	if occupant := m.table[addr]; occupant != nil && occupant.NAME() != n {
		if internal, ok := occupant.(*controlfunction.InternalControlFunction); ok {
			internal.NotifyConflict(n)
			if n.Less(occupant.NAME()) {
				m.table[addr] = nil
				m.inactive = append(m.inactive, internal)
			}
		}
	}

	if existing := m.findByNameLocked(n); existing != nil {
		m.placeLocked(existing, addr)
		return
	}

	ext := controlfunction.NewExternal(n, addr, m)
	m.table[addr] = ext
}

// bindPartnersLocked scans the inactive list then the active table for
// the first External CF matching each unbound partner's filter set,
// replacing it in place (spec §4.5 "Partner binding").
func (m *Manager) bindPartnersLocked() {
	for _, p := range m.partners {
		if p.Bound() {
			continue
		}
		if match := m.findUnboundMatchLocked(p); match != nil {
			if err := p.Bind(match); err == nil {
				for addr, e := range m.table {
					if e == match {
						m.table[addr] = p
					}
				}
				m.removeFromInactiveLocked(match)
			}
		}
	}
}

func (m *Manager) findUnboundMatchLocked(p *controlfunction.PartneredControlFunction) *controlfunction.ExternalControlFunction {
	for _, e := range m.inactive {
		if ext, ok := e.(*controlfunction.ExternalControlFunction); ok && p.Matches(ext.NAME()) {
			return ext
		}
	}
	for _, e := range m.table {
		if ext, ok := e.(*controlfunction.ExternalControlFunction); ok && p.Matches(ext.NAME()) {
			return ext
		}
	}
	return nil
}

// dispatchLocked runs the RX pipeline of spec §4.5 for one drained frame.
func (m *Manager) dispatchLocked(f frame.Frame) {
	pgn := f.ID.PGN()
	msg := &protocol.Message{
		PGN:         pgn,
		Data:        f.Data,
		Source:      f.ID.Source(),
		Destination: f.ID.Destination(),
		Priority:    f.ID.Priority(),
	}

	if pgn == frame.PGNAddressClaim {
		m.updateAddressTable(msg)
	}

	m.protocolCB.fire(pgn, nil, msg)

	destinedToUs := msg.Destination == frame.AddressGlobal || m.ownsAddressLocked(msg.Destination)
	if destinedToUs {
		m.anyCFCB.fire(pgn, nil, msg)
	}

	if msg.Destination == frame.AddressGlobal && !m.ownsAddressLocked(msg.Source) {
		m.globalCB.fire(pgn, nil, msg)
	}
	if m.ownsAddressLocked(msg.Destination) {
		if partner := m.partnerForSourceLocked(msg.Source); partner != nil {
			m.partnerCB.fire(pgn, partner, msg)
		}
	}

	if pgn == frame.PGNCommandedAddress && len(msg.Data) == 9 {
		m.handleCommandedAddress(msg.Data)
	}
}

func (m *Manager) ownsAddressLocked(addr uint8) bool {
	for _, icf := range m.internalCFs {
		if icf.Address() == addr {
			return true
		}
	}
	return false
}

func (m *Manager) partnerForSourceLocked(src uint8) *controlfunction.PartneredControlFunction {
	for _, p := range m.partners {
		if p.Bound() && p.Address() == src {
			return p
		}
	}
	return nil
}

func (m *Manager) handleCommandedAddress(data []byte) {
	target := name.Decode(data[:8])
	newAddr := data[8]
	for _, icf := range m.internalCFs {
		icf.HandleCommandedAddress(target, newAddr)
	}
}

// AddGlobalPGNCallback registers a callback for messages addressed to the
// global address from a CF we don't own, per spec §4.5 stage 4.
func (m *Manager) AddGlobalPGNCallback(pgn uint32, fn func(*protocol.Message)) (bool, error) {
	return m.globalCB.add(pgn, nil, fn)
}

// RemoveGlobalPGNCallback undoes AddGlobalPGNCallback.
func (m *Manager) RemoveGlobalPGNCallback(pgn uint32) bool {
	return m.globalCB.remove(pgn, nil)
}

// AddAnyControlFunctionPGNCallback registers a callback for messages
// destined to any of our Internal CFs or the global address.
func (m *Manager) AddAnyControlFunctionPGNCallback(pgn uint32, fn func(*protocol.Message)) (bool, error) {
	return m.anyCFCB.add(pgn, nil, fn)
}

// RemoveAnyControlFunctionPGNCallback undoes
// AddAnyControlFunctionPGNCallback.
func (m *Manager) RemoveAnyControlFunctionPGNCallback(pgn uint32) bool {
	return m.anyCFCB.remove(pgn, nil)
}

// AddPartnerPGNCallback registers a callback fired only for messages from
// the given bound partner.
func (m *Manager) AddPartnerPGNCallback(pgn uint32, partner *controlfunction.PartneredControlFunction, fn func(*protocol.Message)) (bool, error) {
	return m.partnerCB.add(pgn, partner, fn)
}

// RemovePartnerPGNCallback undoes AddPartnerPGNCallback.
func (m *Manager) RemovePartnerPGNCallback(pgn uint32, partner *controlfunction.PartneredControlFunction) bool {
	return m.partnerCB.remove(pgn, partner)
}

// AddProtocolPGNCallback registers a callback for a transport-layer
// protocol's subscribed PGNs (spec §4.5 stage 2, "protocol_pgn_callbacks").
func (m *Manager) AddProtocolPGNCallback(pgn uint32, fn func(*protocol.Message)) (bool, error) {
	return m.protocolCB.add(pgn, nil, fn)
}

// RemoveProtocolPGNCallback undoes AddProtocolPGNCallback.
func (m *Manager) RemoveProtocolPGNCallback(pgn uint32) bool {
	return m.protocolCB.remove(pgn, nil)
}

// RegisterProtocol adds a transport-layer protocol to this network,
// calling its Initialize.
func (m *Manager) RegisterProtocol(p protocol.Protocol) error {
	return m.protocols.Register(p)
}

// BusloadPercentage returns the current 10s busload estimate, per spec
// §4.5.
func (m *Manager) BusloadPercentage() float64 {
	return m.busload.Percentage()
}

// SendCANMessage implements spec §4.5's send_can_message TX path: it
// offers the message to each registered protocol in order, falling back
// to direct single-frame emission, per the identifier rules of §4.3.
func (m *Manager) SendCANMessage(pgn uint32, data []byte, src, dst uint8, priority uint8, cb protocol.CompletionCallback) error {
	if src == frame.AddressNull && pgn != frame.PGNAddressClaim {
		return fmt.Errorf("%w: null source address", ErrInvalidSend)
	}
	if len(data) > maxMessageLength {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidSend, len(data), maxMessageLength)
	}

	if m.protocols.TransmitMessage(pgn, data, src, dst, cb) {
		return nil
	}

	if len(data) > 8 {
		return fmt.Errorf("%w: no protocol accepted a %d-byte payload", ErrInvalidSend, len(data))
	}

	id, err := frame.Build(priority, pgn, src, dst)
	if err != nil {
		if cb != nil {
			cb(pgn, len(data), src, dst, false)
		}
		return fmt.Errorf("%w: %v", ErrInvalidSend, err)
	}
	f, err := frame.New(id, data, m.index, frame.Outgoing)
	if err != nil {
		if cb != nil {
			cb(pgn, len(data), src, dst, false)
		}
		return fmt.Errorf("%w: %v", ErrInvalidSend, err)
	}
	ok := m.hw.Transmit(m.index, f)
	if ok {
		m.busload.record(time.Now(), f.Length())
	}
	if cb != nil {
		cb(pgn, len(data), src, dst, ok)
	}
	if !ok {
		return ErrInvalidSend
	}
	return nil
}
