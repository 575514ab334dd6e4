package transport

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"go.bug.st/serial"
)

// Serial is a FrameTransport that tunnels CAN frames over a serial port
// using the slcan ASCII line protocol (as spoken by Lawicel CANUSB-style
// adapters): extended frames are "T" + 8 hex ID digits + 1 hex length
// digit + data hex bytes, terminated by CR.
type Serial struct {
	portName string
	mode     *serial.Mode

	mu      sync.Mutex
	port    serial.Port
	reader  *bufio.Reader
	valid   atomic.Bool
}

// NewSerial creates a Serial transport for the given port at the given
// baud rate (e.g. 115200 for most USB-CDC adapters).
func NewSerial(portName string, baudRate int) *Serial {
	return &Serial{
		portName: portName,
		mode: &serial.Mode{
			BaudRate: baudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		},
	}
}

// Open opens the serial port. Idempotent.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid.Load() {
		return nil
	}
	port, err := serial.Open(s.portName, s.mode)
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return err
	}
	s.port = port
	s.reader = bufio.NewReader(port)
	s.valid.Store(true)
	return nil
}

// Close releases the serial port handle.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid.Load() {
		return nil
	}
	s.valid.Store(false)
	return s.port.Close()
}

// IsValid reports whether the port is currently open.
func (s *Serial) IsValid() bool {
	return s.valid.Load()
}

// ReadFrame blocks up to ~1s reading one slcan line and decoding it.
func (s *Serial) ReadFrame() (frame.Frame, bool) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil || !s.valid.Load() {
		return frame.Frame{}, false
	}

	line, err := reader.ReadString('\r')
	if err != nil {
		// read timeout or transient error: let the caller retry.
		return frame.Frame{}, false
	}
	f, ok := decodeSLCAN(strings.TrimSpace(line))
	return f, ok
}

// WriteFrame encodes f as an slcan line and writes it to the port.
func (s *Serial) WriteFrame(f frame.Frame) bool {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil || !s.valid.Load() {
		return false
	}
	line := encodeSLCAN(f)
	_, err := port.Write([]byte(line))
	if err != nil {
		s.valid.Store(false)
		return false
	}
	return true
}

func encodeSLCAN(f frame.Frame) string {
	var b strings.Builder
	b.WriteByte('T')
	fmt.Fprintf(&b, "%08X", uint32(f.ID))
	fmt.Fprintf(&b, "%X", len(f.Data))
	for _, d := range f.Data {
		fmt.Fprintf(&b, "%02X", d)
	}
	b.WriteByte('\r')
	return b.String()
}

func decodeSLCAN(line string) (frame.Frame, bool) {
	if len(line) < 10 || line[0] != 'T' {
		return frame.Frame{}, false
	}
	rawID, err := strconv.ParseUint(line[1:9], 16, 32)
	if err != nil {
		return frame.Frame{}, false
	}
	length, err := strconv.ParseUint(line[9:10], 16, 8)
	if err != nil || length > 8 {
		return frame.Frame{}, false
	}
	dataHex := line[10:]
	if uint64(len(dataHex)) < length*2 {
		return frame.Frame{}, false
	}
	data := make([]byte, length)
	for i := range data {
		v, err := strconv.ParseUint(dataHex[i*2:i*2+2], 16, 8)
		if err != nil {
			return frame.Frame{}, false
		}
		data[i] = byte(v)
	}
	f, err := frame.New(frame.Identifier(rawID), data, 0, frame.Incoming)
	if err != nil {
		return frame.Frame{}, false
	}
	return f, true
}
