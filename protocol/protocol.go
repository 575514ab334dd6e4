package protocol

// Message is the decoded view of one CAN frame handed to a Protocol or a
// PGN callback: the frame's J1939 fields without the raw identifier
// bit-packing, per spec §4.5/§4.6.
type Message struct {
	PGN         uint32
	Data        []byte
	Source      uint8
	Destination uint8
	Priority    uint8
}

// CompletionCallback reports the outcome of a send initiated through
// ProtocolTransmitMessage or the network manager's TX path, per spec
// §4.5's send_can_message signature.
type CompletionCallback func(pgn uint32, length int, src, dst uint8, success bool)

// Protocol is the capability interface a transport-layer protocol
// implements to participate in the network manager's update loop and TX
// offer chain, per spec §4.6. It replaces the source's inheritance-based
// protocol hierarchy (spec §9).
type Protocol interface {
	// Initialize is called once by the network manager that owns this
	// protocol; implementations should make repeat calls a no-op.
	Initialize() error
	// ProtocolTransmitMessage offers a send to this protocol. Returning
	// true claims ownership of the message; the network manager tries
	// the next registered protocol on false.
	ProtocolTransmitMessage(pgn uint32, data []byte, src, dst uint8, cb CompletionCallback) bool
	// Update is called once per network update, after address-claim and
	// PGN dispatch for that tick.
	Update()
	// ProcessMessage is invoked for PGNs this protocol subscribed to via
	// the network manager's protocol-scoped PGN callback registry.
	ProcessMessage(msg *Message)
}
