package tuya

// Event is the marker type for everything the Bus can carry. Concrete
// events are distinguished by their Go type, not a separate tag.
type Event any

// ConnectionEstablished is emitted once a TCP session to the device is up
// and the reader loop has started.
type ConnectionEstablished struct{}

// ConnectionClosed is emitted on planned close (Err == nil) or after an
// unplanned disconnect (Err describing the cause).
type ConnectionClosed struct {
	Err error
}

// DataSent carries a single packed wire frame ready to be written.
type DataSent struct {
	Frame []byte
}

// DataReceived carries a single complete wire frame read from the socket,
// split on Separator.
type DataReceived struct {
	Frame []byte
}

// CommandSent requests the Sender allocate a sequence number, encode, and
// transmit cmd, then await its correlated response.
type CommandSent struct {
	Command Command
}

// ResponseReceived carries a decoded response along with the sequence
// number and request Kind it correlates to (zero Kind for device-pushed
// Status responses, which answer no outbound command).
type ResponseReceived struct {
	SequenceNumber int
	Response       Response
	RequestKind    Kind
}

// StateUpdated is emitted whenever StateKeeper's merged snapshot changes.
type StateUpdated struct {
	Values Values
}
