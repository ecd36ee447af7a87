package tuya

// Kind identifies a frame/command/response type by its wire command code.
type Kind int

const (
	KindUpdate    Kind = 7
	KindStatus    Kind = 8
	KindHeartbeat Kind = 9
	KindState     Kind = 10
)

func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindStatus:
		return "status"
	case KindHeartbeat:
		return "heartbeat"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Command is an outbound request. Only HeartbeatCommand, StateCommand, and
// UpdateCommand are supported by the v3.3 codec.
type Command interface {
	Kind() Kind
	payload() Values
}

// HeartbeatCommand carries no payload; devices echo sequence number 0
// regardless of what is sent.
type HeartbeatCommand struct{}

func (HeartbeatCommand) Kind() Kind      { return KindHeartbeat }
func (HeartbeatCommand) payload() Values { return nil }

// StateCommand requests a full state refresh; it carries no payload.
type StateCommand struct{}

func (StateCommand) Kind() Kind      { return KindState }
func (StateCommand) payload() Values { return nil }

// UpdateCommand requests the device apply Values. Its wire payload is
// wrapped in a "dps" object and, unlike the other commands, prefixed with
// the protocol version header.
type UpdateCommand struct {
	Values Values
}

func (UpdateCommand) Kind() Kind        { return KindUpdate }
func (c UpdateCommand) payload() Values { return Values{"dps": map[string]Value(c.Values)} }

// Response is an inbound reply. State/Status responses additionally expose
// Values via StatusResponse/StateResponse.
type Response interface {
	Kind() Kind
	Err() error
}

type baseResponse struct {
	kind Kind
	err  error
}

func (r baseResponse) Kind() Kind { return r.kind }
func (r baseResponse) Err() error { return r.err }

// HeartbeatResponse is the reply to a HeartbeatCommand.
type HeartbeatResponse struct{ baseResponse }

// UpdateResponse is the reply to an UpdateCommand.
type UpdateResponse struct{ baseResponse }

// StatusResponse carries a delta (or, as StateResponse, complete) snapshot
// of datapoints under the wire's "dps" key.
type StatusResponse struct {
	baseResponse
	Values Values
}

// StateResponse is the same shape as StatusResponse but carries the
// complete device state rather than a delta.
type StateResponse struct {
	StatusResponse
}

func newStatusResponse(kind Kind, payload map[string]any, respErr error) StatusResponse {
	r := StatusResponse{baseResponse: baseResponse{kind: kind, err: respErr}}
	if payload != nil {
		if dps, ok := payload["dps"].(map[string]any); ok {
			vs := make(Values, len(dps))
			for k, v := range dps {
				vs[k] = v
			}
			r.Values = vs
		}
	}
	if len(r.Values) == 0 && r.err == nil {
		r.err = newDecodeError("no dps in response")
	}
	return r
}
