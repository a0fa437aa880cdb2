package gateway

import (
	"github.com/pkg/errors"

	"github.com/aojiaoxiaolinlin/bot-go/utils/json"
)

// OpCode is the gateway operation code, the "op" field of every envelope.
type OpCode uint8

const (
	DispatchOP        OpCode = 0  // recv
	HeartbeatOP       OpCode = 1  // send/recv
	IdentifyOP        OpCode = 2  // send
	ResumeOP          OpCode = 6  // send
	ReconnectOP       OpCode = 7  // recv
	InvalidSessionOP  OpCode = 9  // recv
	HelloOP           OpCode = 10 // recv
	HeartbeatAckOP    OpCode = 11 // recv
	CallbackAckOP     OpCode = 12 // send, webhook reply
	WebhookValidateOP OpCode = 13 // recv, webhook only
)

// Op is the gateway wire envelope. Optional fields stay absent on the wire
// when unset.
type Op struct {
	Code OpCode   `json:"op"`
	Data json.Raw `json:"d,omitempty"`

	// Sequence is present on dispatched events only.
	Sequence *uint64 `json:"s,omitempty"`
	// EventName tags Dispatch (op 0) payloads.
	EventName string `json:"t,omitempty"`
	// ID is the event id used by webhook delivery.
	ID string `json:"id,omitempty"`
}

// NewOp builds an envelope with v marshaled into the data field. A nil v
// leaves the data field absent.
func NewOp(code OpCode, v interface{}) (*Op, error) {
	op := Op{Code: code}

	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode op data")
		}
		op.Data = b
	}

	return &op, nil
}

// DecodeOp parses a single frame into an envelope.
func DecodeOp(b []byte) (*Op, error) {
	if len(b) == 0 {
		return nil, errors.New("empty payload")
	}

	var op *Op
	if err := json.Unmarshal(b, &op); err != nil {
		return nil, errors.Wrap(err, "invalid op: "+string(b))
	}

	// A literal null decodes without error but yields no envelope.
	if op == nil {
		return nil, errors.New("null payload")
	}

	return op, nil
}

// UnmarshalData decodes the envelope's data field into v.
func (op *Op) UnmarshalData(v interface{}) error {
	if op.Data == nil {
		return errors.New("op has no data")
	}

	if err := op.Data.UnmarshalTo(v); err != nil {
		return errors.Wrap(err, "failed to decode op data")
	}

	return nil
}
