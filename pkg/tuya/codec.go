package tuya

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
)

const (
	wirePrefix = 0x000055AA
	wireSuffix = 0x0000AA55

	headerLen     = 16 // prefix, sequence number, command code, payload length (4x BE uint32)
	returnCodeLen = 4
	endLen        = 8 // crc32 + suffix
)

var versionHeader = append([]byte("3.3"), make([]byte, 12)...) // 15 bytes total

// Separator is the 4-byte wire suffix frames are split on.
var Separator = []byte{0x00, 0x00, 0xAA, 0x55}

// Codec packs Commands to frames and unpacks frames to Responses for one
// device, using the key and version configured for it. It is a pure
// function of (config, bytes): it holds no connection or session state.
type Codec struct {
	cipher *aesCipher
}

// NewCodec builds a Codec for the given 16-byte AES key.
func NewCodec(key []byte) (*Codec, error) {
	c, err := newAESCipher(key)
	if err != nil {
		return nil, err
	}
	return &Codec{cipher: c}, nil
}

// Pack serializes command under sequenceNumber into a complete wire frame.
func (c *Codec) Pack(sequenceNumber int, command Command) ([]byte, error) {
	payload := command.payload()
	if payload == nil {
		payload = Values{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, newEncodeError(err.Error())
	}
	encrypted := c.cipher.encrypt(encoded)

	var fullPayload []byte
	if command.Kind() == KindUpdate {
		fullPayload = make([]byte, 0, len(versionHeader)+len(encrypted))
		fullPayload = append(fullPayload, versionHeader...)
		fullPayload = append(fullPayload, encrypted...)
	} else {
		fullPayload = encrypted
	}

	cmdCode, ok := commandCodes[command.Kind()]
	if !ok {
		return nil, newEncodeError("unknown command kind")
	}

	data := make([]byte, headerLen, headerLen+len(fullPayload)+endLen)
	binary.BigEndian.PutUint32(data[0:4], wirePrefix)
	binary.BigEndian.PutUint32(data[4:8], uint32(sequenceNumber))
	binary.BigEndian.PutUint32(data[8:12], uint32(cmdCode))
	binary.BigEndian.PutUint32(data[12:16], uint32(len(fullPayload)+endLen))
	data = append(data, fullPayload...)

	sum := crc32.ChecksumIEEE(data)
	tail := make([]byte, endLen)
	binary.BigEndian.PutUint32(tail[0:4], sum)
	binary.BigEndian.PutUint32(tail[4:8], wireSuffix)
	data = append(data, tail...)
	return data, nil
}

var commandCodes = map[Kind]int{
	KindUpdate:    7,
	KindHeartbeat: 9,
	KindState:     10,
}

// commandKindByCode resolves the Kind a Pending entry for an inbound
// response should be matched against. Status responses (code 8) are
// device-initiated pushes and never correlate to a Pending request.
var commandKindByCode = map[uint32]Kind{
	7:  KindUpdate,
	8:  KindStatus,
	9:  KindHeartbeat,
	10: KindState,
}

// Unpack decodes a single complete wire frame (as split by Separator) into
// its sequence number, Response, and the Kind of the command it answers
// (empty for Status, which answers no outbound command). Any trailing bytes
// beyond the frame's declared length are returned in remaining.
func (c *Codec) Unpack(data []byte) (sequenceNumber int, resp Response, requestKind Kind, remaining []byte, err error) {
	if len(data) < headerLen {
		return 0, nil, 0, nil, newDecodeError("not enough data for header")
	}
	prefix := binary.BigEndian.Uint32(data[0:4])
	if prefix != wirePrefix {
		return 0, nil, 0, nil, newDecodeError("incorrect prefix")
	}
	seq := binary.BigEndian.Uint32(data[4:8])
	cmdCode := binary.BigEndian.Uint32(data[8:12])
	payloadLength := binary.BigEndian.Uint32(data[12:16])

	kind, known := commandKindByCode[cmdCode]
	if !known {
		return 0, nil, 0, nil, newDecodeError("unknown response command code")
	}

	if payloadLength < returnCodeLen+endLen {
		return 0, nil, 0, nil, newDecodeError("payload not long enough")
	}
	if uint32(len(data)) < uint32(headerLen)+payloadLength {
		return 0, nil, 0, nil, newDecodeError("not enough data for declared payload")
	}

	frameEnd := headerLen + int(payloadLength)
	remaining = data[frameEnd:]
	frame := data[:frameEnd]

	tail := frame[len(frame)-endLen:]
	suffix := binary.BigEndian.Uint32(tail[4:8])
	if suffix != wireSuffix {
		return 0, nil, 0, nil, newDecodeError("incorrect suffix")
	}
	// CRC is intentionally ignored on decode, per protocol contract.

	returnCode := binary.BigEndian.Uint32(frame[headerLen : headerLen+returnCodeLen])
	body := frame[headerLen+returnCodeLen : len(frame)-endLen]
	if len(body) >= len(versionHeader) && string(body[:3]) == "3.3" {
		body = body[len(versionHeader):]
	}

	var respErr error
	var payload map[string]any
	switch {
	case returnCode != 0:
		respErr = &ResponseError{Message: string(body)}
	case len(body) > 0:
		decrypted, derr := c.cipher.decrypt(body)
		if derr != nil {
			return 0, nil, 0, nil, newDecodeError("could not decrypt payload: " + derr.Error())
		}
		if len(decrypted) > 0 {
			if jerr := json.Unmarshal(decrypted, &payload); jerr != nil {
				return 0, nil, 0, nil, newDecodeError("could not parse payload as json: " + jerr.Error())
			}
		}
	}

	switch kind {
	case KindHeartbeat:
		resp = HeartbeatResponse{baseResponse{kind: kind, err: respErr}}
	case KindUpdate:
		resp = UpdateResponse{baseResponse{kind: kind, err: respErr}}
	case KindStatus:
		resp = newStatusResponse(kind, payload, respErr)
	case KindState:
		resp = StateResponse{newStatusResponse(kind, payload, respErr)}
	}

	requestKind = kind
	if kind == KindStatus {
		requestKind = 0 // no corresponding outbound command
	}
	return int(seq), resp, requestKind, remaining, nil
}
