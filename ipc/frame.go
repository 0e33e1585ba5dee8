package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Opcode tags the purpose of a frame on the wire.
type Opcode uint32

const (
	// OpHandshake is the mandatory first frame on every connection.
	OpHandshake Opcode = 0
	// OpFrame carries every command and event after the handshake.
	OpFrame Opcode = 1
)

// Frame size constants. The header is two 4-byte little-endian unsigned
// integers: opcode, then body length. The body is UTF-8 JSON.
const (
	// HeaderSize is the fixed frame header size in bytes.
	HeaderSize = 8
	// MaxBodySize bounds the body length accepted from the peer. The
	// dialect never ships bodies anywhere near this; anything larger is
	// treated as stream corruption.
	MaxBodySize = 64 * 1024
)

// Encode serializes msg as JSON and prepends the 8-byte header.
// No padding, no checksum.
func Encode(op Opcode, msg any) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, NewProtoError(ErrInvalidEncoding, "encode", err)
	}
	buf := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	return buf, nil
}

// DecodeHeader parses the 8-byte frame header.
// Fails with ErrMalformedFrame when fewer than 8 bytes are supplied, and
// when the declared length exceeds MaxBodySize.
func DecodeHeader(header []byte) (Opcode, uint32, error) {
	if len(header) < HeaderSize {
		return 0, 0, NewProtoError(ErrMalformedFrame, "decode_header",
			fmt.Errorf("got %d bytes, need %d", len(header), HeaderSize))
	}
	op := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxBodySize {
		return 0, 0, NewProtoError(ErrMalformedFrame, "decode_header",
			fmt.Errorf("body length %d exceeds maximum %d", length, MaxBodySize))
	}
	return op, length, nil
}

// DecodeBody parses a frame body into an Envelope.
// Fails with ErrMalformedFrame when the byte count disagrees with the
// declared length, and ErrInvalidEncoding when the bytes are not valid JSON.
func DecodeBody(body []byte, length uint32) (*Envelope, error) {
	if uint32(len(body)) != length {
		return nil, NewProtoError(ErrMalformedFrame, "decode_body",
			fmt.Errorf("got %d bytes, header declared %d", len(body), length))
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewProtoError(ErrInvalidEncoding, "decode_body", err)
	}
	return &env, nil
}
