package ipc

import (
	"errors"
	"io"
	"net"
	"time"
)

// Endpoint discovery constants. The peer exposes one live endpoint among a
// fixed set of well-known names; only the lowest live index matters.
const (
	// EndpointCount is the number of well-known endpoint names probed.
	EndpointCount = 10
	// endpointBase is the well-known endpoint name prefix; the probe
	// appends an index 0..EndpointCount-1.
	endpointBase = "discord-ipc-"
)

// Timeouts applied by the transport primitives.
const (
	// DialTimeout bounds a single endpoint probe.
	DialTimeout = 2 * time.Second
	// bodyReadTimeout bounds the body read after a header has arrived.
	// A peer that sends a header but stalls mid-body is broken.
	bodyReadTimeout = 5 * time.Second
	// writeTimeout bounds a frame write.
	writeTimeout = 5 * time.Second
)

// Discover probes the well-known endpoints in index order and returns the
// first that opens for bidirectional I/O, along with its index.
//
// Returns (nil, -1, nil) when no endpoint opens: that is the expected
// outcome when the peer daemon is not running, not an error.
func Discover() (net.Conn, int, error) {
	for i := 0; i < EndpointCount; i++ {
		conn, err := dialEndpoint(i, DialTimeout)
		if err != nil {
			continue
		}
		return conn, i, nil
	}
	return nil, -1, nil
}

// EndpointProbe is one well-known endpoint's diagnostic probe outcome.
type EndpointProbe struct {
	Index     int    `json:"index"`
	Reachable bool   `json:"reachable"`
	Handshook bool   `json:"handshake"`
	Error     string `json:"error,omitempty"`
}

// ProbeEndpoints dials every well-known endpoint and attempts a handshake on
// each that opens. Diagnostic only: the normal path stops at the first live
// endpoint, this one reports all of them.
func ProbeEndpoints(clientID string) []EndpointProbe {
	probes := make([]EndpointProbe, 0, EndpointCount)
	for i := 0; i < EndpointCount; i++ {
		p := EndpointProbe{Index: i}
		conn, err := dialEndpoint(i, DialTimeout)
		if err == nil {
			p.Reachable = true
			if err := PerformHandshake(conn, clientID); err != nil {
				p.Error = err.Error()
			} else {
				p.Handshook = true
			}
			_ = conn.Close()
		}
		probes = append(probes, p)
	}
	return probes
}

// ReadFrame polls for a frame header within timeout.
//
// Deadline expiry before any header byte arrives returns (0, nil, nil):
// the caller treats "no event now" as a normal loop continuation. Once the
// header arrives, the body is read to exactly the declared length; a partial
// read at either stage is a transport failure, never a silent truncation.
// An unparseable body returns a recoverable decode error (see IsRecoverable).
func ReadFrame(conn net.Conn, timeout time.Duration) (Opcode, *Envelope, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, NewProtoError(ErrTransport, "read_frame", err)
	}

	var header [HeaderSize]byte
	n, err := io.ReadFull(conn, header[:])
	if err != nil {
		if n == 0 && isTimeout(err) {
			// No event within the window.
			return 0, nil, nil
		}
		return 0, nil, NewProtoError(ErrTransport, "read_frame", err)
	}

	op, length, err := DecodeHeader(header[:])
	if err != nil {
		return 0, nil, err
	}

	body := make([]byte, length)
	if length > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(bodyReadTimeout)); err != nil {
			return 0, nil, NewProtoError(ErrTransport, "read_frame", err)
		}
		if _, err := io.ReadFull(conn, body); err != nil {
			return 0, nil, NewProtoError(ErrTransport, "read_frame", err)
		}
	}

	env, err := DecodeBody(body, length)
	if err != nil {
		return 0, nil, err
	}
	return op, env, nil
}

// WriteFrame writes header+body as one logical operation.
// A short write is a transport failure; no partial-write retry is attempted.
func WriteFrame(conn net.Conn, op Opcode, msg any) error {
	buf, err := Encode(op, msg)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return NewProtoError(ErrTransport, "write_frame", err)
	}
	n, err := conn.Write(buf)
	if err != nil {
		return NewProtoError(ErrTransport, "write_frame", err)
	}
	if n != len(buf) {
		return NewProtoError(ErrTransport, "write_frame",
			errors.New("short write"))
	}
	return nil
}

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
