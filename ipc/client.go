package ipc

import (
	"net"
	"time"
)

// Protocol pacing windows. The peer answers the handshake with a READY
// dispatch and each subscribe with an ack; the acks' contents are unused,
// they only pace the setup sequence.
const (
	// HandshakeTimeout is how long to wait for any response to opcode 0.
	HandshakeTimeout = 5 * time.Second
	// SubscribeTimeout is how long to wait for each subscribe ack.
	SubscribeTimeout = 3 * time.Second
)

// Handshake sends the opcode-0 version/identity frame and waits for any
// response frame. Absence of a response within the window is a handshake
// timeout; the connection is unusable and must be reopened.
func PerformHandshake(conn net.Conn, clientID string) error {
	req := HandshakeRequest{Version: 1, ClientID: clientID}
	if err := WriteFrame(conn, OpHandshake, req); err != nil {
		return err
	}
	_, env, err := ReadFrame(conn, HandshakeTimeout)
	if err != nil {
		if IsRecoverable(err) {
			// An unparseable ack still paces the handshake.
			return nil
		}
		return err
	}
	if env == nil {
		return NewProtoError(ErrHandshakeTimeout, "handshake", nil)
	}
	return nil
}

// SubscribeEvent sends a SUBSCRIBE command for the named event class and
// waits out the ack window. The ack content is discarded; a missing or
// undecodable ack is not an error, only transport failures are.
func SubscribeEvent(conn net.Conn, evt string) error {
	cmd := Command{Cmd: CmdSubscribe, Evt: evt, Nonce: NewNonce()}
	if err := WriteFrame(conn, OpFrame, cmd); err != nil {
		return err
	}
	_, _, err := ReadFrame(conn, SubscribeTimeout)
	if err != nil && !IsRecoverable(err) {
		return err
	}
	return nil
}

// Setup runs the mandatory connection-setup sequence on a fresh connection,
// in this exact order: handshake, subscribe ACTIVITY_JOIN, subscribe
// ACTIVITY_JOIN_REQUEST. No subscription is valid before the handshake.
func Setup(conn net.Conn, clientID string) error {
	if err := PerformHandshake(conn, clientID); err != nil {
		return err
	}
	if err := SubscribeEvent(conn, EvtActivityJoin); err != nil {
		return err
	}
	return SubscribeEvent(conn, EvtActivityJoinRequest)
}
