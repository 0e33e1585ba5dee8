package ipc

import (
	"errors"
	"net"
	"testing"
	"time"
)

// servePeer answers frames on the server side of a pipe like the live
// daemon: an ack for the handshake and for each subscribe command.
func servePeer(t *testing.T, server net.Conn, acks int) <-chan []*Envelope {
	t.Helper()
	received := make(chan []*Envelope, 1)
	go func() {
		var seen []*Envelope
		for i := 0; i < acks; i++ {
			_, env, err := ReadFrame(server, time.Second)
			if err != nil || env == nil {
				break
			}
			seen = append(seen, env)
			_ = WriteFrame(server, OpFrame, Command{Cmd: env.Cmd, Evt: env.Evt, Nonce: env.Nonce})
		}
		received <- seen
	}()
	return received
}

func TestPerformHandshake_Success(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := servePeer(t, server, 1)

	if err := PerformHandshake(client, "app-123"); err != nil {
		t.Fatalf("PerformHandshake failed: %v", err)
	}
	seen := <-done
	if len(seen) != 1 {
		t.Fatalf("peer saw %d frames, want 1", len(seen))
	}
}

func TestPerformHandshake_NoResponseIsTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// Peer consumes the handshake but never answers.
	go func() {
		_, _, _ = ReadFrame(server, time.Second)
	}()

	// Shrink the wait by closing the server after the frame is consumed;
	// a closed conn surfaces as transport failure, while a silent peer
	// surfaces as handshake timeout. Exercise the silent path with a
	// short-deadline read via the package default would take 5s, so
	// assert the closed-conn classification here.
	time.AfterFunc(100*time.Millisecond, func() { _ = server.Close() })

	err := PerformHandshake(client, "app-123")
	if err == nil {
		t.Fatal("expected an error from an unanswered handshake")
	}
	if !errors.Is(err, ErrTransport) && !errors.Is(err, ErrHandshakeTimeout) {
		t.Errorf("error = %v, want transport or handshake classification", err)
	}
}

func TestSetup_SequenceAndOrder(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := servePeer(t, server, 3)

	if err := Setup(client, "app-123"); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	seen := <-done
	if len(seen) != 3 {
		t.Fatalf("peer saw %d frames, want 3", len(seen))
	}
	// Frame 1 is the handshake (no cmd field in our encoding of opcode 0;
	// the peer decodes it as an envelope with empty cmd).
	if seen[0].Cmd != "" {
		t.Errorf("first frame cmd = %q, want handshake", seen[0].Cmd)
	}
	if seen[1].Cmd != CmdSubscribe || seen[1].Evt != EvtActivityJoin {
		t.Errorf("second frame = %+v, want SUBSCRIBE ACTIVITY_JOIN", seen[1])
	}
	if seen[2].Cmd != CmdSubscribe || seen[2].Evt != EvtActivityJoinRequest {
		t.Errorf("third frame = %+v, want SUBSCRIBE ACTIVITY_JOIN_REQUEST", seen[2])
	}
	if seen[1].Nonce == seen[2].Nonce {
		t.Error("subscribe nonces must be unique per request")
	}
	if len(seen[1].Nonce) != 8 {
		t.Errorf("nonce %q has length %d, want 8", seen[1].Nonce, len(seen[1].Nonce))
	}
}
