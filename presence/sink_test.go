package presence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/eternalrp/eternalrp/ipc"
)

// rawFrame is a decoded outbound frame as the peer saw it on the wire.
type rawFrame struct {
	op  ipc.Opcode
	msg map[string]any
}

// servePeer acks every inbound frame and forwards the raw decoded body,
// so tests can assert on fields the Envelope type does not carry.
func servePeer(server net.Conn, frames chan<- rawFrame) {
	for {
		_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
		var header [ipc.HeaderSize]byte
		if _, err := io.ReadFull(server, header[:]); err != nil {
			return
		}
		op := ipc.Opcode(binary.LittleEndian.Uint32(header[0:4]))
		body := make([]byte, binary.LittleEndian.Uint32(header[4:8]))
		if _, err := io.ReadFull(server, body); err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(body, &msg); err != nil {
			return
		}
		frames <- rawFrame{op: op, msg: msg}
		if err := ipc.WriteFrame(server, ipc.OpFrame, ipc.Command{Cmd: "DISPATCH"}); err != nil {
			return
		}
	}
}

// newTestSink wires a sink whose discovery drains the conns channel.
func newTestSink(conns chan net.Conn) *RPCSink {
	s := NewRPCSink("app-test")
	s.discover = func() (net.Conn, int, error) {
		select {
		case c := <-conns:
			return c, 0, nil
		default:
			return nil, -1, nil
		}
	}
	return s
}

func TestRPCSink_UpdateSendsSetActivity(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	frames := make(chan rawFrame, 4)
	go servePeer(server, frames)

	conns := make(chan net.Conn, 1)
	conns <- client
	s := newTestSink(conns)
	defer s.Close()

	err := s.Update(&ipc.Activity{Details: "Airbag", State: "by Radiohead"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	hs := <-frames
	if hs.op != ipc.OpHandshake {
		t.Errorf("first frame opcode = %d, want handshake", hs.op)
	}
	if hs.msg["client_id"] != "app-test" {
		t.Errorf("handshake client_id = %v", hs.msg["client_id"])
	}

	set := <-frames
	if set.op != ipc.OpFrame {
		t.Errorf("command opcode = %d, want %d", set.op, ipc.OpFrame)
	}
	if set.msg["cmd"] != ipc.CmdSetActivity {
		t.Errorf("cmd = %v, want %s", set.msg["cmd"], ipc.CmdSetActivity)
	}
	args, _ := set.msg["args"].(map[string]any)
	if args == nil {
		t.Fatalf("args missing: %v", set.msg)
	}
	if _, ok := args["pid"].(float64); !ok {
		t.Errorf("args.pid missing: %v", args)
	}
	activity, _ := args["activity"].(map[string]any)
	if activity == nil || activity["details"] != "Airbag" {
		t.Errorf("activity = %v, want details Airbag", args["activity"])
	}
}

func TestRPCSink_ClearWhileDisconnectedIsNoOp(t *testing.T) {
	s := newTestSink(make(chan net.Conn))
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear on a disconnected sink must succeed: %v", err)
	}
}

func TestRPCSink_ClearSendsNullActivity(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	frames := make(chan rawFrame, 4)
	go servePeer(server, frames)

	conns := make(chan net.Conn, 1)
	conns <- client
	s := newTestSink(conns)

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	<-frames // handshake

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	set := <-frames
	args, _ := set.msg["args"].(map[string]any)
	if args == nil {
		t.Fatalf("args missing: %v", set.msg)
	}
	if activity, present := args["activity"]; !present || activity != nil {
		t.Errorf("activity = %v, want explicit null", args["activity"])
	}
}

func TestRPCSink_NoEndpointIsSinkError(t *testing.T) {
	s := newTestSink(make(chan net.Conn))
	err := s.Update(&ipc.Activity{Details: "x"})
	if !errors.Is(err, ipc.ErrSink) {
		t.Fatalf("err = %v, want ErrSink", err)
	}
}

func TestRPCSink_ReconnectsAfterBrokenConnection(t *testing.T) {
	client1, server1 := net.Pipe()
	client2, server2 := net.Pipe()
	defer server2.Close()
	frames1 := make(chan rawFrame, 4)
	frames2 := make(chan rawFrame, 4)
	go servePeer(server1, frames1)
	go servePeer(server2, frames2)

	conns := make(chan net.Conn, 2)
	conns <- client1
	conns <- client2
	s := newTestSink(conns)
	defer s.Close()

	if err := s.Update(&ipc.Activity{Details: "first"}); err != nil {
		t.Fatalf("first Update failed: %v", err)
	}
	<-frames1 // handshake
	<-frames1 // set_activity

	// Kill the live connection; the next update must fail once, then the
	// one after reconnects through the second endpoint.
	_ = server1.Close()
	if err := s.Update(&ipc.Activity{Details: "lost"}); !errors.Is(err, ipc.ErrSink) {
		t.Fatalf("update over dead conn: err = %v, want ErrSink", err)
	}
	if err := s.Update(&ipc.Activity{Details: "second"}); err != nil {
		t.Fatalf("update after reconnect failed: %v", err)
	}
	<-frames2 // handshake
	set := <-frames2
	args, _ := set.msg["args"].(map[string]any)
	activity, _ := args["activity"].(map[string]any)
	if activity == nil || activity["details"] != "second" {
		t.Errorf("activity after reconnect = %v", args["activity"])
	}
}
