// Package presence converts polled track snapshots into a rate-limited,
// flicker-free sequence of remote presence updates, and encodes/decodes the
// join secret a remote peer uses to resume the same playback position.
package presence

import (
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/eternalrp/eternalrp/ipc"
	"github.com/eternalrp/eternalrp/log"
)

// Sink is the remote presence surface consumed by the update engine.
// All operations are fire-and-forget from the engine's perspective:
// failures are logged by the caller, never propagated further up.
type Sink interface {
	// Connect establishes the sink's own connection to the peer.
	Connect() error
	// Update pushes an activity to the remote display.
	Update(activity *ipc.Activity) error
	// Clear removes the displayed status. Must be idempotent.
	Clear() error
	// Close clears and releases the connection.
	Close() error
}

// RPCSink publishes activities over a dedicated protocol connection,
// separate from the event listener's connection. The poll loop owns it;
// no other goroutine touches the handle.
type RPCSink struct {
	clientID string
	pid      int
	logger   *log.Logger
	discover func() (net.Conn, int, error)

	mu   sync.Mutex
	conn net.Conn
}

// NewRPCSink creates a sink for the given application identity.
func NewRPCSink(clientID string) *RPCSink {
	return &RPCSink{
		clientID: clientID,
		pid:      os.Getpid(),
		logger:   log.NewLogger("presence.sink"),
		discover: ipc.Discover,
	}
}

// Connect discovers the peer endpoint and performs the handshake.
// Absence of the peer daemon is reported as a sink error so the caller can
// retry on a later tick.
func (s *RPCSink) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *RPCSink) connectLocked() error {
	if s.conn != nil {
		return nil
	}
	conn, index, err := s.discover()
	if err != nil {
		return ipc.NewProtoError(ipc.ErrSink, "connect", err)
	}
	if conn == nil {
		return ipc.NewProtoError(ipc.ErrSink, "connect", nil)
	}
	if err := ipc.PerformHandshake(conn, s.clientID); err != nil {
		_ = conn.Close()
		return ipc.NewProtoError(ipc.ErrSink, "connect", err)
	}
	s.logger.Debug("sink connected", zap.Int("endpoint", index))
	s.conn = conn
	return nil
}

// Update sends SET_ACTIVITY with the given activity. A dead handle is
// recreated on the way in; a failed write tears the handle down so the next
// call reconnects.
func (s *RPCSink) Update(activity *ipc.Activity) error {
	return s.setActivity(activity)
}

// Clear sends SET_ACTIVITY with a null activity, removing the status.
// Clearing while disconnected is a no-op.
func (s *RPCSink) Clear() error {
	s.mu.Lock()
	connected := s.conn != nil
	s.mu.Unlock()
	if !connected {
		return nil
	}
	return s.setActivity(nil)
}

func (s *RPCSink) setActivity(activity *ipc.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(); err != nil {
		return err
	}

	cmd := ipc.Command{
		Cmd:   ipc.CmdSetActivity,
		Args:  ipc.ActivityArgs{PID: s.pid, Activity: activity},
		Nonce: ipc.NewNonce(),
	}
	if err := ipc.WriteFrame(s.conn, ipc.OpFrame, cmd); err != nil {
		s.teardownLocked()
		return ipc.NewProtoError(ipc.ErrSink, "set_activity", err)
	}

	// The peer acks every SET_ACTIVITY; the content is unused but draining
	// it keeps the stream aligned. Decode failures are tolerated.
	if _, _, err := ipc.ReadFrame(s.conn, ipc.SubscribeTimeout); err != nil && !ipc.IsRecoverable(err) {
		s.teardownLocked()
		return ipc.NewProtoError(ipc.ErrSink, "set_activity", err)
	}
	return nil
}

func (s *RPCSink) teardownLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close clears the displayed status and drops the connection.
func (s *RPCSink) Close() error {
	_ = s.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	return nil
}

// Verify RPCSink implements the sink interface.
var _ Sink = (*RPCSink)(nil)
