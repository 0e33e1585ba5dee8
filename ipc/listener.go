package ipc

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eternalrp/eternalrp/log"
	"github.com/eternalrp/eternalrp/metrics"
)

// ConnState is the listener's connection lifecycle state.
type ConnState int32

// Lifecycle states. Any step's failure routes back to StateDisconnected.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateHandshaking
	StateSubscribed
)

// String returns the lowercase state name for logging and status output.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Backoff and polling intervals for the listener loop.
const (
	// NoEndpointWait is the retry interval when no endpoint was found.
	// Absence of the peer is cheap to re-check less often than a broken
	// live connection.
	NoEndpointWait = 10 * time.Second
	// ReconnectWait is the retry interval after a live connection broke.
	ReconnectWait = 5 * time.Second
	// EventReadTimeout is the per-iteration frame read window inside the
	// event loop; expiry is not an error, the loop continues.
	EventReadTimeout = 2 * time.Second
)

// ListenerConfig configures the event listener.
type ListenerConfig struct {
	// ClientID is the application identity sent in the handshake (required).
	ClientID string
	// OnJoin receives the raw join secret from ACTIVITY_JOIN events.
	// Invoked in a detached goroutine; a panicking handler is recovered
	// and logged and never breaks the event loop.
	OnJoin func(secret string)
	// Logger defaults to a component logger when nil.
	Logger *log.Logger
	// Collector receives listener counters; nil disables metrics.
	Collector *metrics.Collector

	// NoEndpointWait/ReconnectWait/ReadTimeout override the package
	// defaults; zero values keep them. Tests shrink these.
	NoEndpointWait time.Duration
	ReconnectWait  time.Duration
	ReadTimeout    time.Duration

	// discover overrides endpoint discovery (test seam).
	discover func() (net.Conn, int, error)
}

// Listener owns a dedicated event connection to the peer: it discovers the
// endpoint, runs the setup protocol, dispatches inbound events, and applies
// reconnect backoff. The connection handle is owned exclusively by the
// listener goroutine; invite writes happen on that same goroutine.
type Listener struct {
	cfg      ListenerConfig
	log      *log.Logger
	mc       *metrics.Collector
	discover func() (net.Conn, int, error)

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewListener validates the config and creates a listener.
// A missing client id is rejected here, before any loop starts.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("listener requires a client id")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("ipc.listener")
	}
	if cfg.NoEndpointWait <= 0 {
		cfg.NoEndpointWait = NoEndpointWait
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = ReconnectWait
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = EventReadTimeout
	}
	disc := cfg.discover
	if disc == nil {
		disc = Discover
	}
	return &Listener{
		cfg:      cfg,
		log:      cfg.Logger,
		mc:       cfg.Collector,
		discover: disc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// State returns the current connection state.
func (l *Listener) State() ConnState {
	return ConnState(l.state.Load())
}

// Start launches the listener loop.
func (l *Listener) Start() {
	go l.run()
}

// Stop signals cooperative shutdown and waits for the loop to exit.
// Every wait point observes the stop signal, so shutdown is bounded by the
// longest configured wait.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// stopped reports whether shutdown has been requested.
func (l *Listener) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// wait sleeps for d or until shutdown, whichever comes first.
func (l *Listener) wait(d time.Duration) {
	select {
	case <-l.stop:
	case <-time.After(d):
	}
}

func (l *Listener) setState(s ConnState) {
	l.state.Store(int32(s))
}

// run is the reconnect state machine:
// Disconnected -> Connecting -> Handshaking -> Subscribed -> event loop,
// with any failure routing back to Disconnected.
func (l *Listener) run() {
	defer close(l.done)
	defer l.setState(StateDisconnected)

	for !l.stopped() {
		l.setState(StateDisconnected)

		l.setState(StateConnecting)
		conn, index, err := l.discover()
		if err != nil || conn == nil {
			l.setState(StateDisconnected)
			l.log.Debug("no endpoint found, retrying",
				zap.Duration("wait", l.cfg.NoEndpointWait))
			l.wait(l.cfg.NoEndpointWait)
			continue
		}
		l.log.Debug("endpoint opened", zap.Int("index", index))

		l.setState(StateHandshaking)
		if err := Setup(conn, l.cfg.ClientID); err != nil {
			l.mc.IncHandshakeErrors()
			l.log.Debug("connection setup failed", zap.Error(err))
			_ = conn.Close()
			l.setState(StateDisconnected)
			l.wait(l.cfg.ReconnectWait)
			continue
		}
		l.setState(StateSubscribed)
		l.log.Debug("subscribed to join events")

		err = l.eventLoop(conn)
		_ = conn.Close()
		l.setState(StateDisconnected)
		if l.stopped() {
			return
		}
		l.mc.IncReconnects()
		l.log.Debug("event loop ended, reconnecting",
			zap.Error(err), zap.Duration("wait", l.cfg.ReconnectWait))
		l.wait(l.cfg.ReconnectWait)
	}
}

// eventLoop reads and dispatches frames until the connection breaks or
// shutdown is requested. A read timeout is not an error. A single bad frame
// is discarded; the loop keeps reading.
func (l *Listener) eventLoop(conn net.Conn) error {
	for !l.stopped() {
		_, env, err := ReadFrame(conn, l.cfg.ReadTimeout)
		if err != nil {
			if IsRecoverable(err) {
				l.mc.IncFramesDiscarded()
				l.log.Debug("discarding bad frame", zap.Error(err))
				continue
			}
			return err
		}
		if env == nil {
			// No event within the window.
			continue
		}
		l.mc.IncFramesRead()
		l.dispatch(conn, env)
	}
	return nil
}

// dispatch handles a single decoded inbound envelope. Unknown shapes are
// ignored. Invite writes stay on the loop goroutine to avoid concurrent use
// of the connection handle.
func (l *Listener) dispatch(conn net.Conn, env *Envelope) {
	switch env.Evt {
	case EvtActivityJoin:
		secret := env.JoinSecret()
		if secret == "" {
			return
		}
		l.mc.IncJoinEvents()
		l.log.Info("join event received", zap.Int("secret_len", len(secret)))
		if l.cfg.OnJoin != nil {
			// Off the dispatch path: a slow or failing handler must
			// not stall frame reading.
			go l.invokeJoin(secret)
		}

	case EvtActivityJoinRequest:
		id, username := env.JoinRequestUser()
		if id == "" {
			return
		}
		l.mc.IncJoinRequests()
		l.log.Info("auto-accepting join request", zap.String("user", username))
		invite := Command{
			Cmd:   CmdSendInvite,
			Args:  InviteArgs{UserID: id},
			Nonce: NewNonce(),
		}
		if err := WriteFrame(conn, OpFrame, invite); err != nil {
			l.log.Warn("invite send failed", zap.Error(err))
			return
		}
		l.mc.IncInvitesSent()
	}
}

// invokeJoin runs the join callback, recovering panics so a broken handler
// cannot take down the process.
func (l *Listener) invokeJoin(secret string) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("join handler panicked", zap.Any("panic", r))
		}
	}()
	l.cfg.OnJoin(secret)
}
