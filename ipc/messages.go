package ipc

import (
	"crypto/rand"
	"encoding/hex"
)

// Command and event names in the peer's RPC vocabulary.
const (
	CmdSubscribe   = "SUBSCRIBE"
	CmdSetActivity = "SET_ACTIVITY"
	CmdSendInvite  = "SEND_ACTIVITY_JOIN_INVITE"

	EvtActivityJoin        = "ACTIVITY_JOIN"
	EvtActivityJoinRequest = "ACTIVITY_JOIN_REQUEST"
)

// HandshakeRequest is the opcode-0 payload establishing protocol version
// and client identity. It must be the first frame on every connection.
type HandshakeRequest struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

// Command is an outbound opcode-1 payload. Nonce is required by the dialect
// but never correlated against responses; the peer associates by ordering.
type Command struct {
	Cmd   string `json:"cmd"`
	Evt   string `json:"evt,omitempty"`
	Args  any    `json:"args,omitempty"`
	Nonce string `json:"nonce"`
}

// InviteArgs addresses an auto-accept invite to a requesting user.
type InviteArgs struct {
	UserID string `json:"user_id"`
}

// ActivityArgs is the SET_ACTIVITY argument object.
type ActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"` // nil clears the presence
}

// Activity is the presence payload displayed on the remote peer.
type Activity struct {
	State      string      `json:"state,omitempty"`
	Details    string      `json:"details,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Party      *Party      `json:"party,omitempty"`
	Secrets    *Secrets    `json:"secrets,omitempty"`
}

// Timestamps anchors the remote countdown/count-up timer.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets selects the large image and its hover text.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

// Party identifies the joinable session.
type Party struct {
	ID   string `json:"id,omitempty"`
	Size [2]int `json:"size,omitempty"`
}

// Secrets carries the opaque join token handed back on ACTIVITY_JOIN.
type Secrets struct {
	Join string `json:"join,omitempty"`
}

// Envelope is the inbound opcode-1 shape. The dialect nests event-specific
// payloads under "data"; unknown shapes decode to zero values and are
// ignored rather than indexed blindly.
type Envelope struct {
	Cmd   string     `json:"cmd,omitempty"`
	Evt   string     `json:"evt,omitempty"`
	Nonce string     `json:"nonce,omitempty"`
	Data  *EventData `json:"data,omitempty"`
}

// EventData is the union of the inbound event payloads this client consumes.
type EventData struct {
	// Secret is set on ACTIVITY_JOIN.
	Secret string `json:"secret,omitempty"`
	// User is set on ACTIVITY_JOIN_REQUEST.
	User *User `json:"user,omitempty"`
}

// User identifies the peer requesting to join.
type User struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

// JoinSecret returns the join secret, or "" when this envelope is not an
// ACTIVITY_JOIN event or carries no secret.
func (e *Envelope) JoinSecret() string {
	if e == nil || e.Evt != EvtActivityJoin || e.Data == nil {
		return ""
	}
	return e.Data.Secret
}

// JoinRequestUser returns the requesting user id, or "" when this envelope
// is not an ACTIVITY_JOIN_REQUEST event or carries no user id.
func (e *Envelope) JoinRequestUser() (id, username string) {
	if e == nil || e.Evt != EvtActivityJoinRequest || e.Data == nil || e.Data.User == nil {
		return "", ""
	}
	return e.Data.User.ID, e.Data.User.Username
}

// NewNonce returns a random 8-hex-character token, unique per request.
// It exists only for protocol compliance; responses are paced by ordering,
// not nonce correlation.
func NewNonce() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
