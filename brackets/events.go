package brackets

import "encoding/json"

// Client → server events. Every one is answered with an ack frame.
const (
	EventUserJoin        = "push:user:join"
	EventItemAdd         = "push:item:add"
	EventItemUpdate      = "push:item:update"
	EventTitleUpdate     = "push:title:update"
	EventOwnerSet        = "push:owner:set"
	EventTournamentStart = "push:tournament:start"
	EventVoteCast        = "push:vote:cast"
)

// Server → client events.
const (
	EmitInit        = "init"
	EmitUserJoin    = "user:join"
	EmitUsersOnline = "users:setOnline"
	EmitSetOwnerID  = "bracket:setOwnerId"
	EmitSetCover    = "bracket:setCover"
	EmitItemAdd     = "item:add"
	EmitItemUpdate  = "item:update"
	EmitTitleUpdate = "title:update"
	EmitPairingsSet = "pairings:set"
	EmitVoteUpdate  = "vote:update"
	EmitAck         = "ack"
)

// Acknowledgement statuses.
const (
	StatusOK        = "ok"
	StatusNoBracket = "noBracket"
	StatusNotJoined = "notJoined"
	StatusInvalid   = "invalid"
	StatusForbidden = "forbidden"
	StatusError     = "error"
)

// InboundMessage is a client frame.
type InboundMessage struct {
	Type    string          `json:"type"`
	Ack     string          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WebSocketMessage struct {
	Type    string      `json:"type"`          // имя события, например "item:add" или "ack"
	Ack     string      `json:"ack,omitempty"` // только для подтверждений
	Payload interface{} `json:"payload"`
}

// AckMessage answers the client frame carrying ack with a status string.
func AckMessage(ack, status string) WebSocketMessage {
	return WebSocketMessage{Type: EmitAck, Ack: ack, Payload: status}
}
