package server

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/quickpoll/quickpoll-server/poll"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message types exchanged with the client.
const (
	TypeCreatePoll  = "CREATE_POLL"
	TypeGetState    = "GET_STATE"
	TypeVote        = "VOTE"
	TypeStateUpdate = "STATE_UPDATE"
	TypeError       = "ERROR"
)

// Rejection codes carried by ERROR messages.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidPoll    = "INVALID_POLL"
	CodeAlreadyCreated = "ALREADY_CREATED"
	CodePollNotCreated = "POLL_NOT_CREATED"
	CodeInvalidOption  = "INVALID_OPTION"
	CodeAlreadyVoted   = "ALREADY_VOTED"
)

// ClientMessage is the union of everything a client may send. Type
// decides which fields are meaningful.
type ClientMessage struct {
	Type        string   `json:"type"`
	Question    string   `json:"question,omitempty"`
	Options     []string `json:"options,omitempty"`
	OptionIndex *int     `json:"optionIndex,omitempty"`
	VoterID     string   `json:"voterId,omitempty"`
}

// StateUpdate is the snapshot broadcast after every accepted mutation
// and on attach. Data is null while the poll awaits its creator.
type StateUpdate struct {
	Type string      `json:"type"`
	Data *poll.State `json:"data"`
}

// ErrorMessage is sent only to the session whose request was rejected.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// EncodeState wraps a snapshot in a STATE_UPDATE envelope. Used as the
// room encoder so a broadcast serializes once for all sessions.
func EncodeState(st *poll.State) ([]byte, error) {
	return json.Marshal(StateUpdate{Type: TypeStateUpdate, Data: st})
}

// errorCode maps a room operation error to its wire code.
func errorCode(err error) string {
	switch errors.Cause(err) {
	case poll.ErrInvalidPoll:
		return CodeInvalidPoll
	case poll.ErrAlreadyCreated:
		return CodeAlreadyCreated
	case poll.ErrPollNotCreated:
		return CodePollNotCreated
	case poll.ErrInvalidOption:
		return CodeInvalidOption
	case poll.ErrAlreadyVoted:
		return CodeAlreadyVoted
	default:
		return CodeInvalidRequest
	}
}
