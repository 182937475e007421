package server

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickpoll/quickpoll-server/poll"
)

func TestEncodeState(t *testing.T) {
	t.Run("pending poll encodes null data", func(t *testing.T) {
		payload, err := EncodeState(nil)

		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"STATE_UPDATE","data":null}`, string(payload))
	})

	t.Run("snapshot uses the client's field names", func(t *testing.T) {
		st, err := poll.New("Pizza or Tacos?", []string{"Pizza", "Tacos"})
		require.NoError(t, err)
		require.NoError(t, st.CountVote(0))

		payload, err := EncodeState(st)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"type": "STATE_UPDATE",
			"data": {
				"question": "Pizza or Tacos?",
				"options": [
					{"text": "Pizza", "votes": 1},
					{"text": "Tacos", "votes": 0}
				],
				"totalVotes": 1
			}
		}`, string(payload))
	})
}

func TestDecodeClientMessage(t *testing.T) {
	t.Run("create poll", func(t *testing.T) {
		msg := &ClientMessage{}
		err := json.Unmarshal([]byte(`{"type":"CREATE_POLL","question":"q","options":["a","b"]}`), msg)

		require.NoError(t, err)
		assert.Equal(t, TypeCreatePoll, msg.Type)
		assert.Equal(t, "q", msg.Question)
		assert.Equal(t, []string{"a", "b"}, msg.Options)
	})

	t.Run("vote keeps index zero distinct from missing", func(t *testing.T) {
		msg := &ClientMessage{}
		err := json.Unmarshal([]byte(`{"type":"VOTE","optionIndex":0,"voterId":"a1"}`), msg)

		require.NoError(t, err)
		require.NotNil(t, msg.OptionIndex)
		assert.Equal(t, 0, *msg.OptionIndex)
		assert.Equal(t, "a1", msg.VoterID)

		missing := &ClientMessage{}
		err = json.Unmarshal([]byte(`{"type":"VOTE","voterId":"a1"}`), missing)
		require.NoError(t, err)
		assert.Nil(t, missing.OptionIndex)
	})
}

func TestErrorCode(t *testing.T) {
	for err, code := range map[error]string{
		poll.ErrInvalidPoll:    CodeInvalidPoll,
		poll.ErrAlreadyCreated: CodeAlreadyCreated,
		poll.ErrPollNotCreated: CodePollNotCreated,
		poll.ErrInvalidOption:  CodeInvalidOption,
		poll.ErrAlreadyVoted:   CodeAlreadyVoted,
		errors.New("anything else"): CodeInvalidRequest,
	} {
		assert.Equal(t, code, errorCode(err))
		assert.Equal(t, code, errorCode(errors.Wrap(err, "wrapped")))
	}
}
