package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-server/room"
	"github.com/quickpoll/quickpoll-server/utils"
)

const heartbeatInterval = 60 * time.Second

// The client runs every frame through JSON.parse, so the keepalive has
// to be a JSON message, not a bare token.
const heartbeatMsg = `{"type":"HEARTBEAT"}`

// session is one participant connection. The transport read loop,
// the write pump and room broadcasts all hand payloads through the
// outbound queue, so a stalled peer never blocks its room.
type session struct {
	id   string
	room *room.Room

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newSession(buffer int) *session {
	return &session{
		id:   uuid.NewString(),
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (s *session) ID() string {
	return s.id
}

// Send queues a payload without blocking. A full queue or a closed
// session returns false, which makes the room drop this session.
func (s *session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- payload:
		return true
	default:
		s.shutdown()
		return false
	}
}

func (s *session) shutdown() {
	s.once.Do(func() { close(s.done) })
}

func (s *session) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Errorf("session=%s, marshal err=%v", s.id, err)
		return
	}
	s.Send(payload)
}

func (s *session) sendError(code, message string) {
	s.sendJSON(ErrorMessage{Type: TypeError, Code: code, Message: message})
}

// handle dispatches one inbound frame to its room operation. Rejections
// go back to this session only; accepted mutations reach every session
// through the room broadcast. A session that has shut down is terminal:
// frames still in flight from its reader are discarded.
func (s *session) handle(raw []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	msg := &ClientMessage{}
	if err := json.Unmarshal(raw, msg); err != nil {
		s.sendError(CodeInvalidRequest, "malformed message")
		return
	}

	switch msg.Type {
	case TypeCreatePoll:
		if _, err := s.room.Create(msg.Question, msg.Options); err != nil {
			s.sendError(errorCode(err), err.Error())
		}
	case TypeGetState:
		payload, err := EncodeState(s.room.State())
		if err != nil {
			log.Errorf("session=%s, encode err=%v", s.id, err)
			return
		}
		s.Send(payload)
	case TypeVote:
		if msg.OptionIndex == nil || msg.VoterID == "" {
			s.sendError(CodeInvalidRequest, "vote needs optionIndex and voterId")
			return
		}
		if _, err := s.room.Vote(msg.VoterID, *msg.OptionIndex); err != nil {
			s.sendError(errorCode(err), err.Error())
		}
	default:
		s.sendError(CodeInvalidRequest, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// writePump is the only goroutine writing to the transport. It drains
// the outbound queue and keeps idle connections alive with a heartbeat.
// Closing the conn on the way out unblocks the read loop, so a shutdown
// from any side actually disconnects the client.
func (s *session) writePump(c *websocket.Conn) {
	defer c.Close()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.out:
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.WriteMessage(websocket.TextMessage, utils.S2B(heartbeatMsg)); err != nil {
				s.shutdown()
				return
			}
		case <-s.done:
			return
		}
	}
}

// handleSocket runs for the lifetime of one upgraded connection. The
// room is resolved from the path code, created on first reference.
func (s *Server) handleSocket(c *websocket.Conn) {
	code := c.Params("code")

	sess := newSession(s.sendBuffer)

	// A sweep can close the room between lookup and attach; resolving
	// again always terminates because a fresh room is never closed.
	var rm *room.Room
	for {
		rm = s.registry.GetOrCreate(code)
		err := rm.Attach(sess)
		if err == nil {
			break
		}
		if errors.Cause(err) != room.ErrClosed {
			log.Errorf("session=%s, attach err=%v", sess.id, err)
			return
		}
	}
	sess.room = rm

	log.Debugf("session=%s attached, room=%s", sess.id, code)

	go sess.writePump(c)

	defer func() {
		rm.Detach(sess)
		sess.shutdown()
		log.Debugf("session=%s detached, room=%s", sess.id, code)
	}()

	for {
		mt, raw, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		sess.handle(raw)
	}
}
