package room

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quickpoll/quickpoll-server/poll"
)

// ErrClosed is returned by Attach when the registry has already swept
// the room away. Callers should resolve the code again.
var ErrClosed = errors.New("room closed")

// Session is one attached connection. Send must not block: it either
// queues the payload and returns true, or returns false to signal the
// session is dead and should be dropped from the room.
type Session interface {
	ID() string
	Send(payload []byte) bool
}

// Encoder turns a state snapshot (nil when the poll is not yet created)
// into the wire payload shared by every session in a broadcast.
type Encoder func(st *poll.State) ([]byte, error)

// Room owns the poll state, the voter ledger and the session set for
// one code. Every operation runs under the room mutex, so mutations on
// a single room are strictly ordered.
type Room struct {
	code   string
	encode Encoder

	mtx      sync.Mutex
	closed   bool
	state    *poll.State
	voters   map[string]struct{}
	sessions map[Session]struct{}
	emptyAt  time.Time
}

func newRoom(code string, encode Encoder) *Room {
	return &Room{
		code:     code,
		encode:   encode,
		voters:   make(map[string]struct{}),
		sessions: make(map[Session]struct{}),
		emptyAt:  time.Now(),
	}
}

func (r *Room) Code() string {
	return r.code
}

// Create initializes the poll. The first writer wins; any later call
// fails with poll.ErrAlreadyCreated and leaves the state untouched.
// On success the new state is broadcast to all attached sessions.
func (r *Room) Create(question string, options []string) (*poll.State, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.state != nil {
		return nil, errors.Wrapf(poll.ErrAlreadyCreated, "code=%s", r.code)
	}

	st, err := poll.New(question, options)
	if err != nil {
		return nil, err
	}

	r.state = st
	r.broadcastLocked()
	return st.Snapshot(), nil
}

// State returns a snapshot of the current poll state, or nil if the
// creator has not sent CREATE_POLL yet.
func (r *Room) State() *poll.State {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.state.Snapshot()
}

// Vote records one vote for voterID. The ledger check, the ledger
// insert and the count increment happen in one critical section, so a
// voter can never slip through twice. A vote is permanent for the
// lifetime of the room.
func (r *Room) Vote(voterID string, optionIndex int) (*poll.State, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.state == nil {
		return nil, errors.Wrapf(poll.ErrPollNotCreated, "code=%s", r.code)
	}
	if !r.state.ValidOption(optionIndex) {
		return nil, errors.Wrapf(poll.ErrInvalidOption, "index %d out of range [0,%d)", optionIndex, len(r.state.Options))
	}
	if _, ok := r.voters[voterID]; ok {
		return nil, errors.Wrapf(poll.ErrAlreadyVoted, "voter=%s", voterID)
	}

	r.voters[voterID] = struct{}{}
	if err := r.state.CountVote(optionIndex); err != nil {
		return nil, err
	}

	r.broadcastLocked()
	return r.state.Snapshot(), nil
}

// Attach adds a session to the broadcast set and immediately pushes
// the current snapshot (null data while the poll is pending) so late
// joiners never wait for the next mutation.
func (r *Room) Attach(s Session) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return errors.Wrapf(ErrClosed, "code=%s", r.code)
	}

	r.sessions[s] = struct{}{}
	r.emptyAt = time.Time{}

	payload, err := r.encode(r.state.Snapshot())
	if err != nil {
		r.dropLocked(s)
		return errors.Wrapf(err, "room=%s, encode snapshot", r.code)
	}
	if !s.Send(payload) {
		r.dropLocked(s)
	}
	return nil
}

// Detach removes a session. The voter ledger is untouched, so a
// disconnect and rejoin never grants a second vote.
func (r *Room) Detach(s Session) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.dropLocked(s)
}

// Sessions returns the number of currently attached sessions.
func (r *Room) Sessions() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.sessions)
}

// broadcastLocked encodes the state once and pushes the identical
// payload to every session. A session whose queue is full or whose
// transport died is dropped; the rest are unaffected.
func (r *Room) broadcastLocked() {
	payload, err := r.encode(r.state.Snapshot())
	if err != nil {
		log.Errorf("room=%s, encode err=%v", r.code, err)
		return
	}

	var dead []Session
	for s := range r.sessions {
		if !s.Send(payload) {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		log.Debugf("room=%s, dropping stalled session=%s", r.code, s.ID())
		r.dropLocked(s)
	}
}

func (r *Room) dropLocked(s Session) {
	if _, ok := r.sessions[s]; !ok {
		return
	}
	delete(r.sessions, s)
	if len(r.sessions) == 0 {
		r.emptyAt = time.Now()
	}
}

// expired reports whether the room has had no sessions for longer than
// window. Called by the registry sweep.
func (r *Room) expired(now time.Time, window time.Duration) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.sessions) == 0 && !r.emptyAt.IsZero() && now.Sub(r.emptyAt) >= window
}

// close marks the room dead so a racing Attach on a stale reference
// fails instead of landing in a room the registry no longer knows.
func (r *Room) close() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.closed = true
}
