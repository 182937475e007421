package poll

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyCreated = errors.New("poll already created")
	ErrInvalidPoll    = errors.New("invalid poll")
	ErrPollNotCreated = errors.New("poll not created")
	ErrInvalidOption  = errors.New("invalid option")
	ErrAlreadyVoted   = errors.New("already voted")
)

const (
	MinOptions = 2
	MaxOptions = 4
)

// Option is one answer in a poll. Options are identified by their
// position; the order is fixed at creation.
type Option struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// State is the authoritative poll state pushed to clients.
// TotalVotes always equals the sum of the option counts.
type State struct {
	Question   string   `json:"question"`
	Options    []Option `json:"options"`
	TotalVotes int      `json:"totalVotes"`
}

// New validates question and option texts and returns a fresh state
// with all counts at zero. Texts are trimmed before validation.
func New(question string, options []string) (*State, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.Wrap(ErrInvalidPoll, "empty question")
	}
	if len(options) < MinOptions || len(options) > MaxOptions {
		return nil, errors.Wrapf(ErrInvalidPoll, "got %d options, want %d-%d", len(options), MinOptions, MaxOptions)
	}

	opts := make([]Option, len(options))
	for i, text := range options {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, errors.Wrapf(ErrInvalidPoll, "option %d is empty", i)
		}
		opts[i] = Option{Text: text}
	}

	return &State{
		Question: question,
		Options:  opts,
	}, nil
}

// ValidOption reports whether index refers to an existing option.
func (s *State) ValidOption(index int) bool {
	return index >= 0 && index < len(s.Options)
}

// CountVote adds one vote to the option at index.
func (s *State) CountVote(index int) error {
	if !s.ValidOption(index) {
		return errors.Wrapf(ErrInvalidOption, "index %d out of range [0,%d)", index, len(s.Options))
	}
	s.Options[index].Votes++
	s.TotalVotes++
	return nil
}

// Snapshot returns a deep copy that callers may hold on to without
// observing later mutations.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Options = make([]Option, len(s.Options))
	copy(cp.Options, s.Options)
	return &cp
}
