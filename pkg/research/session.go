package research

import (
	"context"
	"sync"

	"github.com/papercomputeco/researcher/pkg/llm"
)

// DefaultMaxHistory is the number of turns a Session remembers.
const DefaultMaxHistory = 10

// Turn is one remembered question and its answer.
type Turn struct {
	Question string
	Answer   string
}

// Session is a conversation. Every turn retrieves fresh excerpts; earlier
// questions and answers are sent as history so follow-ups make sense.
type Session struct {
	researcher *Researcher
	maxTurns   int

	mu    sync.Mutex
	turns []Turn
	last  *Answer
}

// NewSession starts a conversation remembering at most maxTurns turns.
func (r *Researcher) NewSession(maxTurns int) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxHistory
	}
	return &Session{researcher: r, maxTurns: maxTurns}
}

// Ask answers question with the session history. Failed turns are not
// remembered.
func (s *Session) Ask(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	opts.History = s.History()

	answer, err := s.researcher.Ask(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Question: answer.Question, Answer: answer.Text})
	if over := len(s.turns) - s.maxTurns; over > 0 {
		s.turns = s.turns[over:]
	}
	s.last = answer
	return answer, nil
}

// History returns the remembered turns as alternating user and assistant
// messages, oldest first.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]llm.Message, 0, 2*len(s.turns))
	for _, t := range s.turns {
		msgs = append(msgs,
			llm.NewTextMessage(llm.RoleUser, t.Question),
			llm.NewTextMessage(llm.RoleAssistant, t.Answer),
		)
	}
	return msgs
}

// Turns returns a copy of the remembered turns, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Restore replaces the history with turns, keeping only the newest ones
// that fit.
func (s *Session) Restore(turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if over := len(turns) - s.maxTurns; over > 0 {
		turns = turns[over:]
	}
	s.turns = append([]Turn(nil), turns...)
	s.last = nil
}

// Last returns the most recent answer, or nil.
func (s *Session) Last() *Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Len returns the number of remembered turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Reset forgets the conversation.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.last = nil
}
