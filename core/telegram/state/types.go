package state

import tele "gopkg.in/telebot.v4"

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// CardSession accumulates answers collected during a card-of-the-day dialog.
type CardSession struct {
	CardNumber      int
	InitialResource string
	RequestType     string
	RequestText     string
	FirstImpression string
	Questions       []string
	Answers         []string
	FinalResource   string
}

// ReflectionSession accumulates answers of an evening reflection dialog.
type ReflectionSession struct {
	GoodMoments string
	Gratitude   string
	HardMoments string
}

// RemindSession carries the partially collected reminder setup.
// Morning stays nil until the first answer arrives; "off" disables a slot.
type RemindSession struct {
	Morning *string
}

// QuizSession tracks progress through the post-tutorial questionnaire.
type QuizSession struct {
	Program string
	Score   int
}

// Session stores the conversation state and typed per-flow payloads for a user.
// Exactly one payload is non-nil while the matching flow is active.
type Session struct {
	State      State
	Card       *CardSession
	Reflection *ReflectionSession
	Remind     *RemindSession
	Quiz       *QuizSession
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Get returns the live session for a user, creating an idle one on demand.
	Get(userID int64) *Session
	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	InProgress(userID int64) bool
	Clear(userID int64)

	// Handle dispatches the update to the handler registered for the
	// user's current state.
	Handle(c tele.Context) error
}
