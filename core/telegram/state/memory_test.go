package state

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	sender *tele.User
	store  map[string]any
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID},
		store:  make(map[string]any),
	}
}

func (f *fakeContext) Sender() *tele.User  { return f.sender }
func (f *fakeContext) Chat() *tele.Chat    { return nil }
func (f *fakeContext) Update() tele.Update { return tele.Update{} }
func (f *fakeContext) Get(key string) any  { return f.store[key] }
func (f *fakeContext) Set(key string, v any) {
	f.store[key] = v
}

func TestManagerLifecycle(t *testing.T) {
	m := NewMemoryManager()

	if m.InProgress(1) {
		t.Fatal("fresh user must not be in progress")
	}
	if got := m.GetState(1); got != StateIdle {
		t.Fatalf("GetState = %q, want idle", got)
	}

	session := m.Get(1)
	if session == nil || session.State != StateIdle {
		t.Fatal("Get must create an idle session")
	}
	session.Card = &CardSession{CardNumber: 7}

	m.SetState(1, State("card_first_impression"))
	if !m.InProgress(1) {
		t.Fatal("user with active state must be in progress")
	}
	if m.Get(1).Card.CardNumber != 7 {
		t.Fatal("payload must survive state transitions")
	}

	m.Clear(1)
	if m.InProgress(1) {
		t.Fatal("cleared user must not be in progress")
	}
	if m.Get(1).Card != nil {
		t.Fatal("Clear must drop the payload")
	}
}

func TestManagerIsolatesUsers(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, State("busy"))

	if m.InProgress(2) {
		t.Fatal("state must not leak across users")
	}
}

func TestHandleDispatchesByState(t *testing.T) {
	const st State = "test_dispatch_state"
	called := 0
	RegisterHandler(st, func(c tele.Context) error {
		called++
		return nil
	})

	m := NewMemoryManager()
	c := newFakeContext(5)

	if err := m.Handle(c); err != nil {
		t.Fatalf("Handle (idle): %v", err)
	}
	if called != 0 {
		t.Fatal("idle state must not dispatch")
	}

	m.SetState(5, st)
	if err := m.Handle(c); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if called != 1 {
		t.Fatalf("handler called %d times, want 1", called)
	}
}
