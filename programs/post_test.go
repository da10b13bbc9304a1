package programs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"10m", 10 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{" 5M ", 5 * time.Minute, false},
		{"", 0, true},
		{"m", 0, true},
		{"10", 0, true},
		{"0m", 0, true},
		{"-5m", 0, true},
		{"10s", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelay(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func testSchedule() Schedule {
	return NewSchedule([]Post{
		{ProgramID: "p", Day: 2, PostID: 10, Trigger: TriggerDelay, TriggerValue: "1h"},
		{ProgramID: "p", Day: 1, PostID: 2, Trigger: TriggerButton},
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate},
		{ProgramID: "q", Day: 1, PostID: 1, Trigger: TriggerImmediate},
	})
}

func TestScheduleOrdering(t *testing.T) {
	s := testSchedule()
	posts := s.Posts("p")
	require.Len(t, posts, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{posts[0].PostID, posts[1].PostID, posts[2].PostID})
}

func TestScheduleFirst(t *testing.T) {
	s := testSchedule()
	first, ok := s.First("p")
	require.True(t, ok)
	assert.Equal(t, 1, first.PostID)

	_, ok = s.First("missing")
	assert.False(t, ok)

	// A program whose day-one post waits on a button has no entry.
	noEntry := NewSchedule([]Post{{ProgramID: "x", Day: 1, PostID: 1, Trigger: TriggerButton}})
	_, ok = noEntry.First("x")
	assert.False(t, ok)
}

func TestScheduleNext(t *testing.T) {
	s := testSchedule()

	next, ok := s.Next("p", 1)
	require.True(t, ok)
	assert.Equal(t, 2, next.PostID)

	next, ok = s.Next("p", 2)
	require.True(t, ok)
	assert.Equal(t, 10, next.PostID)

	_, ok = s.Next("p", 10)
	assert.False(t, ok, "last post has no successor")

	_, ok = s.Next("p", 99)
	assert.False(t, ok)
}

func TestPostIsPoll(t *testing.T) {
	assert.False(t, Post{}.IsPoll())
	assert.False(t, Post{PollQuestion: "q"}.IsPoll())
	assert.False(t, Post{PollQuestion: "q", PollOptions: []string{"a"}}.IsPoll())
	assert.True(t, Post{PollQuestion: "q", PollOptions: []string{"a", "b"}}.IsPoll())
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary(
		map[string]string{"basics": "Основы"},
		map[string]string{"care": "Неделя заботы"},
	)

	title, ok := lib.Title("basics")
	require.True(t, ok)
	assert.Equal(t, "Основы", title)

	_, ok = lib.Title("nope")
	assert.False(t, ok)

	assert.True(t, lib.IsTutorial("basics"))
	assert.False(t, lib.IsTutorial("care"))
	assert.Equal(t, []string{"basics", "care"}, lib.IDs())
}

func TestParseRow(t *testing.T) {
	row := []interface{}{"p", "1", "3", "delay", "30m", "текст", "", "Вопрос?", "да|нет", "1"}
	post, ok := parseRow(row)
	require.True(t, ok)
	assert.Equal(t, "p", post.ProgramID)
	assert.Equal(t, 1, post.Day)
	assert.Equal(t, 3, post.PostID)
	assert.Equal(t, TriggerDelay, post.Trigger)
	assert.Equal(t, "30m", post.TriggerValue)
	assert.Equal(t, []string{"да", "нет"}, post.PollOptions)
	assert.Equal(t, 1, post.PollCorrect)

	_, ok = parseRow([]interface{}{"", "1", "1"})
	assert.False(t, ok, "missing program id")

	_, ok = parseRow([]interface{}{"p", "one", "1"})
	assert.False(t, ok, "bad day")

	_, ok = parseRow([]interface{}{"p", "1", "1", "weird"})
	assert.False(t, ok, "unknown trigger")

	post, ok = parseRow([]interface{}{"p", "1", "1"})
	require.True(t, ok)
	assert.Equal(t, TriggerImmediate, post.Trigger, "empty trigger defaults to immediate")
}
