// Package programs implements the scheduled content engine: multi-day
// tutorials and marathons loaded from a spreadsheet and delivered post by
// post through immediate, button and delay triggers.
package programs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TriggerType defines how a post is released to the user.
type TriggerType string

const (
	// TriggerImmediate posts are sent as soon as the previous step finishes.
	TriggerImmediate TriggerType = "immediate"
	// TriggerButton posts wait for the user to press the continue button.
	TriggerButton TriggerType = "button"
	// TriggerDelay posts are sent after a fixed pause ("10m", "2h").
	TriggerDelay TriggerType = "delay"
)

// Post is one content unit of a program.
type Post struct {
	ProgramID    string
	Day          int
	PostID       int
	Trigger      TriggerType
	TriggerValue string
	Text         string
	ImageURL     string
	PollQuestion string
	PollOptions  []string
	PollCorrect  int
}

// IsPoll reports whether the post renders as a Telegram poll.
func (p Post) IsPoll() bool {
	return p.PollQuestion != "" && len(p.PollOptions) >= 2
}

// Delay parses the trigger value of a delay post.
func (p Post) Delay() (time.Duration, error) {
	return ParseDelay(p.TriggerValue)
}

// ParseDelay parses "Nm" (minutes) or "Nh" (hours) delay notation.
func ParseDelay(value string) (time.Duration, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if len(v) < 2 {
		return 0, fmt.Errorf("programs: bad delay %q", value)
	}
	n, err := strconv.Atoi(v[:len(v)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("programs: bad delay %q", value)
	}
	switch v[len(v)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	}
	return 0, fmt.Errorf("programs: bad delay %q", value)
}

// Schedule holds every program's posts, ordered by (day, post id).
type Schedule struct {
	byProgram map[string][]Post
}

// NewSchedule groups and orders posts per program.
func NewSchedule(posts []Post) Schedule {
	byProgram := make(map[string][]Post)
	for _, p := range posts {
		byProgram[p.ProgramID] = append(byProgram[p.ProgramID], p)
	}
	for id := range byProgram {
		list := byProgram[id]
		sort.Slice(list, func(i, j int) bool {
			if list[i].Day != list[j].Day {
				return list[i].Day < list[j].Day
			}
			return list[i].PostID < list[j].PostID
		})
		byProgram[id] = list
	}
	return Schedule{byProgram: byProgram}
}

// Posts returns the ordered posts of a program.
func (s Schedule) Posts(programID string) []Post {
	return s.byProgram[programID]
}

// Find locates a post by id inside a program.
func (s Schedule) Find(programID string, postID int) (Post, bool) {
	for _, p := range s.byProgram[programID] {
		if p.PostID == postID {
			return p, true
		}
	}
	return Post{}, false
}

// Next returns the post following the given one in delivery order.
func (s Schedule) Next(programID string, postID int) (Post, bool) {
	list := s.byProgram[programID]
	for i, p := range list {
		if p.PostID == postID {
			if i+1 < len(list) {
				return list[i+1], true
			}
			return Post{}, false
		}
	}
	return Post{}, false
}

// First returns the entry post of a program: day one, immediate trigger.
func (s Schedule) First(programID string) (Post, bool) {
	for _, p := range s.byProgram[programID] {
		if p.Day == 1 && p.Trigger == TriggerImmediate {
			return p, true
		}
	}
	return Post{}, false
}

// Library names the known programs and their kinds.
type Library struct {
	titles    map[string]string
	tutorials map[string]bool
}

// NewLibrary builds a library from configured id -> title maps.
func NewLibrary(tutorials, marathons map[string]string) Library {
	lib := Library{
		titles:    make(map[string]string, len(tutorials)+len(marathons)),
		tutorials: make(map[string]bool, len(tutorials)),
	}
	for id, title := range tutorials {
		lib.titles[id] = title
		lib.tutorials[id] = true
	}
	for id, title := range marathons {
		lib.titles[id] = title
	}
	return lib
}

// Title resolves a program title.
func (l Library) Title(id string) (string, bool) {
	t, ok := l.titles[id]
	return t, ok
}

// IsTutorial reports whether completing the program launches the quiz.
func (l Library) IsTutorial(id string) bool {
	return l.tutorials[id]
}

// IDs lists known program ids in stable order.
func (l Library) IDs() []string {
	ids := make([]string, 0, len(l.titles))
	for id := range l.titles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
