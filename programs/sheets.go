package programs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Loader produces the current content schedule.
type Loader interface {
	Load(ctx context.Context) (Schedule, error)
}

// SheetSource reads program posts from a Google Sheets worksheet.
//
// Expected columns: program_id, day, post_id, trigger_type, trigger_value,
// text, image_url, poll_question, poll_options ("|"-separated), poll_correct.
type SheetSource struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheetSource builds a loader authorized by a service-account file.
func NewSheetSource(ctx context.Context, credentialsFile, spreadsheetID, readRange string) (*SheetSource, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("programs: sheets service: %w", err)
	}
	return &SheetSource{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}, nil
}

// Load fetches and parses the worksheet. Rows that cannot be parsed are
// skipped; order within the result is normalized by NewSchedule.
func (s *SheetSource) Load(ctx context.Context) (Schedule, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return Schedule{}, fmt.Errorf("programs: read sheet: %w", err)
	}

	var posts []Post
	for _, row := range resp.Values {
		post, ok := parseRow(row)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}
	return NewSchedule(posts), nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func parseRow(row []interface{}) (Post, bool) {
	programID := cell(row, 0)
	day, dayErr := strconv.Atoi(cell(row, 1))
	postID, postErr := strconv.Atoi(cell(row, 2))
	if programID == "" || dayErr != nil || postErr != nil {
		return Post{}, false
	}

	trigger := TriggerType(strings.ToLower(cell(row, 3)))
	switch trigger {
	case TriggerImmediate, TriggerButton, TriggerDelay:
	case "":
		trigger = TriggerImmediate
	default:
		return Post{}, false
	}

	post := Post{
		ProgramID:    programID,
		Day:          day,
		PostID:       postID,
		Trigger:      trigger,
		TriggerValue: cell(row, 4),
		Text:         cell(row, 5),
		ImageURL:     cell(row, 6),
		PollQuestion: cell(row, 7),
	}
	if opts := cell(row, 8); opts != "" {
		for _, o := range strings.Split(opts, "|") {
			if o = strings.TrimSpace(o); o != "" {
				post.PollOptions = append(post.PollOptions, o)
			}
		}
	}
	if correct := cell(row, 9); correct != "" {
		if n, err := strconv.Atoi(correct); err == nil {
			post.PollCorrect = n
		}
	}
	return post, true
}
