package types

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which surface a scrape walks and how items are filtered
type Mode string

const (
	ModeProfile        Mode = "profile"
	ModeProfileReplies Mode = "profile-replies"
	ModeList           Mode = "list"
)

// ParseMode maps a user supplied mode name to a Mode
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeProfile, ModeProfileReplies, ModeList:
		return m, nil
	case "":
		return ModeProfile, nil
	default:
		return "", fmt.Errorf("unknown scrape mode %q", s)
	}
}

// RepliesOnly reports whether the mode keeps only replies
func (m Mode) RepliesOnly() bool { return m == ModeProfileReplies }

// IsProfile reports whether targets are account handles rather than listing URLs
func (m Mode) IsProfile() bool { return m == ModeProfile || m == ModeProfileReplies }

// Credentials are the X account used to authenticate a browser session
type Credentials struct {
	Username string `json:"auth_username"`
	Password string `json:"auth_password"`
}

// Empty reports whether either field is missing
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Username) == "" || c.Password == ""
}

// ScrapeRequest is the immutable input of one scrape job
type ScrapeRequest struct {
	Targets     []string    `json:"targets"`
	Mode        Mode        `json:"mode"`
	Keywords    string      `json:"keywords,omitempty"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Credentials Credentials `json:"-"`
}

// Validate checks the request before it is queued
func (r ScrapeRequest) Validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end are required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("end %s is before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// SplitTargets splits a comma separated target field, dropping blanks
func SplitTargets(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseWindow parses YYYY-MM-DD dates and HH:MM times in loc.
// The end bound covers its whole minute so the window stays closed.
func ParseWindow(startDate, startTime, endDate, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	if startTime == "" {
		startTime = "00:00"
	}
	if endTime == "" {
		endTime = "23:59"
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", startDate+" "+startTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q %q: %w", startDate, startTime, err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", endDate+" "+endTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q %q: %w", endDate, endTime, err)
	}
	end = end.Add(time.Minute - time.Nanosecond)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end is before start")
	}
	return start, end, nil
}

// FeedItem is one rendered feed element after extraction. It never outlives a scan.
type FeedItem struct {
	Timestamp time.Time
	Permalink string
	Author    string
	IsRepost  bool
	IsReply   bool
	ReplyTo   string
	Text      string
}

// Record is the durable unit of scrape output
type Record struct {
	Timestamp time.Time `json:"Date"`
	Link      string    `json:"Link"`
	Username  string    `json:"Username"`
}

// ScrapeResult is produced once per scrape job
type ScrapeResult struct {
	Count    int           `json:"count"`
	Elapsed  time.Duration `json:"elapsed"`
	Links    []string      `json:"links"`
	Records  []Record      `json:"records,omitempty"`
	Workbook []byte        `json:"-"`
	Mode     Mode          `json:"mode"`
}

// DocumentResult is the output of a screenshot report job
type DocumentResult struct {
	Count    int           `json:"count"`
	Elapsed  time.Duration `json:"elapsed"`
	Links    []string      `json:"links"`
	Document []byte        `json:"-"`
}

// BlockOutcome is the per-account result of a block attempt
type BlockOutcome string

const (
	OutcomeBlocked        BlockOutcome = "blocked"
	OutcomeAlreadyBlocked BlockOutcome = "already_blocked"
	OutcomeFailed         BlockOutcome = "failed"
)

// Succeeded reports whether the account ends up blocked
func (o BlockOutcome) Succeeded() bool {
	return o == OutcomeBlocked || o == OutcomeAlreadyBlocked
}

type HandleOutcome struct {
	Handle  string       `json:"handle"`
	Outcome BlockOutcome `json:"outcome"`
}

// BlockReport collects the outcomes of one block job
type BlockReport struct {
	Outcomes  []HandleOutcome `json:"outcomes"`
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Total     int             `json:"total"`
}
