package domain

import "time"

// BirthdayLayout is the canonical date format for registrant birthdays.
const BirthdayLayout = "2006-01-02"

// Registrant is an event attendee. UID is the join key across sessions, scores and lookups.
type Registrant struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Birthday     *time.Time `json:"birthday,omitempty"`
	Age          int        `json:"age"`
	InvitedBy    *string    `json:"invitedBy,omitempty"`
	Salvationist bool       `json:"salvationist"`
	MobileNumber *string    `json:"mobileNumber,omitempty"`
	UID          string     `json:"uid"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// BirthdayString formats the birthday as YYYY-MM-DD, or "" when unknown.
func (r Registrant) BirthdayString() string {
	if r.Birthday == nil {
		return ""
	}
	return r.Birthday.Format(BirthdayLayout)
}

// Principal is the authenticated game user as seen by core logic: a capability, not a snapshot.
type Principal struct {
	UID       string
	SessionID string
}

// GameSession is the server-side record behind a game login.
type GameSession struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ScoreRecord holds the points a registrant earned for one quest. One per (UID, QuestID).
type ScoreRecord struct {
	UID       string    `json:"uid"`
	QuestID   int64     `json:"questId"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LeaderboardEntry is one row of the aggregated leaderboard.
type LeaderboardEntry struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	TotalPoints int    `json:"totalPoints"`
	Rank        int    `json:"rank"`
}

// Leaderboard captures the ordered scoreboard.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SubmittedAnswer is one client-supplied answer. Only Value is trusted; the rest is echoed
// quest metadata kept for compatibility with older clients.
type SubmittedAnswer struct {
	Value          string `json:"value"`
	ValidationRule string `json:"validation_rule,omitempty"`
	InputType      string `json:"input_type,omitempty"`
	Placeholder    string `json:"placeholder,omitempty"`
	IsQuestion     *bool  `json:"is_question,omitempty"`
	Points         *int   `json:"points,omitempty"`
}

// LineResult is the evaluation outcome for a single quest line.
type LineResult struct {
	LineID         int64   `json:"line_id"`
	IsValid        bool    `json:"is_valid"`
	ErrorMessage   *string `json:"error_message"`
	ValidationRule Rule    `json:"validation_rule"`
	InputValue     string  `json:"input_value"`
}

// QuestOutcome is the result of validating a full quest attempt.
type QuestOutcome struct {
	QuestID     int64        `json:"questId"`
	Success     bool         `json:"success"`
	Results     []LineResult `json:"results"`
	TotalPoints int          `json:"totalPoints"`
}

// Errors lists one entry per line: the message for failing lines, nil for passing ones.
func (o QuestOutcome) Errors() []*string {
	out := make([]*string, len(o.Results))
	for i, r := range o.Results {
		out[i] = r.ErrorMessage
	}
	return out
}
