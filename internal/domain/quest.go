package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rule names the strategy used to judge a quest line.
type Rule string

const (
	RuleNone                  Rule = ""
	RuleRequired              Rule = "required"
	RuleSameInvitedBy         Rule = "validate_if_same_invited_by"
	RuleCode                  Rule = "validate_code"
	RuleNameExists            Rule = "validate_if_name_exist"
	RuleNameExistsSameInviter Rule = "validate_if_name_exist_same_inviter"
	RuleBirthdayIsCorrect     Rule = "validate_if_bday_is_correct"
	RuleSameBirthdayMonth     Rule = "validate_same_bday"
)

var knownRules = map[Rule]struct{}{
	RuleNone:                  {},
	RuleRequired:              {},
	RuleSameInvitedBy:         {},
	RuleCode:                  {},
	RuleNameExists:            {},
	RuleNameExistsSameInviter: {},
	RuleBirthdayIsCorrect:     {},
	RuleSameBirthdayMonth:     {},
}

// Known reports whether r is a rule the evaluator understands.
func (r Rule) Known() bool {
	_, ok := knownRules[r]
	return ok
}

// ReferencesName reports whether the rule reads another line's value as a registrant name.
func (r Rule) ReferencesName() bool {
	return r == RuleBirthdayIsCorrect || r == RuleSameBirthdayMonth
}

// QuestLine is one input field of a quest.
type QuestLine struct {
	ID             int64   `json:"id" yaml:"id"`
	QuestID        int64   `json:"questId" yaml:"-"`
	Position       int     `json:"position" yaml:"position"`
	InputType      string  `json:"inputType" yaml:"input_type"`
	Placeholder    string  `json:"placeholder" yaml:"placeholder"`
	IsQuestion     bool    `json:"isQuestion" yaml:"is_question"`
	Answer         *string `json:"answer,omitempty" yaml:"answer"`
	ValidationRule Rule    `json:"validationRule" yaml:"validation_rule"`
	// NameRef is the index of the line whose value names the referenced registrant.
	NameRef *int `json:"nameRef,omitempty" yaml:"name_ref"`
	Points  int  `json:"points" yaml:"points"`
}

// Quest is a side-quest header with its ordered lines.
type Quest struct {
	ID        int64       `json:"id" yaml:"id"`
	Question  string      `json:"question" yaml:"question"`
	Lines     []QuestLine `json:"lines" yaml:"lines"`
	CreatedAt time.Time   `json:"createdAt" yaml:"-"`
}

// Normalize fixes line positions and fills the implicit "previous line is the name"
// reference for name-referencing rules that do not set one.
func (q *Quest) Normalize() {
	for i := range q.Lines {
		line := &q.Lines[i]
		line.Position = i
		line.QuestID = q.ID
		line.ValidationRule = Rule(strings.TrimSpace(string(line.ValidationRule)))
		if line.ValidationRule.ReferencesName() && line.NameRef == nil && i > 0 {
			ref := i - 1
			line.NameRef = &ref
		}
	}
}

// Validate checks the quest schema. Name references must point at an earlier line.
func (q Quest) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidQuest)
	}
	if len(q.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInvalidQuest)
	}
	for i, line := range q.Lines {
		if !line.ValidationRule.Known() {
			return fmt.Errorf("%w: line %d has unknown rule %q", ErrInvalidQuest, i, line.ValidationRule)
		}
		if line.Points < 0 {
			return fmt.Errorf("%w: line %d has negative points", ErrInvalidQuest, i)
		}
		if line.NameRef != nil {
			if !line.ValidationRule.ReferencesName() {
				return fmt.Errorf("%w: line %d rule %q does not take a name reference", ErrInvalidQuest, i, line.ValidationRule)
			}
			if *line.NameRef < 0 || *line.NameRef >= i {
				return fmt.Errorf("%w: line %d name reference %d must point at an earlier line", ErrInvalidQuest, i, *line.NameRef)
			}
		}
	}
	return nil
}

// Public returns a copy of the quest with expected answers stripped.
func (q Quest) Public() Quest {
	out := q
	out.Lines = make([]QuestLine, len(q.Lines))
	for i, line := range q.Lines {
		line.Answer = nil
		out.Lines[i] = line
	}
	return out
}

// TotalPoints sums the authored points of every line.
func (q Quest) TotalPoints() int {
	total := 0
	for _, line := range q.Lines {
		total += line.Points
	}
	return total
}
