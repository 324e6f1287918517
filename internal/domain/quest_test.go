package domain

import (
	"errors"
	"testing"
)

func TestNormalizeFillsPreviousLineReference(t *testing.T) {
	q := Quest{
		ID:       7,
		Question: "Meet someone you don't know",
		Lines: []QuestLine{
			{ValidationRule: RuleNameExists, Points: 10},
			{ValidationRule: RuleBirthdayIsCorrect, Points: 10},
		},
	}
	q.Normalize()

	if q.Lines[0].NameRef != nil {
		t.Fatalf("expected no reference on first line, got %d", *q.Lines[0].NameRef)
	}
	if q.Lines[1].NameRef == nil || *q.Lines[1].NameRef != 0 {
		t.Fatalf("expected line 1 to reference line 0, got %v", q.Lines[1].NameRef)
	}
	if q.Lines[1].Position != 1 || q.Lines[1].QuestID != 7 {
		t.Fatalf("expected position/quest id to be set, got %+v", q.Lines[1])
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("expected valid quest, got %v", err)
	}
}

func TestNormalizeLeavesFirstLineSameMonthUnreferenced(t *testing.T) {
	q := Quest{Question: "Birthday buddy", Lines: []QuestLine{{ValidationRule: RuleSameBirthdayMonth}}}
	q.Normalize()
	if q.Lines[0].NameRef != nil {
		t.Fatalf("expected self comparison line to stay unreferenced")
	}
}

func TestValidateRejectsBadDefinitions(t *testing.T) {
	forward := 1
	cases := map[string]Quest{
		"no question": {Lines: []QuestLine{{ValidationRule: RuleRequired}}},
		"no lines":    {Question: "q"},
		"unknown rule": {Question: "q", Lines: []QuestLine{
			{ValidationRule: "validate_magic"},
		}},
		"forward reference": {Question: "q", Lines: []QuestLine{
			{ValidationRule: RuleBirthdayIsCorrect, NameRef: &forward},
			{ValidationRule: RuleNameExists},
		}},
		"reference on non referencing rule": {Question: "q", Lines: []QuestLine{
			{ValidationRule: RuleNameExists},
			{ValidationRule: RuleRequired, NameRef: new(int)},
		}},
		"negative points": {Question: "q", Lines: []QuestLine{
			{ValidationRule: RuleRequired, Points: -1},
		}},
	}
	for name, q := range cases {
		if err := q.Validate(); !errors.Is(err, ErrInvalidQuest) {
			t.Fatalf("%s: expected ErrInvalidQuest, got %v", name, err)
		}
	}
}

func TestPublicStripsAnswers(t *testing.T) {
	answer := "JIGGER"
	q := Quest{Question: "Find Kuya Jigs", Lines: []QuestLine{{ValidationRule: RuleRequired, Answer: &answer, Points: 30}}}
	pub := q.Public()
	if pub.Lines[0].Answer != nil {
		t.Fatalf("expected answer stripped")
	}
	if q.Lines[0].Answer == nil {
		t.Fatalf("expected source quest untouched")
	}
	if pub.TotalPoints() != 30 {
		t.Fatalf("expected 30 total points, got %d", pub.TotalPoints())
	}
}
