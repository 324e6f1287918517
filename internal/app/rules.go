package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"levelup-sidequest/internal/domain"
)

// Messages shown to players for failing lines.
const (
	MsgEmpty               = "Oops! You forgot to fill this one. Don't leave me hanging!"
	MsgWrongAnswer         = "Hmm, that doesn't seem quite right. Try again!"
	MsgInviterMismatch     = "This name doesn't match who invited you!"
	MsgUnknownCode         = "That UID doesn't ring a bell. Are you sure it's correct?"
	MsgNameNotFound        = "Hmm, I can't find that name. Maybe check the spelling?"
	MsgOwnName             = "Nice try! But you can't use your own name here."
	MsgSameInviter         = "That person was invited by the same person as you"
	MsgBirthdayMismatch    = "That birthday doesn't match what we have on file!"
	MsgNoBirthdayForName   = "Sorry, couldn't find a birthday for that name!"
	MsgNeedNameForBirthday = "I need a name first before I can check the birthday!"
	MsgNeedNameForMonth    = "I need a name first before I can check the birthday month!"
	MsgNoNameReference     = "A name is needed to validate the birthday, my friend!"
	MsgMonthMismatchOther  = "This person doesn't share the birthday month!"
	MsgMonthMismatchSelf   = "This birthday month doesn't match yours!"
	MsgNotADate            = "That doesn't look like a date or a month."
)

// RegistrantLookup is the read capability the evaluator needs from registration storage.
// FindByName returns domain.ErrRegistrantNotFound when nothing matches; any other
// error is an infrastructure failure.
type RegistrantLookup interface {
	FindByName(ctx context.Context, name string) (domain.Registrant, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
}

// LineInput is everything the evaluator may look at for one line.
type LineInput struct {
	Index  int
	Line   domain.QuestLine
	Value  string
	Values []string // submitted values for every line, by position
	Caller domain.Registrant
}

// Verdict is the evaluator's judgement for one line.
type Verdict struct {
	Valid   bool
	Message string
}

func valid() Verdict             { return Verdict{Valid: true} }
func invalid(msg string) Verdict { return Verdict{Message: msg} }

func verdict(ok bool, msg string) Verdict {
	if ok {
		return valid()
	}
	return invalid(msg)
}

// RuleEvaluator judges single quest lines. It has no side effects beyond registrant reads.
type RuleEvaluator struct {
	registrants RegistrantLookup
}

func NewRuleEvaluator(registrants RegistrantLookup) *RuleEvaluator {
	return &RuleEvaluator{registrants: registrants}
}

// Evaluate runs the line's rule. Errors are reserved for lookup failures; every
// user-correctable problem comes back as an invalid Verdict.
func (e *RuleEvaluator) Evaluate(ctx context.Context, in LineInput) (Verdict, error) {
	rule := in.Line.ValidationRule
	if rule == domain.RuleNone || !rule.Known() {
		return valid(), nil
	}

	value := strings.TrimSpace(in.Value)
	if value == "" {
		return invalid(MsgEmpty), nil
	}

	switch rule {
	case domain.RuleRequired:
		if in.Line.Answer != nil && value == *in.Line.Answer {
			return valid(), nil
		}
		return verdict(!in.Line.IsQuestion, MsgWrongAnswer), nil

	case domain.RuleSameInvitedBy:
		return verdict(in.Caller.InvitedBy != nil && value == *in.Caller.InvitedBy, MsgInviterMismatch), nil

	case domain.RuleCode:
		// UIDs are stored upper-case; login normalises the same way.
		ok, err := e.registrants.ExistsByUID(ctx, strings.ToUpper(value))
		if err != nil {
			return Verdict{}, err
		}
		return verdict(ok, MsgUnknownCode), nil

	case domain.RuleNameExists, domain.RuleNameExistsSameInviter:
		return e.checkName(ctx, value, in.Caller, rule == domain.RuleNameExistsSameInviter)

	case domain.RuleBirthdayIsCorrect:
		return e.checkBirthday(ctx, value, in)

	case domain.RuleSameBirthdayMonth:
		return e.checkBirthdayMonth(ctx, value, in)
	}
	return valid(), nil
}

func (e *RuleEvaluator) checkName(ctx context.Context, name string, caller domain.Registrant, distinctInviter bool) (Verdict, error) {
	match, found, err := e.findByName(ctx, name)
	if err != nil {
		return Verdict{}, err
	}
	if !found {
		return invalid(MsgNameNotFound), nil
	}
	if match.Name == caller.Name {
		return invalid(MsgOwnName), nil
	}
	if distinctInviter && sameInviter(match.InvitedBy, caller.InvitedBy) {
		return invalid(MsgSameInviter), nil
	}
	return valid(), nil
}

func (e *RuleEvaluator) checkBirthday(ctx context.Context, value string, in LineInput) (Verdict, error) {
	ref, ok := referencedValue(in)
	if !ok {
		return invalid(MsgNoNameReference), nil
	}
	if ref == "" {
		return invalid(MsgNeedNameForBirthday), nil
	}
	match, found, err := e.findByName(ctx, ref)
	if err != nil {
		return Verdict{}, err
	}
	if !found || match.Birthday == nil {
		return invalid(MsgNoBirthdayForName), nil
	}
	return verdict(value == match.BirthdayString(), MsgBirthdayMismatch), nil
}

func (e *RuleEvaluator) checkBirthdayMonth(ctx context.Context, value string, in LineInput) (Verdict, error) {
	month, ok := ParseMonth(value)
	if !ok {
		return invalid(MsgNotADate), nil
	}

	ref, hasRef := referencedValue(in)
	if !hasRef {
		if in.Caller.Birthday == nil {
			return invalid(MsgNoBirthdayForName), nil
		}
		return verdict(month == in.Caller.Birthday.Month(), MsgMonthMismatchSelf), nil
	}
	if ref == "" {
		return invalid(MsgNeedNameForMonth), nil
	}
	match, found, err := e.findByName(ctx, ref)
	if err != nil {
		return Verdict{}, err
	}
	if !found || match.Birthday == nil {
		return invalid(MsgNoBirthdayForName), nil
	}
	return verdict(month == match.Birthday.Month(), MsgMonthMismatchOther), nil
}

func (e *RuleEvaluator) findByName(ctx context.Context, name string) (domain.Registrant, bool, error) {
	reg, err := e.registrants.FindByName(ctx, name)
	if errors.Is(err, domain.ErrRegistrantNotFound) {
		return domain.Registrant{}, false, nil
	}
	if err != nil {
		return domain.Registrant{}, false, err
	}
	return reg, true, nil
}

// referencedValue returns the trimmed value of the line named by NameRef.
// ok is false when the line carries no usable reference.
func referencedValue(in LineInput) (string, bool) {
	ref := in.Line.NameRef
	if ref == nil || *ref < 0 || *ref >= in.Index {
		return "", false
	}
	if *ref >= len(in.Values) {
		return "", true
	}
	return strings.TrimSpace(in.Values[*ref]), true
}

func sameInviter(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var monthLayouts = []string{
	domain.BirthdayLayout,
	time.RFC3339,
	"01/02/2006",
	"2006-01",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseMonth extracts a calendar month from a full date, a month name or a month number.
func ParseMonth(raw string) (time.Month, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Month(), true
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return 0, false
	}
	lower := strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || (len(lower) >= 3 && strings.HasPrefix(name, lower)) {
			return m, true
		}
	}
	return 0, false
}
