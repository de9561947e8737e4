package conversation

import "strings"

// Answer is the reading of a reply to a yes/no question.
type Answer int

const (
	AnswerOther Answer = iota
	AnswerYes
	AnswerNo
)

// String returns a human-readable answer.
func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return "other"
	}
}

var affirmatives = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "sure": true,
	"ok": true, "okay": true,
	"はい": true, "うん": true, "ええ": true, "やる": true, "やります": true,
	"お願い": true, "お願いします": true,
}

var negatives = map[string]bool{
	"no": true, "n": true, "nope": true, "later": true, "not now": true,
	"いいえ": true, "いや": true, "ううん": true, "あとで": true, "後で": true,
	"やらない": true, "やめとく": true,
}

// ParseAnswer matches input against the yes/no vocabulary. The match is
// exact after trimming spaces and closing punctuation, and ignores case.
// Everything else is AnswerOther.
func ParseAnswer(input string) Answer {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimRight(s, "。．.！!、, 　")

	switch {
	case affirmatives[s]:
		return AnswerYes
	case negatives[s]:
		return AnswerNo
	default:
		return AnswerOther
	}
}
