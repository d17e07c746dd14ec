package models

import "strings"

// Feedback is the athlete's post-set override. It is the only input that may
// touch a score after set completion, and only during the feedback window.
type Feedback string

const (
	// FeedbackNone means the window elapsed with no answer; scoring uses the
	// documented neutral contribution of 75.
	FeedbackNone Feedback = "none"
	// FeedbackEasyKiller ("easy, killer") reduces the locked score by 12.5%.
	FeedbackEasyKiller Feedback = "easy_killer"
	// FeedbackChallenge ("challenge me") locks the score at exactly 100.
	FeedbackChallenge Feedback = "challenge"
)

// feedbackAliases maps the strings the coaching UI may send to canonical
// feedback values. The avatar copy has changed across app releases, so old
// clients still send the spelled-out phrases.
var feedbackAliases = map[string]Feedback{
	"none":         FeedbackNone,
	"neutral":      FeedbackNone,
	"skip":         FeedbackNone,
	"easy_killer":  FeedbackEasyKiller,
	"easy-killer":  FeedbackEasyKiller,
	"easy, killer": FeedbackEasyKiller,
	"too easy":     FeedbackEasyKiller,
	"challenge":    FeedbackChallenge,
	"challenge me": FeedbackChallenge,
	"maxed":        FeedbackChallenge,
}

// NormalizeFeedback maps a UI-supplied feedback string to its canonical value.
// Lookup is case-insensitive and whitespace-tolerant. Unknown strings are
// returned as-is with known=false so callers can log and fall back to neutral.
func NormalizeFeedback(raw string) (Feedback, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if fb, ok := feedbackAliases[key]; ok {
		return fb, true
	}
	return Feedback(raw), false
}
