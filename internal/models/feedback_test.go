package models

import "testing"

// TestNormalizeFeedback_Canonical verifies that canonical enum strings pass
// through unchanged.
func TestNormalizeFeedback_Canonical(t *testing.T) {
	cases := []struct {
		input string
		want  Feedback
	}{
		{"none", FeedbackNone},
		{"easy_killer", FeedbackEasyKiller},
		{"challenge", FeedbackChallenge},
	}
	for _, tc := range cases {
		got, known := NormalizeFeedback(tc.input)
		if !known {
			t.Errorf("NormalizeFeedback(%q): expected known=true", tc.input)
		}
		if got != tc.want {
			t.Errorf("NormalizeFeedback(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestNormalizeFeedback_UIAliases verifies that the phrases older coaching-UI
// builds send are mapped to canonical values.
func TestNormalizeFeedback_UIAliases(t *testing.T) {
	cases := []struct {
		input string
		want  Feedback
	}{
		{"easy, killer", FeedbackEasyKiller},
		{"easy-killer", FeedbackEasyKiller},
		{"Challenge Me", FeedbackChallenge},
		{"  TOO EASY ", FeedbackEasyKiller},
		{"skip", FeedbackNone},
	}
	for _, tc := range cases {
		got, known := NormalizeFeedback(tc.input)
		if !known {
			t.Errorf("NormalizeFeedback(%q): expected known=true", tc.input)
		}
		if got != tc.want {
			t.Errorf("NormalizeFeedback(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestNormalizeFeedback_Unknown verifies that unrecognized strings are
// returned as-is with known=false, so callers can log and use neutral.
func TestNormalizeFeedback_Unknown(t *testing.T) {
	got, known := NormalizeFeedback("shrug")
	if known {
		t.Error("expected known=false for unknown feedback")
	}
	if got != Feedback("shrug") {
		t.Errorf("expected original string returned, got %q", got)
	}
}
