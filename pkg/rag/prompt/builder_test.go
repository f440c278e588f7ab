package prompt

import (
	"strings"
	"testing"
	"time"
)

func TestAnswerInstruction(t *testing.T) {
	date := time.Date(2026, 8, 31, 15, 4, 5, 0, time.UTC)
	got := AnswerInstruction("Article 12: Leases renew annually.", "When does my lease renew?", date)

	wants := []string{
		"Today's date is 2026-08-31.",
		"Include section names and or article number references",
		"Do not hallucinate the references (section names and or article numbers)",
		"=======\nArticle 12: Leases renew annually.\n=======",
		"Current query: When does my lease renew?",
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("instruction missing %q", want)
		}
	}
}

func TestAnswerInstructionNormalizesDateToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	date := time.Date(2026, 9, 1, 1, 0, 0, 0, loc) // still Aug 31 in UTC

	got := AnswerInstruction("", "", date)
	if !strings.Contains(got, "Today's date is 2026-08-31.") {
		t.Errorf("date not rendered in UTC: %q", got[:40])
	}
}

func TestDecisionInstruction(t *testing.T) {
	got := DecisionInstruction("Section 3: Noise limits apply after 22:00.")

	wants := []string{
		`If the context is sufficient, respond with "No".`,
		"Respond ONLY with one of these two phrases.",
		"-------\nSection 3: Noise limits apply after 22:00.\n-------",
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("instruction missing %q", want)
		}
	}
}
