package query

import (
	"net/url"
	"strings"
)

const maxQuestionLen = 4000

// ValidateQuestion rejects empty or oversized questions.
func ValidateQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if len(trimmed) > maxQuestionLen {
		return &ValidationError{Field: "question", Reason: "too long"}
	}
	return nil
}

// ValidateTarget rejects targets that cannot name a notebook page.
func ValidateTarget(target string) error {
	parsed, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return &ValidationError{Field: "target", Reason: "not a URL: " + err.Error()}
	}
	if parsed.Scheme != "https" {
		return &ValidationError{Field: "target", Reason: "scheme must be https"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "target", Reason: "missing host"}
	}
	return nil
}
