package models

import (
	"strings"
	"unicode/utf8"
)

// Limits for the ask_redpanda_question tool input.
const (
	MaxQuestionChars = 2000
	DefaultTopK      = 5
	MinTopK          = 1
	MaxTopK          = 15
)

// ToolQuery is a validated question for the upstream search tool.
type ToolQuery struct {
	Question string
	TopK     int
}

// ToolError is the payload serialized into the single text content item when
// a tool call fails. Field names are part of the tool contract.
type ToolError struct {
	Kind       string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// NewToolQuery trims and validates a question and clamps topK into
// [MinTopK, MaxTopK]. A nil topK selects DefaultTopK. It returns a
// *ToolError for empty or oversized questions.
func NewToolQuery(question string, topK *int) (ToolQuery, *ToolError) {
	q := strings.TrimSpace(question)
	if q == "" {
		return ToolQuery{}, &ToolError{
			Kind:    ToolErrMissingQuery,
			Message: `Provide a non-empty "question".`,
		}
	}
	if utf8.RuneCountInString(q) > MaxQuestionChars {
		return ToolQuery{}, &ToolError{
			Kind:    ToolErrQueryTooLong,
			Message: "Question exceeds 2000 characters.",
		}
	}

	k := DefaultTopK
	if topK != nil {
		k = ClampTopK(*topK)
	}
	return ToolQuery{Question: q, TopK: k}, nil
}

// ClampTopK bounds k into [MinTopK, MaxTopK].
func ClampTopK(k int) int {
	return max(MinTopK, min(MaxTopK, k))
}
