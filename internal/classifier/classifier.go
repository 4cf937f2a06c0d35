// Package classifier provides the ticket classification engine: a common
// Classifier interface, a remote LLM-backed implementation with a
// deterministic keyword fallback, and a reference implementation for
// development and tests. All implementations assign exactly one of the
// supported categories together with a confidence score.
package classifier

import (
	"context"
	"strings"
)

// Supported ticket categories. Every classification result carries exactly
// one of these values; anything else a backend returns is coerced to
// CategoryGeneral.
const (
	CategoryTechnical = "technical"
	CategoryBilling   = "billing"
	CategoryGeneral   = "general"
)

// maxSummaryLen caps classification summaries; longer texts are truncated
// with a trailing "..." marker.
const maxSummaryLen = 150

// Result is the outcome of a single classification call.
type Result struct {
	Category         string  // one of CategoryTechnical, CategoryBilling, CategoryGeneral
	ConfidenceScore  float64 // in [0.0, 1.0]
	Summary          *string // optional, at most maxSummaryLen characters
	ProcessingTimeMS int     // wall-clock duration of the call
	ModelName        string  // which implementation (and model) produced the result
}

// Classifier assigns a category to a piece of support-request text.
//
// Implementations must return a Result whose Category is one of the supported
// categories and whose ConfidenceScore lies in [0.0, 1.0]. Implementations
// that carry an internal fallback (such as the remote classifier) never
// return a non-nil error.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Categories returns the supported categories in canonical order.
func Categories() []string {
	return []string{CategoryTechnical, CategoryBilling, CategoryGeneral}
}

// ValidCategory reports whether s is one of the supported categories.
func ValidCategory(s string) bool {
	switch s {
	case CategoryTechnical, CategoryBilling, CategoryGeneral:
		return true
	}
	return false
}

// MapQueueToCategory maps a free-text dataset queue name onto a supported
// category. Matching is case-insensitive substring matching; unknown or empty
// queues map to CategoryGeneral.
func MapQueueToCategory(queue string) string {
	q := strings.ToLower(strings.TrimSpace(queue))
	switch {
	case strings.Contains(q, "technical") || strings.Contains(q, "it support"):
		return CategoryTechnical
	case strings.Contains(q, "billing") || strings.Contains(q, "payment"):
		return CategoryBilling
	default:
		return CategoryGeneral
	}
}

// MapPriorityToConfidence maps a free-text dataset priority onto a seed
// confidence score. Unknown or empty priorities map to the medium value.
func MapPriorityToConfidence(priority string) float64 {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "critical", "high":
		return 0.9
	case "low":
		return 0.5
	default:
		return 0.7
	}
}

// clampConfidence forces v into [0.0, 1.0].
func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateSummary shortens s to at most max characters, replacing the tail
// with "..." when truncation happens. Counting is rune-based so multi-byte
// text is never cut mid-character.
func truncateSummary(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
