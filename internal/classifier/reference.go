package classifier

import (
	"context"
	"strings"
	"time"
)

// ReferenceClassifier is a deterministic stand-in for the remote classifier,
// used when no API credential is configured and in tests. It checks a small
// fixed keyword subset per category in order (technical, then billing) and
// returns fixed confidences, so the same text always yields the same result.
type ReferenceClassifier struct{}

// NewReferenceClassifier returns the reference implementation.
func NewReferenceClassifier() *ReferenceClassifier {
	return &ReferenceClassifier{}
}

var (
	referenceTechnical = []string{
		"error", "bug", "crash", "broken", "server", "cpu",
		"timeout", "not working",
	}
	referenceBilling = []string{"invoice", "billing", "payment", "charge"}
)

// Classify implements Classifier. It never returns an error.
func (c *ReferenceClassifier) Classify(_ context.Context, text string) (Result, error) {
	start := time.Now()
	lower := strings.ToLower(text)

	category := CategoryGeneral
	confidence := 0.7
	switch {
	case containsAny(lower, referenceTechnical):
		category = CategoryTechnical
		confidence = 0.8
	case containsAny(lower, referenceBilling):
		category = CategoryBilling
		confidence = 0.85
	}

	// First 100 characters as a naive summary.
	summary := text
	if r := []rune(text); len(r) > 100 {
		summary = string(r[:100]) + "..."
	}
	return Result{
		Category:         category,
		ConfidenceScore:  confidence,
		Summary:          &summary,
		ProcessingTimeMS: int(time.Since(start).Milliseconds()),
		ModelName:        "dummy-classifier",
	}, nil
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
