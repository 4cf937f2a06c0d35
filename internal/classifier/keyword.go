package classifier

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the keyword lists used by the deterministic keyword scorer.
// The zero value is unusable; obtain one via DefaultLexicon or LoadLexicon.
type Lexicon struct {
	Technical []string `yaml:"technical"`
	Billing   []string `yaml:"billing"`
}

// DefaultLexicon returns the built-in keyword lists.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Technical: []string{
			"error", "crash", "bug", "system", "software", "hardware",
			"server", "database", "application", "platform", "technical",
			"computer", "network", "installation", "update",
		},
		Billing: []string{
			"invoice", "billing", "payment", "charge", "refund", "price",
			"cost", "fee", "subscription", "overcharge", "bill", "money",
			"credit", "debit", "transaction", "purchase",
		},
	}
}

// LoadLexicon reads keyword lists from a YAML file. Lists left empty in the
// file fall back to the built-in defaults, so a partial override is valid.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon yaml: %w", err)
	}
	def := DefaultLexicon()
	if len(lex.Technical) == 0 {
		lex.Technical = def.Technical
	}
	if len(lex.Billing) == 0 {
		lex.Billing = def.Billing
	}
	return &lex, nil
}

// Score classifies text by counting keyword hits against each list.
// Matching is case-insensitive substring containment, one hit per keyword.
// The winning category scores min(0.6 + 0.05*hits, 0.85); text with no hits
// at all scores CategoryGeneral at 0.5. Keyword results carry no summary.
func (l *Lexicon) Score(text string) (category string, confidence float64) {
	lower := strings.ToLower(text)

	countHits := func(keywords []string) int {
		n := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		return n
	}

	techHits := countHits(l.Technical)
	billHits := countHits(l.Billing)

	if techHits == 0 && billHits == 0 {
		return CategoryGeneral, 0.5
	}

	// Technical wins only on a strict majority; a tie goes to billing.
	hits := billHits
	category = CategoryBilling
	if techHits > billHits {
		hits = techHits
		category = CategoryTechnical
	}

	confidence = 0.6 + 0.05*float64(hits)
	if confidence > 0.85 {
		confidence = 0.85
	}
	return category, confidence
}

// KeywordClassifier classifies using only the deterministic keyword scorer.
// It is the same scoring path the remote classifier falls back to, exposed as
// a standalone implementation for offline or air-gapped deployments.
type KeywordClassifier struct {
	Lexicon *Lexicon
}

// NewKeywordClassifier returns a keyword classifier over the given lexicon,
// or the built-in defaults when lex is nil.
func NewKeywordClassifier(lex *Lexicon) *KeywordClassifier {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &KeywordClassifier{Lexicon: lex}
}

// Classify implements Classifier. It never returns an error.
func (c *KeywordClassifier) Classify(_ context.Context, text string) (Result, error) {
	start := time.Now()
	category, confidence := c.Lexicon.Score(text)
	return Result{
		Category:         category,
		ConfidenceScore:  confidence,
		Summary:          nil,
		ProcessingTimeMS: int(time.Since(start).Milliseconds()),
		ModelName:        "keyword-classifier",
	}, nil
}
