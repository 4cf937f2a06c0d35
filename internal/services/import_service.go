// Package services – ImportService
//
// This file implements ImportService, which maps external support-ticket
// dataset records into domain rows: a Ticket, a seeded Classification derived
// from the record's queue and priority, and the ordered tag slots. Each
// record imports inside its own transaction so a malformed record never rolls
// back its neighbors; failures are counted and logged, not fatal.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/classifier"
	"github.com/tbourn/go-support-backend/internal/domain"
	"github.com/tbourn/go-support-backend/internal/repo"
)

// datasetImportModel marks classifications seeded from a dataset record
// rather than produced by a classifier.
const datasetImportModel = "dataset-import"

// ImportRecord is one external dataset record. The source schema carries
// eight fixed tag slots.
type ImportRecord struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Answer   string `json:"answer"`
	Type     string `json:"type"`
	Queue    string `json:"queue"`
	Priority string `json:"priority"`
	Language string `json:"language"`
	Tag1     string `json:"tag_1"`
	Tag2     string `json:"tag_2"`
	Tag3     string `json:"tag_3"`
	Tag4     string `json:"tag_4"`
	Tag5     string `json:"tag_5"`
	Tag6     string `json:"tag_6"`
	Tag7     string `json:"tag_7"`
	Tag8     string `json:"tag_8"`
}

// tags returns the non-blank tag slots with their 1-based positions kept.
func (r *ImportRecord) tags() []domain.TicketTag {
	var out []domain.TicketTag
	for i, v := range []string{r.Tag1, r.Tag2, r.Tag3, r.Tag4, r.Tag5, r.Tag6, r.Tag7, r.Tag8} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, domain.TicketTag{TagPosition: i + 1, TagValue: v})
	}
	return out
}

// ImportSummary reports the outcome of a bulk import.
type ImportSummary struct {
	Imported int
	Skipped  int
	Failed   int
}

// ImportService loads dataset records into the ticket store.
type ImportService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Language restricts the import to records of one language ("" accepts
	// all). Comparison is by language base, so "en-US" passes an "en" filter.
	Language string
}

// NewImportService constructs an ImportService with the given language filter.
func NewImportService(db *gorm.DB, lang string) *ImportService {
	return &ImportService{DB: db, Language: lang}
}

// ImportOne imports a single dataset record in its own transaction.
// Records in the wrong language return ErrUnsupportedLanguage and records
// with too little body text return ErrBodyTooShort; both leave the database
// untouched.
func (s *ImportService) ImportOne(ctx context.Context, rec ImportRecord) (*domain.Ticket, error) {
	if !s.languageMatches(rec.Language) {
		return nil, ErrUnsupportedLanguage
	}
	body := strings.TrimSpace(rec.Body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if meaningfulChars(body) < minBodyChars {
		return nil, ErrBodyTooShort
	}

	t := &domain.Ticket{Body: body}
	if v := strings.TrimSpace(rec.Subject); v != "" {
		v = clipRunes(v, maxSubjectRunes)
		t.Subject = &v
	}
	if v := strings.TrimSpace(rec.Answer); v != "" {
		t.Answer = &v
	}
	if v := strings.TrimSpace(rec.Type); v != "" {
		t.OriginalType = &v
	}
	if v := strings.TrimSpace(rec.Queue); v != "" {
		t.OriginalQueue = &v
	}
	if v := strings.TrimSpace(rec.Priority); v != "" {
		t.OriginalPriority = &v
	}
	if v := strings.TrimSpace(rec.Language); v != "" {
		v = strings.ToLower(v)
		t.Language = &v
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateTicket(ctx, tx, t); err != nil {
			return err
		}
		c := &domain.Classification{
			TicketID:        t.ID,
			Category:        classifier.MapQueueToCategory(rec.Queue),
			ConfidenceScore: classifier.MapPriorityToConfidence(rec.Priority),
			ModelName:       datasetImportModel,
		}
		if err := repo.CreateClassification(ctx, tx, c); err != nil {
			return err
		}
		t.Classification = c

		tags := rec.tags()
		for i := range tags {
			tags[i].TicketID = t.ID
		}
		if err := repo.CreateTicketTags(ctx, tx, tags); err != nil {
			return err
		}
		t.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ImportAll imports records sequentially, counting per-record outcomes.
// Skips (wrong language, short body) and hard failures never abort the run.
func (s *ImportService) ImportAll(ctx context.Context, recs []ImportRecord) ImportSummary {
	var sum ImportSummary
	for i, rec := range recs {
		_, err := s.ImportOne(ctx, rec)
		switch {
		case err == nil:
			sum.Imported++
		case err == ErrUnsupportedLanguage || err == ErrBodyTooShort || err == ErrEmptyBody:
			sum.Skipped++
		default:
			sum.Failed++
			log.Warn().Err(err).Int("record", i).Msg("dataset record import failed")
		}
	}
	return sum
}

// languageMatches compares the record language against the configured filter
// by language base, so regional variants pass.
func (s *ImportService) languageMatches(recordLang string) bool {
	filter := strings.TrimSpace(s.Language)
	if filter == "" {
		return true
	}
	want, err := language.Parse(filter)
	if err != nil {
		return strings.EqualFold(strings.TrimSpace(recordLang), filter)
	}
	got, err := language.Parse(strings.TrimSpace(recordLang))
	if err != nil {
		return false
	}
	wantBase, _ := want.Base()
	gotBase, _ := got.Base()
	return wantBase == gotBase
}
