// Package services – TicketService
//
// This file implements TicketService, the application-level component that
// owns the lifecycle of support tickets. It validates and normalizes incoming
// request text, persists the ticket, then drives AI classification and stores
// the verdict. Classification is best-effort: a failing classifier (or a
// failing classification insert) never fails the intake call, because the
// ticket itself is the durable record of the customer request.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include ticket identifiers and pagination parameters where applicable.
// Every stored verdict increments the ticket_classifications_total counter.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/classifier"
	"github.com/tbourn/go-support-backend/internal/domain"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// minBodyChars is the minimum number of meaningful (non-whitespace)
	// characters a ticket body must contain.
	minBodyChars = 10

	// maxSubjectRunes caps a derived or supplied subject line.
	maxSubjectRunes = 500

	// errorFallbackModel marks classifications stored when the classifier
	// itself failed.
	errorFallbackModel = "error-fallback"
)

var classificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ticket_classifications_total",
		Help: "Stored ticket classifications by category and model.",
	},
	[]string{"category", "model"},
)

// TicketRepo defines the repository contract required by TicketService.
// Implementations are responsible for persistence of ticket aggregates.
type TicketRepo interface {
	// CreateTicket inserts a new ticket row.
	CreateTicket(ctx context.Context, db *gorm.DB, t *domain.Ticket) error

	// GetTicket fetches a ticket with classification and tags preloaded.
	GetTicket(ctx context.Context, db *gorm.DB, id uint) (*domain.Ticket, error)

	// CountTickets returns the ticket total, optionally per category.
	CountTickets(ctx context.Context, db *gorm.DB, category string) (int64, error)

	// ListTicketsPage returns a page of tickets ordered newest first.
	ListTicketsPage(ctx context.Context, db *gorm.DB, category string, offset, limit int) ([]domain.Ticket, error)

	// CreateClassification stores the verdict for a ticket.
	CreateClassification(ctx context.Context, db *gorm.DB, c *domain.Classification) error
}

// CreateTicketInput carries the fields accepted by Create. Either Text or
// Body must be set; when only Text is given, the subject is derived from its
// first line.
type CreateTicketInput struct {
	Text             string
	Subject          string
	Body             string
	OriginalQueue    string
	OriginalPriority string
}

// TicketService coordinates ticket persistence and AI classification.
type TicketService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the ticket repository used by this service.
	Repo TicketRepo
	// Classifier produces the category verdict for new tickets.
	Classifier classifier.Classifier

	// MaxBodyRunes optionally caps accepted ticket text by rune length.
	MaxBodyRunes int
}

// NewTicketService constructs a TicketService with sane defaults.
func NewTicketService(db *gorm.DB, r TicketRepo, c classifier.Classifier) *TicketService {
	return &TicketService{
		DB:           db,
		Repo:         r,
		Classifier:   c,
		MaxBodyRunes: 10000,
	}
}

// Create validates the input, persists the ticket, classifies its text, and
// stores the resulting verdict. The returned ticket has the classification
// attached when one was stored.
//
// Classification failures are absorbed: a classifier error stores an
// error-fallback verdict (general, confidence 0.0), and a failing
// classification insert leaves the ticket unclassified. Both cases still
// return the created ticket.
func (s *TicketService) Create(ctx context.Context, in CreateTicketInput) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	subject, body, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrBodyTooLong
	}

	t := &domain.Ticket{Body: body}
	if subject != "" {
		t.Subject = &subject
	}
	if q := strings.TrimSpace(in.OriginalQueue); q != "" {
		t.OriginalQueue = &q
	}
	if p := strings.TrimSpace(in.OriginalPriority); p != "" {
		t.OriginalPriority = &p
	}
	if err := s.Repo.CreateTicket(ctx, s.DB, t); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("ticket.id", int64(t.ID)))

	s.classify(ctx, t)
	return t, nil
}

// classify runs the classifier over the ticket text and persists the verdict.
// It never fails the caller; see Create for the degradation rules.
func (s *TicketService) classify(ctx context.Context, t *domain.Ticket) {
	res, err := s.Classifier.Classify(ctx, t.FullText())
	if err != nil {
		log.Error().Err(err).Uint("ticket_id", t.ID).Msg("classifier failed, storing error fallback")
		res = classifier.Result{
			Category:         classifier.CategoryGeneral,
			ConfidenceScore:  0.0,
			Summary:          nil,
			ProcessingTimeMS: 0,
			ModelName:        errorFallbackModel,
		}
	}

	ms := res.ProcessingTimeMS
	c := &domain.Classification{
		TicketID:         t.ID,
		Category:         res.Category,
		ConfidenceScore:  res.ConfidenceScore,
		Summary:          res.Summary,
		ModelName:        res.ModelName,
		ProcessingTimeMS: &ms,
	}
	if err := s.Repo.CreateClassification(ctx, s.DB, c); err != nil {
		// The ticket stays unclassified; a later re-run can fill the gap.
		log.Error().Err(err).Uint("ticket_id", t.ID).Msg("storing classification failed")
		return
	}
	t.Classification = c
	classificationsTotal.WithLabelValues(c.Category, c.ModelName).Inc()
}

// Get returns a ticket with its classification and tags, or
// ErrTicketNotFound.
func (s *TicketService) Get(ctx context.Context, id uint) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("ticket.id", int64(id))),
	)
	defer span.End()

	t, err := s.Repo.GetTicket(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListPage returns a page of tickets ordered newest first, plus the total
// matching count. A non-empty category restricts the result to classified
// tickets of that category; limit is clamped to [1,1000] with a default of
// 100 and a negative offset becomes 0.
func (s *TicketService) ListPage(ctx context.Context, category string, limit, offset int) ([]domain.Ticket, int64, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("filter.category", category),
			attribute.Int("page.limit", limit),
			attribute.Int("page.offset", offset),
		),
	)
	defer span.End()

	category = strings.ToLower(strings.TrimSpace(category))
	if category != "" && !classifier.ValidCategory(category) {
		return nil, 0, ErrInvalidCategory
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	total, err := s.Repo.CountTickets(ctx, s.DB, category)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Ticket{}, 0, nil
	}

	items, err := s.Repo.ListTicketsPage(ctx, s.DB, category, offset, limit)
	return items, total, err
}

// normalizeInput derives the stored subject and body from the request input.
// An explicit body wins; otherwise the free-form text is split on its first
// line break, the first line becoming the subject when more text follows.
func normalizeInput(in CreateTicketInput) (subject, body string, err error) {
	subject = strings.TrimSpace(in.Subject)
	body = strings.TrimSpace(in.Body)

	if body == "" {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return "", "", ErrEmptyBody
		}
		if head, rest, found := strings.Cut(text, "\n"); found && strings.TrimSpace(rest) != "" {
			if subject == "" {
				subject = strings.TrimSpace(head)
			}
			body = strings.TrimSpace(rest)
		} else {
			body = text
		}
	}

	if meaningfulChars(body) < minBodyChars {
		return "", "", ErrBodyTooShort
	}
	subject = clipRunes(subject, maxSubjectRunes)
	return subject, body, nil
}

// meaningfulChars counts the non-whitespace runes in s.
func meaningfulChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// clipRunes truncates s to at most max runes.
func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
