// Package services – StatsService
//
// This file implements StatsService, which aggregates classification
// statistics over a sliding window of recent tickets. The aggregation runs in
// memory over the windowed slice; windows are bounded to 90 days so the query
// stays cheap. The service is strictly read-only.
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/classifier"
	"github.com/tbourn/go-support-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
)

// StatsRepo defines the repository contract required by StatsService.
type StatsRepo interface {
	// ListTicketsCreatedSince returns tickets created at or after since,
	// with classifications preloaded.
	ListTicketsCreatedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.Ticket, error)
}

// CategoryStat is the per-category slice of the statistics payload.
type CategoryStat struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// StatsResult is the aggregated statistics payload for a window.
type StatsResult struct {
	TotalTickets      int            `json:"total_tickets"`
	PeriodDays        int            `json:"period_days"`
	Categories        []CategoryStat `json:"categories"`
	DailyCounts       map[string]int `json:"daily_counts"`
	AverageConfidence float64        `json:"average_confidence"`
}

// StatsService computes aggregate classification statistics.
type StatsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the stats repository used by this service.
	Repo StatsRepo

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewStatsService constructs a StatsService.
func NewStatsService(db *gorm.DB, r StatsRepo) *StatsService {
	return &StatsService{DB: db, Repo: r, now: time.Now}
}

// Stats aggregates tickets created within the last days days (clamped to
// [1, 90], defaulting to 7 for non-positive values), anchored at the current
// time.
//
// Every category appears in the result, zero counts included; the percentage
// base is the window's total ticket count, rounded to two decimals.
// Categories are ordered by count descending, ties resolved by the canonical
// category order. An empty window yields an empty category list. Daily counts cover all tickets in the window,
// keyed by UTC ISO date; encoding/json emits map keys sorted, so the JSON
// form is ascending by date. The average confidence covers only classified
// tickets, rounded to three decimals.
func (s *StatsService) Stats(ctx context.Context, days int) (*StatsResult, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(attribute.Int("window.days", days)),
	)
	defer span.End()

	if days <= 0 {
		days = defaultStatsDays
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	since := s.now().UTC().AddDate(0, 0, -days)
	tickets, err := s.Repo.ListTicketsCreatedSince(ctx, s.DB, since)
	if err != nil {
		return nil, err
	}

	out := &StatsResult{
		TotalTickets: len(tickets),
		PeriodDays:   days,
		Categories:   []CategoryStat{},
		DailyCounts:  map[string]int{},
	}

	counts := map[string]int{}
	classified := 0
	confidenceSum := 0.0
	for _, t := range tickets {
		out.DailyCounts[t.CreatedAt.UTC().Format("2006-01-02")]++
		if t.Classification == nil {
			continue
		}
		counts[t.Classification.Category]++
		classified++
		confidenceSum += t.Classification.ConfidenceScore
	}

	if len(tickets) > 0 {
		for _, cat := range classifier.Categories() {
			n := counts[cat]
			out.Categories = append(out.Categories, CategoryStat{
				Category:   cat,
				Count:      n,
				Percentage: round2(float64(n) / float64(len(tickets)) * 100),
			})
		}
		sort.SliceStable(out.Categories, func(i, j int) bool {
			return out.Categories[i].Count > out.Categories[j].Count
		})
	}

	if classified > 0 {
		out.AverageConfidence = round3(confidenceSum / float64(classified))
	}
	return out, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
