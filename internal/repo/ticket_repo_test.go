package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-support-backend/internal/domain"
)

func newTicketRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("ticket_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strptr(s string) *string { return &s }

// seedTicket inserts a ticket with a fixed CreatedAt so ordering is
// deterministic in list tests.
func seedTicket(t *testing.T, db *gorm.DB, body string, createdAt time.Time) *domain.Ticket {
	t.Helper()
	tk := &domain.Ticket{Body: body, CreatedAt: createdAt, UpdatedAt: createdAt}
	if err := db.Create(tk).Error; err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return tk
}

func seedClassification(t *testing.T, db *gorm.DB, ticketID uint, category string, confidence float64) {
	t.Helper()
	c := &domain.Classification{
		TicketID:        ticketID,
		Category:        category,
		ConfidenceScore: confidence,
		ModelName:       "test-model",
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed classification: %v", err)
	}
}

func TestCreateTicket_Error_NoTable(t *testing.T) {
	db := newTicketRepoDB(t /* no migrations */)
	err := CreateTicket(context.Background(), db, &domain.Ticket{Body: "b"})
	if err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateTicket_Success_PersistsAndSetsFields(t *testing.T) {
	db := newTicketRepoDB(t, &domain.Ticket{}, &domain.Classification{}, &domain.TicketTag{})

	start := time.Now().UTC().Add(-time.Minute)
	tk := &domain.Ticket{
		Subject: strptr("Printer offline"),
		Body:    "The office printer refuses every job.",
	}
	if err := CreateTicket(context.Background(), db, tk); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.ID == 0 {
		t.Fatalf("expected auto-increment ID, got 0")
	}
	if tk.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset/really old: %v", tk.CreatedAt)
	}
	// round-trip
	var got domain.Ticket
	if err := db.First(&got, tk.ID).Error; err != nil {
		t.Fatalf("load created ticket: %v", err)
	}
	if got.Body != tk.Body || got.Subject == nil || *got.Subject != "Printer offline" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	db := newTicketRepoDB(t, &domain.Ticket{}, &domain.Classification{}, &domain.TicketTag{})
	got, err := GetTicket(context.Background(), db, 12345)
	if got != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got ticket=%v err=%v", got, err)
	}
}

func TestGetTicket_PreloadsClassificationAndTags(t *testing.T) {
	db := newTicketRepoDB(t, &domain.Ticket{}, &domain.Classification{}, &domain.TicketTag{})

	tk := seedTicket(t, db, "The server is down.", time.Now().UTC())
	seedClassification(t, db, tk.ID, "technical", 0.8)
	tags := []domain.TicketTag{
		{TicketID: tk.ID, TagPosition: 2, TagValue: "Outage"},
		{TicketID: tk.ID, TagPosition: 1, TagValue: "Hardware"},
	}
	if err := CreateTicketTags(context.Background(), db, tags); err != nil {
		t.Fatalf("CreateTicketTags: %v", err)
	}

	got, err := GetTicket(context.Background(), db, tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Classification == nil || got.Classification.Category != "technical" {
		t.Fatalf("classification not preloaded: %+v", got.Classification)
	}
	if len(got.Tags) != 2 || got.Tags[0].TagPosition != 1 || got.Tags[1].TagPosition != 2 {
		t.Fatalf("tags not preloaded in position order: %+v", got.Tags)
	}
}

func TestCountTickets_WithAndWithoutCategory(t *testing.T) {
	db := newTicketRepoDB(t, &domain.Ticket{}, &domain.Classification{}, &domain.TicketTag{})

	now := time.Now().UTC()
	t1 := seedTicket(t, db, "server error", now)
	t2 := seedTicket(t, db, "wrong invoice", now.Add(time.Second))
	seedTicket(t, db, "unclassified ticket", now.Add(2*time.Second))
	seedClassification(t, db, t1.ID, "technical", 0.8)
	seedClassification(t, db, t2.ID, "billing", 0.85)

	total, err := CountTickets(context.Background(), db, "")
	if err != nil || total != 3 {
		t.Fatalf("CountTickets all = %d, err=%v; want 3", total, err)
	}
	tech, err := CountTickets(context.Background(), db, "technical")
	if err != nil || tech != 1 {
		t.Fatalf("CountTickets technical = %d, err=%v; want 1", tech, err)
	}
	none, err := CountTickets(context.Background(), db, "general")
	if err != nil || none != 0 {
		t.Fatalf("CountTickets general = %d, err=%v; want 0", none, err)
	}
}

func TestListTicketsPage_OrderFilterAndPagination(t *testing.T) {
	db := newTicketRepoDB(t, &domain.Ticket{}, &domain.Classification{}, &domain.TicketTag{})

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	oldest := seedTicket(t, db, "oldest technical", base)
	middle := seedTicket(t, db, "middle billing", base.Add(time.Hour))
	newest := seedTicket(t, db, "newest technical", base.Add(2*time.Hour))
	unclassified := seedTicket(t, db, "unclassified", base.Add(3*time.Hour))
	seedClassification(t, db, oldest.ID, "technical", 0.8)
	seedClassification(t, db, middle.ID, "billing", 0.85)
	seedClassification(t, db, newest.ID, "technical", 0.9)

	// Unfiltered list includes unclassified tickets, newest first.
	all, err := ListTicketsPage(context.Background(), db, "", 0, 10)
	if err != nil {
		t.Fatalf("ListTicketsPage: %v", err)
	}
	if len(all) != 4 || all[0].ID != unclassified.ID || all[3].ID != oldest.ID {
		t.Fatalf("unfiltered order unexpected: %+v", ids(all))
	}
	if all[1].Classification == nil {
		t.Fatalf("classification should be preloaded for classified rows")
	}

	// Category filter excludes other categories and unclassified rows.
	tech, err := ListTicketsPage(context.Background(), db, "technical", 0, 10)
	if err != nil {
		t.Fatalf("ListTicketsPage technical: %v", err)
	}
	if len(tech) != 2 || tech[0].ID != newest.ID || tech[1].ID != oldest.ID {
		t.Fatalf("filtered order unexpected: %+v", ids(tech))
	}

	// Offset/limit slice the ordered result.
	page, err := ListTicketsPage(context.Background(), db, "", 1, 2)
	if err != nil {
		t.Fatalf("ListTicketsPage page: %v", err)
	}
	if len(page) != 2 || page[0].ID != newest.ID || page[1].ID != middle.ID {
		t.Fatalf("pagination unexpected: %+v", ids(page))
	}
}

func ids(ts []domain.Ticket) []uint {
	out := make([]uint, len(ts))
	for i, tk := range ts {
		out[i] = tk.ID
	}
	return out
}
