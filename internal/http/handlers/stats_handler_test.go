package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/services"
)

func TestGetStats_DefaultDays_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotDays int
	svc := stubStatsSvc{
		stats: func(_ context.Context, days int) (*services.StatsResult, error) {
			gotDays = days
			return &services.StatsResult{
				TotalTickets: 3,
				PeriodDays:   days,
				Categories: []services.CategoryStat{
					{Category: "technical", Count: 2, Percentage: 66.67},
					{Category: "billing", Count: 1, Percentage: 33.33},
				},
				DailyCounts:       map[string]int{"2025-03-14": 3},
				AverageConfidence: 0.8,
			}, nil
		},
	}
	h := New(stubTicketSvc{}, svc)
	r := gin.New()
	r.GET("/stats", h.GetStats)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats -> %d body=%s", w.Code, w.Body.String())
	}
	if gotDays != 7 {
		t.Fatalf("default days = %d; want 7", gotDays)
	}

	var out services.StatsResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.TotalTickets != 3 || len(out.Categories) != 2 || out.AverageConfidence != 0.8 {
		t.Fatalf("payload unexpected: %+v", out)
	}
}

func TestGetStats_DaysParam_and_BadValue(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotDays int
	svc := stubStatsSvc{
		stats: func(_ context.Context, days int) (*services.StatsResult, error) {
			gotDays = days
			return &services.StatsResult{PeriodDays: days, Categories: []services.CategoryStat{}, DailyCounts: map[string]int{}}, nil
		},
	}
	h := New(stubTicketSvc{}, svc)
	r := gin.New()
	r.GET("/stats", h.GetStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats?days=30", nil))
	if w.Code != http.StatusOK || gotDays != 30 {
		t.Fatalf("days=30 -> %d days=%d", w.Code, gotDays)
	}

	// Unparseable values fall back to the default; clamping is the service's job.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats?days=banana", nil))
	if w.Code != http.StatusOK || gotDays != 7 {
		t.Fatalf("days=banana -> %d days=%d", w.Code, gotDays)
	}
}

func TestGetStats_ServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubStatsSvc{
		stats: func(context.Context, int) (*services.StatsResult, error) {
			return nil, gorm.ErrInvalidField
		},
	}
	h := New(stubTicketSvc{}, svc)
	r := gin.New()
	r.GET("/stats", h.GetStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("stats error -> %d", w.Code)
	}
	var out ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Code != ErrCodeStatsFailed {
		t.Fatalf("error envelope unexpected: %s", w.Body.String())
	}
}
