// Ticket HTTP handlers.
//
// This file exposes REST endpoints for support ticket resources:
//   - POST   /requests       (create + classify)
//   - GET    /requests       (list, filtered and paginated, ETag support)
//   - GET    /requests/{id}  (fetch with classification and tags)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// creation is recorded for (user, key), the handler replays the original
// ticket and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/domain"
	"github.com/tbourn/go-support-backend/internal/repo"
	"github.com/tbourn/go-support-backend/internal/services"
	"github.com/tbourn/go-support-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// TicketService defines ticket lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TicketService interface {
	// Create persists a ticket and drives its classification.
	Create(ctx context.Context, in services.CreateTicketInput) (*domain.Ticket, error)
	// Get returns a ticket with classification and tags.
	Get(ctx context.Context, id uint) (*domain.Ticket, error)
	// ListPage returns a page of tickets and the total matching count.
	ListPage(ctx context.Context, category string, limit, offset int) ([]domain.Ticket, int64, error)
}

// StatsService defines the statistics operations consumed by HTTP handlers.
type StatsService interface {
	// Stats aggregates classification statistics over the last days days.
	Stats(ctx context.Context, days int) (*services.StatsResult, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for tickets and statistics.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	ticketSvc TicketService
	statsSvc  StatsService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ticketSvc TicketService, statsSvc StatsService) *Handlers {
	return &Handlers{ticketSvc: ticketSvc, statsSvc: statsSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateTicketRequest is the JSON payload for submitting a support request.
// Either text (free-form, subject derived from the first line) or body must
// be present.
type CreateTicketRequest struct {
	// Text is the free-form request text.
	Text string `json:"text" example:"Server down\nThe production server stopped responding this morning."`
	// Subject optionally names the request explicitly.
	Subject string `json:"subject" example:"Server down"`
	// Body is the explicit request body; wins over Text when both are set.
	Body string `json:"body" example:"The production server stopped responding this morning."`
	// OriginalQueue optionally records the source queue of the request.
	OriginalQueue string `json:"original_queue" example:"Technical Support"`
	// OriginalPriority optionally records the source priority.
	OriginalPriority string `json:"original_priority" example:"high"`
}

// CreateTicketResponse acknowledges an accepted support request.
type CreateTicketResponse struct {
	ID      uint   `json:"id" example:"42"`
	Status  string `json:"status" example:"processing"`
	Message string `json:"message" example:"Request received and queued for classification"`
}

// Pagination carries offset pagination metadata for list responses.
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// ListTicketsResponse wraps a page of tickets and pagination information.
type ListTicketsResponse struct {
	Requests   []domain.Ticket `json:"requests"`
	Pagination Pagination      `json:"pagination"`
}

//
// Handlers
//

// CreateTicket godoc
// @ID          createTicket
// @Summary     Submit a support request
// @Description Persists the request, classifies it, and returns the new ticket id.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateTicketRequest  true  "Support request payload"
//
// @Success     201  {object}  handlers.CreateTicketResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /requests [post]
func (h *Handlers) CreateTicket(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	currentUser := userID(c)

	// Idempotency replay path: read validated key if present.
	idemKey, _ := middlewareGetIdempotencyKey(c)
	if idemKey != "" {
		if db := h.ticketDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, currentUser, idemKey, time.Now().UTC()); err == nil && rec != nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, CreateTicketResponse{
					ID:      rec.TicketID,
					Status:  "processing",
					Message: "Request received and queued for classification",
				})
				return
			}
		}
	}

	t, err := h.ticketSvc.Create(ctx, services.CreateTicketInput{
		Text:             req.Text,
		Subject:          req.Subject,
		Body:             req.Body,
		OriginalQueue:    req.OriginalQueue,
		OriginalPriority: req.OriginalPriority,
	})
	if err != nil {
		switch err {
		case services.ErrEmptyBody:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request text required")
		case services.ErrBodyTooShort:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request text must contain at least 10 meaningful characters")
		case services.ErrBodyTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request text too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Idempotency store path, best effort.
	if idemKey != "" {
		if db := h.ticketDB(); db != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, db, currentUser, idemKey, t.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, CreateTicketResponse{
		ID:      t.ID,
		Status:  "processing",
		Message: "Request received and queued for classification",
	})
}

// GetTicket godoc
// @ID          getTicket
// @Summary     Fetch a support request
// @Description Returns a ticket with its classification and tags.
// @Tags        Requests
// @Produce     json
//
// @Param       id  path  int  true  "Ticket ID"  example(42)
//
// @Success     200  {object}  domain.Ticket
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Ticket not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /requests/{id} [get]
func (h *Handlers) GetTicket(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a positive integer")
		return
	}

	t, err := h.ticketSvc.Get(c.Request.Context(), uint(id))
	if err != nil {
		switch err {
		case services.ErrTicketNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, t)
}

// ListTickets godoc
// @ID          listTickets
// @Summary     List support requests
// @Description Returns a page of tickets, newest first. Supports weak ETag via If-None-Match and may return 304. A category filter returns only classified tickets of that category.
// @Tags        Requests
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       category       query   string  false "Category filter"             Enums(technical, billing, general)
// @Param       limit          query   int     false "Items per page"              minimum(1) maximum(1000) default(100)
// @Param       offset         query   int     false "Items to skip"               minimum(0) default(0)
//
// @Success     200  {object} handlers.ListTicketsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /requests [get]
func (h *Handlers) ListTickets(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if db := h.ticketDB(); db != nil {
		count, maxTS, err := repo.TicketsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"requests:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	limit := utils.AtoiDefault(c.Query("limit"), 100)
	offset := utils.AtoiDefault(c.Query("offset"), 0)

	items, total, err := h.ticketSvc.ListPage(ctx, c.Query("category"), limit, offset)
	if err != nil {
		switch err {
		case services.ErrInvalidCategory:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "category must be one of: technical, billing, general")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ListTicketsResponse{
		Requests: items,
		Pagination: Pagination{
			Limit:  clampInt(limit, 1, 1000, 100),
			Offset: maxInt(offset, 0),
			Total:  total,
		},
	})
}

// ticketDB exposes the service's DB handle for handler-level reads (ETag,
// idempotency) when the concrete service is in use. Fakes in tests return nil
// and skip those paths.
func (h *Handlers) ticketDB() *gorm.DB {
	if svc, okSvc := h.ticketSvc.(*services.TicketService); okSvc {
		return svc.DB
	}
	return nil
}

// middlewareGetIdempotencyKey extracts an idempotency key if an upstream
// middleware has already validated/stashed it. The fallback behavior reads
// the "Idempotency-Key" header directly when no dedicated middleware exists.
func middlewareGetIdempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

// clampInt bounds v to [lo, hi], substituting def for non-positive input.
func clampInt(v, lo, hi, def int) int {
	if v <= 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
