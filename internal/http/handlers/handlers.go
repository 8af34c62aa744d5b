package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/http/middleware"
	"github.com/tbourn/go-followup-backend/internal/services"
	"github.com/tbourn/go-followup-backend/internal/utils"
	"github.com/tbourn/go-followup-backend/internal/webhook"
)

//
// Service contracts (context-aware)
//

// CompanyService defines company lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CompanyService interface {
	Create(ctx context.Context, in services.CompanyInput) (*domain.Company, error)
	Get(ctx context.Context, id string) (*domain.Company, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Company, int64, error)
	Search(ctx context.Context, query string) ([]domain.Company, error)
	Update(ctx context.Context, id string, patch services.CompanyPatch) (*domain.Company, error)
	Delete(ctx context.Context, id string) error
}

// MethodService defines operations on the ordered list of communication methods.
type MethodService interface {
	List(ctx context.Context) ([]domain.CommunicationMethod, error)
	Create(ctx context.Context, in services.MethodInput) (*domain.CommunicationMethod, error)
	Update(ctx context.Context, id string, patch services.MethodPatch) (*domain.CommunicationMethod, error)
	Delete(ctx context.Context, id string) error
	Move(ctx context.Context, id, direction string) ([]domain.CommunicationMethod, error)
}

// CommunicationService records and lists communication log entries.
type CommunicationService interface {
	// Record appends a log entry; the boolean reports an idempotent replay.
	Record(ctx context.Context, in services.RecordInput) (*domain.CommunicationLog, bool, error)
	ListPage(ctx context.Context, companyID string, page, pageSize int) ([]domain.CommunicationLog, int64, error)
}

// ScheduleService computes follow-up schedules.
type ScheduleService interface {
	ForCompany(ctx context.Context, companyID string) (*services.CompanySchedule, error)
	ForAll(ctx context.Context) ([]services.CompanySchedule, error)
	FollowUps(ctx context.Context) (*services.FollowUps, error)
}

// NotificationService serves a user's follow-up notifications.
type NotificationService interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// UserService lists users and applies identity-provider events.
type UserService interface {
	ListByRole(ctx context.Context, role string) ([]domain.User, error)
	ApplyEvent(ctx context.Context, ev webhook.Event) (bool, error)
}

// WebhookVerifier checks webhook signatures.
type WebhookVerifier interface {
	Verify(h http.Header, body []byte) error
}

// StatsFunc reports a table's live row count and latest update time; it
// feeds weak ETags on list endpoints.
type StatsFunc func(ctx context.Context) (count int64, maxUpdatedAt *time.Time, err error)

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. Nil stats functions disable the
// corresponding ETag; a nil Verifier makes the webhook endpoint answer 500.
type Deps struct {
	Companies      CompanyService
	Methods        MethodService
	Communications CommunicationService
	Schedule       ScheduleService
	Notifications  NotificationService
	Users          UserService
	Verifier       WebhookVerifier

	CompanyStats StatsFunc
	MethodStats  StatsFunc
}

// Handlers groups HTTP endpoints. It depends on abstract service interfaces
// to keep transport concerns separate from business logic.
type Handlers struct {
	companySvc  CompanyService
	methodSvc   MethodService
	commSvc     CommunicationService
	scheduleSvc ScheduleService
	notifySvc   NotificationService
	userSvc     UserService
	verifier    WebhookVerifier

	companyStats StatsFunc
	methodStats  StatsFunc
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		companySvc:   d.Companies,
		methodSvc:    d.Methods,
		commSvc:      d.Communications,
		scheduleSvc:  d.Schedule,
		notifySvc:    d.Notifications,
		userSvc:      d.Users,
		verifier:     d.Verifier,
		companyStats: d.CompanyStats,
		methodStats:  d.MethodStats,
	}
}

// userID returns the authenticated user id set by the auth middleware.
func userID(c *gin.Context) string { return middleware.UserID(c) }

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size from the query string.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// checkETag sets a weak ETag derived from stats and reports whether the
// request was answered with 304. Stats errors skip the ETag (best effort).
func checkETag(c *gin.Context, stats StatsFunc, name string) bool {
	if stats == nil {
		return false
	}
	count, maxTS, err := stats(c.Request.Context())
	if err != nil {
		return false
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, name, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
