package httpapi

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/config"
	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/repo"
	"github.com/tbourn/go-followup-backend/internal/services"
)

// Services bundles the application services shared by the HTTP layer and
// background jobs.
type Services struct {
	Companies      *services.CompanyService
	Methods        *services.MethodService
	Communications *services.CommunicationService
	Schedule       *services.ScheduleService
	Notifications  *services.NotificationService
	Users          *services.UserService
}

// NewServices builds every service on top of db.
func NewServices(db *gorm.DB, cfg config.Config) Services {
	sched := &services.ScheduleService{DB: db, Recent: cfg.FollowUp.RecentCommunications}
	return Services{
		Companies:      services.NewCompanyService(db, companyStore{}),
		Methods:        &services.MethodService{DB: db},
		Communications: &services.CommunicationService{DB: db, IdempotencyTTL: cfg.IdempotencyTTL},
		Schedule:       sched,
		Notifications:  &services.NotificationService{DB: db, Schedule: sched},
		Users:          &services.UserService{DB: db},
	}
}

// companyStore satisfies services.CompanyRepo with the repo package.
type companyStore struct{}

func (companyStore) CreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) error {
	return repo.CreateCompany(ctx, db, c)
}

func (companyStore) GetCompany(ctx context.Context, db *gorm.DB, id string) (*domain.Company, error) {
	return repo.GetCompany(ctx, db, id)
}

func (companyStore) UpdateCompany(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateCompany(ctx, db, id, fields)
}

func (companyStore) DeleteCompany(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCompany(ctx, db, id)
}

func (companyStore) CountCompanies(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountCompanies(ctx, db)
}

func (companyStore) ListCompaniesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Company, error) {
	return repo.ListCompaniesPage(ctx, db, offset, limit)
}

func (companyStore) SearchCompanies(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Company, error) {
	return repo.SearchCompanies(ctx, db, query, limit)
}
