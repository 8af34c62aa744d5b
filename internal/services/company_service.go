// Package services – CompanyService
//
// This file implements the CompanyService, which manages the lifecycle of
// tracked companies. It normalizes and validates input (name, contact lists,
// cadence), and coordinates repository operations for creating, listing
// (with pagination), searching, updating, and deleting companies.
//
// Service-level errors (e.g., ErrCompanyNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/utils"
)

// CompanyRepo defines the repository contract required by CompanyService.
type CompanyRepo interface {
	CreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) error
	GetCompany(ctx context.Context, db *gorm.DB, id string) (*domain.Company, error)
	UpdateCompany(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error
	DeleteCompany(ctx context.Context, db *gorm.DB, id string) error

	// CountCompanies returns the total number of companies for pagination.
	CountCompanies(ctx context.Context, db *gorm.DB) (int64, error)

	// ListCompaniesPage returns a page of companies, newest first.
	ListCompaniesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Company, error)

	// SearchCompanies matches name, emails, and phone numbers.
	SearchCompanies(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Company, error)
}

// CompanyInput carries the fields accepted when creating a company.
type CompanyInput struct {
	Name            string
	Location        string
	LinkedInProfile *string
	Emails          []string
	PhoneNumbers    []string
	Comments        string
	Periodicity     string
}

// CompanyPatch carries a partial update; nil fields are left untouched.
type CompanyPatch struct {
	Name            *string
	Location        *string
	LinkedInProfile *string
	Emails          *[]string
	PhoneNumbers    *[]string
	Comments        *string
	Periodicity     *string
}

// CompanyService provides company-level operations.
type CompanyService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the company repository used by this service.
	Repo CompanyRepo

	// SearchLimit caps the number of search results; 0 means unlimited.
	SearchLimit int
}

// NewCompanyService constructs a CompanyService with default limits.
func NewCompanyService(db *gorm.DB, r CompanyRepo) *CompanyService {
	return &CompanyService{DB: db, Repo: r, SearchLimit: 50}
}

// Create validates in and inserts a new company. Name and at least one email
// are required; an empty cadence defaults to monthly.
func (s *CompanyService) Create(ctx context.Context, in CompanyInput) (*domain.Company, error) {
	name := collapseSpaces(in.Name)
	if name == "" {
		return nil, ErrCompanyNameRequired
	}
	emails := cleanList(in.Emails)
	if len(emails) == 0 {
		return nil, ErrCompanyEmailRequired
	}
	p, err := domain.ParsePeriodicity(in.Periodicity)
	if err != nil {
		return nil, ErrInvalidPeriodicity
	}

	c := &domain.Company{
		Name:            name,
		Location:        strings.TrimSpace(in.Location),
		LinkedInProfile: optionalString(in.LinkedInProfile),
		Emails:          datatypes.JSONSlice[string](emails),
		PhoneNumbers:    datatypes.JSONSlice[string](cleanList(in.PhoneNumbers)),
		Comments:        strings.TrimSpace(in.Comments),
		Periodicity:     p,
	}
	if err := s.Repo.CreateCompany(ctx, s.DB, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a single company.
func (s *CompanyService) Get(ctx context.Context, id string) (*domain.Company, error) {
	c, err := s.Repo.GetCompany(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	return c, err
}

// ListPage returns a page of companies (paginated) and the total count.
// It applies defaults for invalid page/pageSize.
func (s *CompanyService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Company, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountCompanies(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Company{}, 0, nil
	}

	items, err := s.Repo.ListCompaniesPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Search returns companies matching query by name, email, or phone number.
func (s *CompanyService) Search(ctx context.Context, query string) ([]domain.Company, error) {
	query = collapseSpaces(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	out, err := s.Repo.SearchCompanies(ctx, s.DB, query, s.SearchLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Company{}
	}
	return out, nil
}

// Update applies patch to the company and returns the stored result. The
// same rules as Create apply to the fields being changed.
func (s *CompanyService) Update(ctx context.Context, id string, patch CompanyPatch) (*domain.Company, error) {
	fields := map[string]any{}

	if patch.Name != nil {
		name := collapseSpaces(*patch.Name)
		if name == "" {
			return nil, ErrCompanyNameRequired
		}
		fields["name"] = name
	}
	if patch.Location != nil {
		fields["location"] = strings.TrimSpace(*patch.Location)
	}
	if patch.LinkedInProfile != nil {
		fields["linkedin_profile"] = optionalString(patch.LinkedInProfile)
	}
	if patch.Emails != nil {
		emails := cleanList(*patch.Emails)
		if len(emails) == 0 {
			return nil, ErrCompanyEmailRequired
		}
		fields["emails"] = datatypes.JSONSlice[string](emails)
	}
	if patch.PhoneNumbers != nil {
		fields["phone_numbers"] = datatypes.JSONSlice[string](cleanList(*patch.PhoneNumbers))
	}
	if patch.Comments != nil {
		fields["comments"] = strings.TrimSpace(*patch.Comments)
	}
	if patch.Periodicity != nil {
		p, err := domain.ParsePeriodicity(*patch.Periodicity)
		if err != nil {
			return nil, ErrInvalidPeriodicity
		}
		fields["communication_periodicity"] = p
	}

	if err := s.Repo.UpdateCompany(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a company.
func (s *CompanyService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeleteCompany(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCompanyNotFound
	}
	return err
}

// cleanList trims entries, drops blanks, and removes case-insensitive
// duplicates while keeping the first spelling.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// optionalString trims s and maps blank to nil.
func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// collapseSpaces trims whitespace and collapses runs of it to one space.
func collapseSpaces(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
