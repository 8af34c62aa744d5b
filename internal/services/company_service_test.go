package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-followup-backend/internal/domain"
)

// ----- Fake repo -----

type fakeCompanyRepo struct {
	created   *domain.Company
	createErr error

	getCompany *domain.Company
	getErr     error

	updateID     string
	updateFields map[string]any
	updateErr    error

	deleteID  string
	deleteErr error

	countTotal int64
	countErr   error

	pageOffset int
	pageLimit  int
	pageItems  []domain.Company
	pageErr    error

	searchQuery string
	searchLimit int
	searchItems []domain.Company
}

func (r *fakeCompanyRepo) CreateCompany(ctx context.Context, db *gorm.DB, c *domain.Company) error {
	r.created = c
	if r.createErr != nil {
		return r.createErr
	}
	c.ID = "c1"
	return nil
}

func (r *fakeCompanyRepo) GetCompany(ctx context.Context, db *gorm.DB, id string) (*domain.Company, error) {
	return r.getCompany, r.getErr
}

func (r *fakeCompanyRepo) UpdateCompany(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	r.updateID, r.updateFields = id, fields
	return r.updateErr
}

func (r *fakeCompanyRepo) DeleteCompany(ctx context.Context, db *gorm.DB, id string) error {
	r.deleteID = id
	return r.deleteErr
}

func (r *fakeCompanyRepo) CountCompanies(ctx context.Context, db *gorm.DB) (int64, error) {
	return r.countTotal, r.countErr
}

func (r *fakeCompanyRepo) ListCompaniesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Company, error) {
	r.pageOffset, r.pageLimit = offset, limit
	return r.pageItems, r.pageErr
}

func (r *fakeCompanyRepo) SearchCompanies(ctx context.Context, db *gorm.DB, query string, limit int) ([]domain.Company, error) {
	r.searchQuery, r.searchLimit = query, limit
	return r.searchItems, nil
}

func strp(s string) *string { return &s }

// ----- Tests -----

func TestCompanyService_Create_NormalizesAndDefaults(t *testing.T) {
	r := &fakeCompanyRepo{}
	s := NewCompanyService(nil, r)

	co, err := s.Create(context.Background(), CompanyInput{
		Name:            "  Acme    Corp ",
		Emails:          []string{" a@acme.io ", "", "A@acme.io", "b@acme.io"},
		PhoneNumbers:    []string{"  "},
		LinkedInProfile: strp("   "),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if co.ID != "c1" || co.Name != "Acme Corp" {
		t.Fatalf("unexpected company: %+v", co)
	}
	if len(co.Emails) != 2 || co.Emails[0] != "a@acme.io" || co.Emails[1] != "b@acme.io" {
		t.Fatalf("emails not cleaned: %v", co.Emails)
	}
	if len(co.PhoneNumbers) != 0 || co.LinkedInProfile != nil {
		t.Fatalf("blank optional fields kept: %+v", co)
	}
	if co.Periodicity != domain.Monthly {
		t.Fatalf("default periodicity = %q; want monthly", co.Periodicity)
	}
}

func TestCompanyService_Create_Validation(t *testing.T) {
	s := NewCompanyService(nil, &fakeCompanyRepo{})
	ctx := context.Background()

	if _, err := s.Create(ctx, CompanyInput{Name: " ", Emails: []string{"a@x.io"}}); !errors.Is(err, ErrCompanyNameRequired) {
		t.Fatalf("blank name: got %v", err)
	}
	if _, err := s.Create(ctx, CompanyInput{Name: "X", Emails: []string{" "}}); !errors.Is(err, ErrCompanyEmailRequired) {
		t.Fatalf("no email: got %v", err)
	}
	if _, err := s.Create(ctx, CompanyInput{Name: "X", Emails: []string{"a@x.io"}, Periodicity: "daily"}); !errors.Is(err, ErrInvalidPeriodicity) {
		t.Fatalf("bad periodicity: got %v", err)
	}
	co, err := s.Create(ctx, CompanyInput{Name: "X", Emails: []string{"a@x.io"}, Periodicity: " Quarterly "})
	if err != nil || co.Periodicity != domain.Quarterly {
		t.Fatalf("case-insensitive periodicity: %+v, %v", co, err)
	}
}

func TestCompanyService_Create_PropagatesRepoError(t *testing.T) {
	boom := errors.New("boom")
	s := NewCompanyService(nil, &fakeCompanyRepo{createErr: boom})
	if _, err := s.Create(context.Background(), CompanyInput{Name: "X", Emails: []string{"a@x.io"}}); !errors.Is(err, boom) {
		t.Fatalf("expected repo error, got %v", err)
	}
}

func TestCompanyService_Get_MapsNotFound(t *testing.T) {
	s := NewCompanyService(nil, &fakeCompanyRepo{getErr: gorm.ErrRecordNotFound})
	if _, err := s.Get(context.Background(), "x"); !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("expected ErrCompanyNotFound, got %v", err)
	}
}

func TestCompanyService_ListPage_DefaultsAndEmpty(t *testing.T) {
	r := &fakeCompanyRepo{countTotal: 0}
	s := NewCompanyService(nil, r)

	items, total, err := s.ListPage(context.Background(), 0, 0)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty list: items=%v total=%d err=%v", items, total, err)
	}

	r.countTotal = 45
	r.pageItems = []domain.Company{{ID: "a"}}
	_, total, err = s.ListPage(context.Background(), 3, 10)
	if err != nil || total != 45 || r.pageOffset != 20 || r.pageLimit != 10 {
		t.Fatalf("paging: total=%d offset=%d limit=%d err=%v", total, r.pageOffset, r.pageLimit, err)
	}

	r.countErr = errors.New("db down")
	if _, _, err := s.ListPage(context.Background(), 1, 10); err == nil {
		t.Fatalf("expected count error")
	}
}

func TestCompanyService_Search(t *testing.T) {
	r := &fakeCompanyRepo{}
	s := NewCompanyService(nil, r)

	if _, err := s.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	out, err := s.Search(context.Background(), "  acme   corp ")
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || r.searchQuery != "acme corp" || r.searchLimit != 50 {
		t.Fatalf("search args: q=%q limit=%d out=%v", r.searchQuery, r.searchLimit, out)
	}
}

func TestCompanyService_Update(t *testing.T) {
	r := &fakeCompanyRepo{getCompany: &domain.Company{ID: "c1", Name: "New"}}
	s := NewCompanyService(nil, r)
	ctx := context.Background()

	co, err := s.Update(ctx, "c1", CompanyPatch{Name: strp(" New "), Periodicity: strp("weekly"), LinkedInProfile: strp("")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if co.Name != "New" || r.updateID != "c1" {
		t.Fatalf("unexpected result: %+v (id %s)", co, r.updateID)
	}
	if r.updateFields["name"] != "New" || r.updateFields["communication_periodicity"] != domain.Weekly {
		t.Fatalf("fields = %+v", r.updateFields)
	}
	if v, ok := r.updateFields["linkedin_profile"]; !ok || v.(*string) != nil {
		t.Fatalf("blank linkedin should clear the column: %+v", r.updateFields)
	}
	if _, ok := r.updateFields["emails"]; ok {
		t.Fatalf("untouched field was sent: %+v", r.updateFields)
	}

	empty := []string{}
	if _, err := s.Update(ctx, "c1", CompanyPatch{Emails: &empty}); !errors.Is(err, ErrCompanyEmailRequired) {
		t.Fatalf("removing all emails: got %v", err)
	}
	if _, err := s.Update(ctx, "c1", CompanyPatch{Name: strp(" ")}); !errors.Is(err, ErrCompanyNameRequired) {
		t.Fatalf("blank name: got %v", err)
	}
	if _, err := s.Update(ctx, "c1", CompanyPatch{Periodicity: strp("hourly")}); !errors.Is(err, ErrInvalidPeriodicity) {
		t.Fatalf("bad periodicity: got %v", err)
	}

	r.updateErr = gorm.ErrRecordNotFound
	if _, err := s.Update(ctx, "missing", CompanyPatch{Comments: strp("x")}); !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestCompanyService_Delete(t *testing.T) {
	r := &fakeCompanyRepo{}
	s := NewCompanyService(nil, r)
	if err := s.Delete(context.Background(), "c1"); err != nil || r.deleteID != "c1" {
		t.Fatalf("Delete: %v (id %s)", err, r.deleteID)
	}
	r.deleteErr = gorm.ErrRecordNotFound
	if err := s.Delete(context.Background(), "c1"); !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("expected ErrCompanyNotFound, got %v", err)
	}
}
