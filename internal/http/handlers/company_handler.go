// Company HTTP handlers.
//
// This file exposes REST endpoints for company resources:
//   - POST   /companies               (create, admin)
//   - GET    /companies               (list, paginated, ETag support)
//   - GET    /companies/search        (search by name, email, or phone)
//   - GET    /companies/{id}          (get)
//   - PATCH  /companies/{id}          (partial update, admin)
//   - DELETE /companies/{id}          (delete, admin)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/services"
)

//
// DTOs
//

// CreateCompanyRequest is the JSON payload for creating a company.
type CreateCompanyRequest struct {
	Name            string   `json:"name" binding:"required,max=255" example:"Acme Corp"`
	Location        string   `json:"location" example:"Berlin, DE"`
	LinkedInProfile *string  `json:"linkedin_profile" example:"https://www.linkedin.com/company/acme"`
	Emails          []string `json:"emails" binding:"required,min=1,dive,email" example:"hello@acme.io"`
	PhoneNumbers    []string `json:"phone_numbers" example:"+49 30 1234567"`
	Comments        string   `json:"comments" example:"Met at the spring fair"`
	// Periodicity is one of weekly|biweekly|monthly|quarterly|yearly; defaults to monthly.
	Periodicity string `json:"communication_periodicity" example:"monthly"`
}

// UpdateCompanyRequest is the JSON payload for a partial company update.
// Omitted fields are left unchanged.
type UpdateCompanyRequest struct {
	Name            *string   `json:"name" binding:"omitempty,max=255"`
	Location        *string   `json:"location"`
	LinkedInProfile *string   `json:"linkedin_profile"`
	Emails          *[]string `json:"emails" binding:"omitempty,dive,email"`
	PhoneNumbers    *[]string `json:"phone_numbers"`
	Comments        *string   `json:"comments"`
	Periodicity     *string   `json:"communication_periodicity"`
}

// ListCompaniesResponse wraps a page of companies and pagination information.
type ListCompaniesResponse struct {
	Companies  []domain.Company `json:"companies"`
	Pagination Pagination       `json:"pagination"`
}

//
// Handlers
//

// CreateCompany godoc
// @ID          createCompany
// @Summary     Create a company
// @Description Creates a company to keep in touch with. Requires the admin role.
// @Tags        Companies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateCompanyRequest  true  "Company payload"
//
// @Success     201  {object}  handlers.Response{data=domain.Company}
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin role required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /companies [post]
func (h *Handlers) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and at least one valid email are required")
		return
	}

	co, err := h.companySvc.Create(c.Request.Context(), services.CompanyInput{
		Name:            req.Name,
		Location:        req.Location,
		LinkedInProfile: req.LinkedInProfile,
		Emails:          req.Emails,
		PhoneNumbers:    req.PhoneNumbers,
		Comments:        req.Comments,
		Periodicity:     req.Periodicity,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, co, "company created")
}

// ListCompanies godoc
// @ID          listCompanies
// @Summary     List companies (paginated)
// @Description Returns a page of companies, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Companies
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"companies:3:1700000000\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.Response{data=handlers.ListCompaniesResponse}
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /companies [get]
func (h *Handlers) ListCompanies(c *gin.Context) {
	page, pageSize := clampPagination(c)

	if checkETag(c, h.companyStats, "companies") {
		return
	}

	items, total, err := h.companySvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Company{}
	}
	ok(c, http.StatusOK, ListCompaniesResponse{
		Companies:  items,
		Pagination: newPagination(page, pageSize, total),
	}, "companies retrieved")
}

// SearchCompanies godoc
// @ID          searchCompanies
// @Summary     Search companies
// @Description Case-insensitive substring match on name, emails, and phone numbers.
// @Tags        Companies
// @Produce     json
// @Security    BearerAuth
//
// @Param       query  query  string  true  "Search text"  example(acme)
//
// @Success     200  {object} handlers.Response{data=[]domain.Company}
// @Failure     400  {object} handlers.ErrorResponse "Query required"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /companies/search [get]
func (h *Handlers) SearchCompanies(c *gin.Context) {
	out, err := h.companySvc.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, out, "companies retrieved")
}

// GetCompany godoc
// @ID          getCompany
// @Summary     Get a company
// @Tags        Companies
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Company ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.Response{data=domain.Company}
// @Failure     404  {object} handlers.ErrorResponse "Company not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /companies/{id} [get]
func (h *Handlers) GetCompany(c *gin.Context) {
	co, err := h.companySvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, co, "company retrieved")
}

// UpdateCompany godoc
// @ID          updateCompany
// @Summary     Update a company
// @Description Applies a partial update. Requires the admin role.
// @Tags        Companies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                         true  "Company ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateCompanyRequest  true  "Fields to change"
//
// @Success     200  {object} handlers.Response{data=domain.Company}
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     403  {object} handlers.ErrorResponse "Admin role required"
// @Failure     404  {object} handlers.ErrorResponse "Company not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /companies/{id} [patch]
func (h *Handlers) UpdateCompany(c *gin.Context) {
	var req UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	co, err := h.companySvc.Update(c.Request.Context(), c.Param("id"), services.CompanyPatch{
		Name:            req.Name,
		Location:        req.Location,
		LinkedInProfile: req.LinkedInProfile,
		Emails:          req.Emails,
		PhoneNumbers:    req.PhoneNumbers,
		Comments:        req.Comments,
		Periodicity:     req.Periodicity,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, co, "company updated")
}

// DeleteCompany godoc
// @ID          deleteCompany
// @Summary     Delete a company
// @Description Requires the admin role.
// @Tags        Companies
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Company ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Admin role required"
// @Failure     404  {object} handlers.ErrorResponse "Company not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /companies/{id} [delete]
func (h *Handlers) DeleteCompany(c *gin.Context) {
	if err := h.companySvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}
