// internal/api/handlers/company_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/store"
)

type CompanyHandler struct {
	Companies store.CompanyStore
}

type AddressRequest struct {
	FullText  string   `json:"fullText" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

type CreateCompanyRequest struct {
	CompanyID    string         `json:"companyID" binding:"required"`
	Name         string         `json:"name" binding:"required"`
	Type         string         `json:"type" binding:"required,oneof=generator transporter recycler"`
	Address      AddressRequest `json:"address" binding:"required"`
	ContactEmail string         `json:"contactEmail" binding:"omitempty,email"`
	ContactPhone string         `json:"contactPhone"`
	Status       string         `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE"`
}

func (r AddressRequest) toModel() models.Address {
	return models.Address{FullText: r.FullText, Latitude: r.Latitude, Longitude: r.Longitude}
}

func (h *CompanyHandler) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Status == "" {
		req.Status = "ACTIVE"
	}

	now := time.Now().UTC()
	company := &models.Company{
		CompanyID:    req.CompanyID,
		Name:         req.Name,
		Type:         req.Type,
		Address:      req.Address.toModel(),
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Status:       req.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Companies.CreateCompany(c.Request.Context(), company); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, company)
}

// GetAllCompanies lists companies, optionally filtered by ?type=.
func (h *CompanyHandler) GetAllCompanies(c *gin.Context) {
	companies, err := h.Companies.ListCompanies(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, companies)
}

func (h *CompanyHandler) GetCompanyByID(c *gin.Context) {
	company, err := h.Companies.GetCompany(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}

// UpdateCompany replaces the mutable fields. Companies are deactivated via
// status rather than deleted because shipments keep referencing them.
func (h *CompanyHandler) UpdateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	company, err := h.Companies.GetCompany(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	company.Name = req.Name
	company.Type = req.Type
	company.Address = req.Address.toModel()
	company.ContactEmail = req.ContactEmail
	company.ContactPhone = req.ContactPhone
	if req.Status != "" {
		company.Status = req.Status
	}
	company.UpdatedAt = time.Now().UTC()

	if err := h.Companies.UpdateCompany(ctx, company); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}
