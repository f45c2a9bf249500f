// internal/api/handlers/user_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/auth"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/store"
)

type UserHandler struct {
	Users  store.UserStore
	Tokens *auth.Tokens
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"required,oneof=admin generator transporter recycler driver"`
	CompanyID string `json:"companyID"`
	DriverID  string `json:"driverID"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.Users.FindUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		respondError(c, err)
		return
	}
	if user.Status != "ACTIVE" || !auth.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.Tokens.Generate(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// CreateUser is admin-only. Company roles need a companyID and drivers a driverID.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	switch req.Role {
	case models.RoleGenerator, models.RoleTransporter, models.RoleRecycler:
		if req.CompanyID == "" {
			badRequest(c, errors.New("companyID is required for role "+req.Role))
			return
		}
	case models.RoleDriver:
		if req.DriverID == "" {
			badRequest(c, errors.New("driverID is required for role driver"))
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user := &models.User{
		Email:     strings.ToLower(req.Email),
		Name:      req.Name,
		Password:  hash,
		Role:      req.Role,
		CompanyID: req.CompanyID,
		DriverID:  req.DriverID,
		Status:    "ACTIVE",
	}
	if err := h.Users.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
