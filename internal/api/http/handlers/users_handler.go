package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// UsersHandler exposes the profile directory and admin user management.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Me handles GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	profile, err := h.users.Me(c.UserContext(), p)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, profileResponse(profile))
}

// Catalogue handles GET /catalogue.
func (h *UsersHandler) Catalogue(c *fiber.Ctx) error {
	return data(c, http.StatusOK, dto.CatalogueResponse{
		Designations: domain.KnownDesignations,
		Branches:     domain.KnownBranches,
	})
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	profiles, err := h.users.ListUsers(c.UserContext(), p, service.UserListInput{
		Branch:      c.Query("branch"),
		Designation: c.Query("designation"),
		Search:      c.Query("search"),
		Page:        parseInt(c.Query("page"), 1),
		PageSize:    parseInt(c.Query("page_size"), 50),
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, profileResponses(profiles))
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	profile, err := h.users.GetUser(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, profileResponse(profile))
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.users.CreateUser(c.UserContext(), p, service.NewAccountInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		PhoneNumber:  req.PhoneNumber,
		Designations: req.Designations,
		Branch:       req.Branch,
		IsAdmin:      req.IsAdmin,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, profileResponse(profile))
}

// Update handles PATCH /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.users.UpdateUser(c.UserContext(), p, c.Params("id"), service.UpdateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		Designations: req.Designations,
		Branch:       req.Branch,
		IsAdmin:      req.IsAdmin,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, profileResponse(profile))
}

// ResetPassword handles POST /users/:id/password-reset.
func (h *UsersHandler) ResetPassword(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	token, err := h.users.AdminResetPassword(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusAccepted, dto.PasswordResetIssuedResponse{
		ProfileID: token.AccountID,
		ExpiresAt: token.ExpiresAt,
	})
}
