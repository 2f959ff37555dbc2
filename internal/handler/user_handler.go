package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, actor models.Principal, filter models.UserFilter) (*models.Page[models.User], error)
	Get(ctx context.Context, actor models.Principal, id string) (*models.User, error)
	Managers(ctx context.Context, actor models.Principal) ([]models.User, error)
	Create(ctx context.Context, actor models.Principal, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error)
	Update(ctx context.Context, actor models.Principal, id string, req models.UpdateUserRequest, meta models.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, actor models.Principal, id string, meta models.RequestMeta) error
}

// UserHandler handles account administration endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Param role query string false "Role filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Name or email contains"
// @Param sortBy query string false "Sort column"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} models.Page[models.User]
// @Failure 403 {object} response.ErrorBody
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.UserFilter{
		Search:      strings.TrimSpace(c.Query("search")),
		SortBy:      c.Query("sortBy"),
		SortOrder:   c.Query("sortOrder"),
		PageRequest: page,
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(strings.ToUpper(raw))
		if !role.Valid() {
			response.Error(c, appErrors.WithField("role", "must be one of ADMIN MANAGER COLLABORATOR"))
			return
		}
		filter.Role = &role
	}
	if filter.Active, err = boolQuery(c, "active"); err != nil {
		response.Error(c, err)
		return
	}

	users, err := h.service.List(c.Request.Context(), principal(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, users)
}

// Managers godoc
// @Summary Active users eligible as managers
// @Tags Users
// @Produce json
// @Success 200 {array} models.User
// @Security BearerAuth
// @Router /users/managers [get]
func (h *UserHandler) Managers(c *gin.Context) {
	managers, err := h.service.Managers(c.Request.Context(), principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if managers == nil {
		managers = []models.User{}
	}
	response.JSON(c, http.StatusOK, managers)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	user, err := h.service.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Create godoc
// @Summary Create user
// @Description Provision an account. Non-admin accounts get a linked employee record.
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "Create user payload"
// @Success 201 {object} models.User
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.service.Create(c.Request.Context(), principal(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.UpdateUserRequest true "Update user payload"
// @Success 200 {object} models.User
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.service.Update(c.Request.Context(), principal(c), id, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Delete godoc
// @Summary Deactivate user
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), principal(c), id, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
