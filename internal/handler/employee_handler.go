package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/pkg/response"
)

type employeeService interface {
	List(ctx context.Context, actor models.Principal, filter models.EmployeeFilter) (*models.Page[models.Employee], error)
	Get(ctx context.Context, actor models.Principal, id string) (*models.Employee, error)
	Create(ctx context.Context, actor models.Principal, req models.EmployeeRequest, meta models.RequestMeta) (*models.Employee, error)
	Update(ctx context.Context, actor models.Principal, id string, req models.EmployeeRequest, meta models.RequestMeta) (*models.Employee, error)
	Delete(ctx context.Context, actor models.Principal, id string, meta models.RequestMeta) error
}

// EmployeeHandler exposes HR record endpoints.
type EmployeeHandler struct {
	service employeeService
}

// NewEmployeeHandler constructs an EmployeeHandler.
func NewEmployeeHandler(svc employeeService) *EmployeeHandler {
	return &EmployeeHandler{service: svc}
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param search query string false "Name or email contains"
// @Param managerId query string false "Manager user ID"
// @Param active query bool false "Active filter"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} models.Page[models.Employee]
// @Security BearerAuth
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.EmployeeFilter{
		Search:      strings.TrimSpace(c.Query("search")),
		ManagerID:   c.Query("managerId"),
		PageRequest: page,
	}
	if filter.Active, err = boolQuery(c, "active"); err != nil {
		response.Error(c, err)
		return
	}
	employees, err := h.service.List(c.Request.Context(), principal(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, employees)
}

// Get godoc
// @Summary Get employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} models.Employee
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "employee")
	if !ok {
		return
	}
	employee, err := h.service.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee)
}

// Create godoc
// @Summary Create employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body models.EmployeeRequest true "Employee"
// @Success 201 {object} models.Employee
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req models.EmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	employee, err := h.service.Create(c.Request.Context(), principal(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, employee)
}

// Update godoc
// @Summary Update employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body models.EmployeeRequest true "Employee"
// @Success 200 {object} models.Employee
// @Security BearerAuth
// @Router /employees/{id} [put]
func (h *EmployeeHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "employee")
	if !ok {
		return
	}
	var req models.EmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	employee, err := h.service.Update(c.Request.Context(), principal(c), id, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee)
}

// Delete godoc
// @Summary Deactivate employee
// @Tags Employees
// @Param id path string true "Employee ID"
// @Success 204
// @Security BearerAuth
// @Router /employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "employee")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), principal(c), id, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
