package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/response"
)

type balanceService interface {
	Get(ctx context.Context, actor models.Principal, employeeID string, year int) (*models.VacationBalance, error)
	List(ctx context.Context, actor models.Principal, year int, page models.PageRequest) (*models.Page[models.VacationBalance], error)
}

// BalanceHandler exposes the yearly ledger.
type BalanceHandler struct {
	service balanceService
}

// NewBalanceHandler constructs a BalanceHandler.
func NewBalanceHandler(svc balanceService) *BalanceHandler {
	return &BalanceHandler{service: svc}
}

func yearQuery(c *gin.Context) (int, error) {
	year, err := intQuery(c, "year", 0)
	if err != nil {
		return 0, err
	}
	if year != 0 && (year < 2000 || year > 2100) {
		return 0, appErrors.WithField("year", "must be between 2000 and 2100")
	}
	return year, nil
}

// List godoc
// @Summary List balances
// @Description COLLABORATOR sees only their own balance
// @Tags Balances
// @Produce json
// @Param year query int false "Ledger year, defaults to the current year"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} models.Page[models.VacationBalance]
// @Security BearerAuth
// @Router /balances [get]
func (h *BalanceHandler) List(c *gin.Context) {
	year, err := yearQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	balances, err := h.service.List(c.Request.Context(), principal(c), year, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, balances)
}

// GetForEmployee godoc
// @Summary Balance of one employee
// @Tags Balances
// @Produce json
// @Param id path string true "Employee ID"
// @Param year query int false "Ledger year, defaults to the current year"
// @Success 200 {object} models.VacationBalance
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /balances/employee/{id} [get]
func (h *BalanceHandler) GetForEmployee(c *gin.Context) {
	id, ok := pathID(c, "employee")
	if !ok {
		return
	}
	year, err := yearQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	balance, err := h.service.Get(c.Request.Context(), principal(c), id, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance)
}
