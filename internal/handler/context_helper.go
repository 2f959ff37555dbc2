package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/vacation-api/internal/middleware"
	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	reqid "github.com/noah-isme/vacation-api/pkg/middleware/requestid"
	"github.com/noah-isme/vacation-api/pkg/response"
)

func principal(c *gin.Context) models.Principal {
	return middleware.PrincipalFrom(c)
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent"), RequestID: reqid.Value(c)}
}

// pathID reads the :id parameter. Anything that is not a UUID cannot exist.
func pathID(c *gin.Context, what string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, what+" not found"))
		return "", false
	}
	return id, true
}

// bindJSON decodes the body; shape errors become VALIDATION_ERROR.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "malformed request body"))
		return false
	}
	return true
}

func pageRequest(c *gin.Context) (models.PageRequest, error) {
	var req models.PageRequest
	var err error
	if req.Page, err = intQuery(c, "page", 0); err != nil {
		return req, err
	}
	if req.Size, err = intQuery(c, "size", models.DefaultPageSize); err != nil {
		return req, err
	}
	if req.Page < 0 {
		return req, appErrors.WithField("page", "must be zero or greater")
	}
	if req.Size < 1 || req.Size > models.MaxPageSize {
		return req, appErrors.WithField("size", "must be between 1 and "+strconv.Itoa(models.MaxPageSize))
	}
	return req, nil
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.WithField(key, "must be an integer")
	}
	return v, nil
}

func dateQuery(c *gin.Context, key string) (*models.Date, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.WithField(key, "must be a YYYY-MM-DD date")
	}
	return &d, nil
}

func boolQuery(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.WithField(key, "must be true or false")
	}
	return &v, nil
}
