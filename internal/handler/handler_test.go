package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/middleware"
	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/pkg/response"
)

const (
	testVacationID = "00000000-0000-0000-0002-000000000001"
	testEmployeeID = "00000000-0000-0000-0000-0000000000ec"
)

var (
	adminClaims   = &models.JWTClaims{UserID: "00000000-0000-0000-0000-0000000000a1", Role: models.RoleAdmin, Email: "admin@example.com"}
	managerClaims = &models.JWTClaims{UserID: "00000000-0000-0000-0000-0000000000b1", Role: models.RoleManager, Email: "manager@example.com"}
	collabClaims  = &models.JWTClaims{UserID: "00000000-0000-0000-0000-0000000000c1", Role: models.RoleCollaborator, Email: "ada@example.com", EmployeeID: testEmployeeID}
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, claims *models.JWTClaims) {
	c.Set(middleware.ContextUserKey, claims)
}

func withID(c *gin.Context, id string) {
	c.Params = gin.Params{{Key: "id", Value: id}}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}
